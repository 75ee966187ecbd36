package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogging_CapturesStatusAndSize(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/missing", nil)
	rec := httptest.NewRecorder()

	Logging(logger)(next).ServeHTTP(rec, req)

	out := buf.String()
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "bytes_written=4")
	assert.Contains(t, out, "path=/api/v1/tasks/missing")
	assert.Contains(t, out, "level=WARN")
}

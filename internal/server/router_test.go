package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresync-io/caresync/internal/server/jwt"
	"github.com/caresync-io/caresync/internal/server/metrics"
	"github.com/caresync-io/caresync/internal/server/storage/sqlite"
	"github.com/caresync-io/caresync/pkg/api"
)

// Prometheus collectors register globally, so the suite shares one set.
var testMetrics = metrics.New()

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := jwt.NewService("test-secret", time.Hour)

	ts := httptest.NewServer(NewRouter(logger, store, tokens, testMetrics, "test"))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func registerAndLogin(t *testing.T, ts *httptest.Server) api.TokenResponse {
	t.Helper()

	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/register", "", api.RegisterRequest{
		Username: "nurse.joy",
		Password: "correct-horse",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var token api.TokenResponse
	status = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", api.LoginRequest{
		Username: "nurse.joy",
		Password: "correct-horse",
	}, &token)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, token.AccessToken)
	return token
}

func createTask(t *testing.T, ts *httptest.Server, token string) api.Task {
	t.Helper()

	var task api.Task
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks", token, api.CreateTaskRequest{
		ResidentID: "resident-1",
		Title:      "Morning medication",
	}, &task)
	require.Equal(t, http.StatusCreated, status)
	require.EqualValues(t, 1, task.Version)
	return task
}

func TestRouter_RegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	token := registerAndLogin(t, ts)
	assert.Equal(t, "nurse.joy", token.Username)
	assert.Greater(t, token.ExpiresAt, time.Now().Unix())

	// Second registration with the same username is rejected.
	var errResp api.ErrorResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/register", "", api.RegisterRequest{
		Username: "nurse.joy",
		Password: "another-pass",
	}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, api.ErrKindValidation, errResp.Kind)
}

func TestRouter_Login_InvalidCredentials(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts)

	var errResp api.ErrorResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", api.LoginRequest{
		Username: "nurse.joy",
		Password: "wrong",
	}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, api.ErrKindUnauthorized, errResp.Kind)
}

func TestRouter_TasksRequireToken(t *testing.T) {
	ts := newTestServer(t)

	var errResp api.ErrorResponse
	status := doJSON(t, http.MethodGet, ts.URL+"/api/v1/tasks", "", nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, api.ErrKindUnauthorized, errResp.Kind)

	status = doJSON(t, http.MethodGet, ts.URL+"/api/v1/tasks", "garbage-token", nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_CreateAndListTasks(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)

	created := createTask(t, ts, token.AccessToken)

	var list api.TaskListResponse
	status := doJSON(t, http.MethodGet, ts.URL+"/api/v1/tasks", token.AccessToken, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, created.ID, list.Tasks[0].ID)
	assert.Equal(t, "scheduled", list.Tasks[0].State)
}

func TestRouter_Transition(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)
	task := createTask(t, ts, token.AccessToken)

	var resp api.TransitionResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks/"+task.ID+"/transition", token.AccessToken,
		api.TransitionRequest{
			InitiatedAt:     time.Now().UTC(),
			TaskID:          task.ID,
			TargetState:     "in_progress",
			ActionKind:      "state_update",
			OperationID:     "op-1",
			Provenance:      api.ProvenanceDirect,
			ExpectedVersion: 1,
		}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, resp.AlreadyApplied)
	assert.Equal(t, "in_progress", resp.Task.State)
	assert.EqualValues(t, 2, resp.Task.Version)
}

func TestRouter_Transition_VersionConflict(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)
	task := createTask(t, ts, token.AccessToken)

	req := api.TransitionRequest{
		TaskID:          task.ID,
		TargetState:     "completed",
		ActionKind:      "state_update",
		OperationID:     "op-winner",
		ExpectedVersion: 1,
	}
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks/"+task.ID+"/transition", token.AccessToken, req, nil)
	require.Equal(t, http.StatusOK, status)

	// A stale device replays against the old version.
	req.OperationID = "op-loser"
	req.TargetState = "skipped"
	var errResp api.ErrorResponse
	status = doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks/"+task.ID+"/transition", token.AccessToken, req, &errResp)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, api.ErrKindVersionConflict, errResp.Kind)
	assert.EqualValues(t, 2, errResp.CurrentVersion)

	var current api.Task
	require.NoError(t, json.Unmarshal(errResp.CurrentState, &current))
	assert.Equal(t, "completed", current.State)
}

func TestRouter_Transition_ReplayIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)
	task := createTask(t, ts, token.AccessToken)

	req := api.TransitionRequest{
		TaskID:          task.ID,
		TargetState:     "completed",
		ActionKind:      "state_update",
		OperationID:     "op-1",
		Provenance:      api.ProvenanceReplay,
		ExpectedVersion: 1,
	}

	var first api.TransitionResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks/"+task.ID+"/transition", token.AccessToken, req, &first)
	require.Equal(t, http.StatusOK, status)
	require.False(t, first.AlreadyApplied)

	var second api.TransitionResponse
	status = doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks/"+task.ID+"/transition", token.AccessToken, req, &second)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, second.AlreadyApplied)
	assert.EqualValues(t, 2, second.Task.Version)
}

func TestRouter_Transition_Validation(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)
	task := createTask(t, ts, token.AccessToken)

	var errResp api.ErrorResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks/"+task.ID+"/transition", token.AccessToken,
		api.TransitionRequest{
			TaskID:          task.ID,
			TargetState:     "archived",
			OperationID:     "op-1",
			ExpectedVersion: 1,
		}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, api.ErrKindValidation, errResp.Kind)

	status = doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks/missing/transition", token.AccessToken,
		api.TransitionRequest{
			TaskID:          "missing",
			TargetState:     "completed",
			OperationID:     "op-2",
			ExpectedVersion: 1,
		}, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, api.ErrKindNotFound, errResp.Kind)
}

func TestRouter_UploadEvidence_Duplicate(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)
	task := createTask(t, ts, token.AccessToken)

	req := api.EvidenceUploadRequest{
		CapturedAt: time.Now().UTC(),
		ID:         "ev-1",
		TaskID:     task.ID,
		Kind:       "numeric",
		Payload:    []byte("37.2"),
	}

	var resp api.UploadResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/evidence", token.AccessToken, req, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Duplicate)

	status = doJSON(t, http.MethodPost, ts.URL+"/api/v1/evidence", token.AccessToken, req, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Duplicate)
	assert.Equal(t, "ev-1", resp.ID)
}

func TestRouter_UploadAudit(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)

	var resp api.UploadResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/audit", token.AccessToken, api.AuditUploadRequest{
		OccurredAt: time.Now().UTC(),
		ID:         "audit-1",
		EntityType: "task",
		EntityID:   "task-1",
		Action:     "medication_given",
		Metadata:   map[string]string{"dose": "5mg"},
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Duplicate)
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

package sink

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresync-io/caresync/internal/client/storage/boltdb"
	"github.com/caresync-io/caresync/internal/models"
)

func newTestSinks(t *testing.T) (*EvidenceSink, *AuditSink) {
	t.Helper()

	store := boltdb.New(filepath.Join(t.TempDir(), "sink.db"))
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEvidenceSink(store, logger), NewAuditSink(store, logger)
}

func TestEvidenceSink_Append(t *testing.T) {
	evidence, _ := newTestSinks(t)
	ctx := context.Background()

	ev, err := evidence.Append(ctx, "task-1", "caregiver-1", models.MediaPhoto, []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Synced)
	assert.False(t, ev.CapturedAt.IsZero())

	stored, err := evidence.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), stored.Payload)
}

func TestEvidenceSink_AppendValidation(t *testing.T) {
	evidence, _ := newTestSinks(t)
	ctx := context.Background()

	_, err := evidence.Append(ctx, "task-1", "caregiver-1", "hologram", nil)
	assert.ErrorContains(t, err, "unknown media kind")

	_, err = evidence.Append(ctx, "", "caregiver-1", models.MediaText, []byte("note"))
	assert.ErrorContains(t, err, "task id is required")
}

func TestEvidenceSink_UnsyncedLifecycle(t *testing.T) {
	evidence, _ := newTestSinks(t)
	ctx := context.Background()

	first, err := evidence.Append(ctx, "task-1", "caregiver-1", models.MediaNumeric, []byte("36.8"))
	require.NoError(t, err)
	second, err := evidence.Append(ctx, "task-2", "caregiver-1", models.MediaText, []byte("ate well"))
	require.NoError(t, err)

	unsynced, err := evidence.ListUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 2)
	assert.Equal(t, first.ID, unsynced[0].ID, "oldest first")
	assert.Equal(t, second.ID, unsynced[1].ID)

	require.NoError(t, evidence.MarkSynced(ctx, first.ID))

	count, err := evidence.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The record survives until garbage collection; only the flag moved.
	stored, err := evidence.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, stored.Synced)
	assert.Equal(t, []byte("36.8"), stored.Payload)
}

func TestEvidenceSink_ListByTask(t *testing.T) {
	evidence, _ := newTestSinks(t)
	ctx := context.Background()

	for _, taskID := range []string{"task-1", "task-2", "task-1"} {
		_, err := evidence.Append(ctx, taskID, "caregiver-1", models.MediaText, []byte("x"))
		require.NoError(t, err)
	}

	owned, err := evidence.ListByTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestAuditSink_Append(t *testing.T) {
	_, audit := newTestSinks(t)
	ctx := context.Background()

	ev, err := audit.Append(ctx, "task", "task-1", "medication_given", "caregiver-1",
		map[string]string{"dose": "5mg"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Synced)

	stored, err := audit.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "medication_given", stored.Action)
	assert.Equal(t, "5mg", stored.Metadata["dose"])
}

func TestAuditSink_AppendValidation(t *testing.T) {
	_, audit := newTestSinks(t)
	ctx := context.Background()

	_, err := audit.Append(ctx, "", "task-1", "noted", "caregiver-1", nil)
	assert.ErrorContains(t, err, "entity type and id are required")

	_, err = audit.Append(ctx, "task", "task-1", "", "caregiver-1", nil)
	assert.ErrorContains(t, err, "action label is required")
}

func TestAuditSink_UnsyncedLifecycle(t *testing.T) {
	_, audit := newTestSinks(t)
	ctx := context.Background()

	ev, err := audit.Append(ctx, "task", "task-1", "noted", "caregiver-1", nil)
	require.NoError(t, err)

	count, err := audit.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, audit.MarkSynced(ctx, ev.ID))

	count, err = audit.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	purged, err := audit.PurgeSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

package conflict

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

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()

	store := boltdb.New(filepath.Join(t.TempDir(), "conflict.db"))
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return NewTracker(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTracker_Record(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	rec, err := tr.Record(ctx, "op-1", "task-1",
		[]byte(`{"target_state":"completed"}`), []byte(`{"state":"skipped","version":5}`))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Resolved)
	assert.Nil(t, rec.ResolvedAt)
	assert.False(t, rec.DetectedAt.IsZero())

	stored, err := tr.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "op-1", stored.OperationID)
	assert.JSONEq(t, `{"state":"skipped","version":5}`, string(stored.ServerValue))
}

func TestTracker_RecordRequiresOperation(t *testing.T) {
	tr := newTestTracker(t)

	_, err := tr.Record(context.Background(), "", "task-1", nil, nil)
	assert.ErrorContains(t, err, "operation id is required")
}

func TestTracker_Resolve(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	rec, err := tr.Record(ctx, "op-1", "task-1", []byte("{}"), []byte("{}"))
	require.NoError(t, err)

	count, err := tr.CountUnresolved(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, tr.Resolve(ctx, rec.ID, models.ResolutionServer))

	// Resolution removes it from the worklist but keeps the record as an
	// audit trail.
	count, err = tr.CountUnresolved(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	stored, err := tr.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.Resolved)
	assert.Equal(t, models.ResolutionServer, stored.Outcome)
	require.NotNil(t, stored.ResolvedAt)
}

func TestTracker_ResolveValidation(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	rec, err := tr.Record(ctx, "op-1", "task-1", []byte("{}"), []byte("{}"))
	require.NoError(t, err)

	err = tr.Resolve(ctx, rec.ID, "coin_flip")
	assert.ErrorContains(t, err, "unknown resolution outcome")

	require.NoError(t, tr.Resolve(ctx, rec.ID, models.ResolutionLocal))
	err = tr.Resolve(ctx, rec.ID, models.ResolutionServer)
	assert.ErrorContains(t, err, "already resolved")
}

func TestTracker_ListUnresolvedOrder(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	first, err := tr.Record(ctx, "op-1", "task-1", []byte("{}"), []byte("{}"))
	require.NoError(t, err)
	second, err := tr.Record(ctx, "op-2", "task-2", []byte("{}"), []byte("{}"))
	require.NoError(t, err)

	unresolved, err := tr.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 2)
	assert.Equal(t, first.ID, unresolved[0].ID, "oldest first")
	assert.Equal(t, second.ID, unresolved[1].ID)
}

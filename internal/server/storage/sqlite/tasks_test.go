package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresync-io/caresync/internal/models"
	"github.com/caresync-io/caresync/internal/server/storage"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func createTestTask(t *testing.T, s *Storage, id string) *models.CareTask {
	t.Helper()

	now := time.Now().UTC()
	task := &models.CareTask{
		CreatedAt:  now,
		UpdatedAt:  now,
		ID:         id,
		ResidentID: "resident-1",
		Title:      "Morning medication",
		State:      models.TaskStateScheduled,
		Version:    1,
	}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func TestStorage_CreateAndGetTask(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	created := createTestTask(t, s, "task-1")

	task, err := s.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, task.Title)
	assert.Equal(t, models.TaskStateScheduled, task.State)
	assert.EqualValues(t, 1, task.Version)

	_, err = s.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}

func TestStorage_TransitionTask(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	createTestTask(t, s, "task-1")

	task, alreadyApplied, err := s.TransitionTask(ctx, storage.TransitionParams{
		InitiatedAt:     time.Now().UTC(),
		TaskID:          "task-1",
		TargetState:     models.TaskStateInProgress,
		ActionKind:      "state_update",
		OperationID:     "op-1",
		ActorID:         "caregiver-1",
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.False(t, alreadyApplied)
	assert.Equal(t, models.TaskStateInProgress, task.State)
	assert.EqualValues(t, 2, task.Version)

	stored, err := s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.Version)
}

func TestStorage_TransitionTask_VersionMismatch(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	createTestTask(t, s, "task-1")

	// Another actor moved the task first.
	_, _, err := s.TransitionTask(ctx, storage.TransitionParams{
		TaskID:          "task-1",
		TargetState:     models.TaskStateSkipped,
		ActionKind:      "state_update",
		OperationID:     "op-other",
		ActorID:         "caregiver-2",
		ExpectedVersion: 1,
	})
	require.NoError(t, err)

	_, _, err = s.TransitionTask(ctx, storage.TransitionParams{
		TaskID:          "task-1",
		TargetState:     models.TaskStateCompleted,
		ActionKind:      "state_update",
		OperationID:     "op-late",
		ActorID:         "caregiver-1",
		ExpectedVersion: 1,
	})
	require.Error(t, err)

	var mismatch *storage.VersionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.EqualValues(t, 2, mismatch.Task.Version)
	assert.Equal(t, models.TaskStateSkipped, mismatch.Task.State)
	assert.EqualValues(t, 1, mismatch.ExpectedVersion)

	// The losing transition changed nothing.
	stored, err := s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.Version)
}

func TestStorage_TransitionTask_ReplayedOperationIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	createTestTask(t, s, "task-1")

	params := storage.TransitionParams{
		TaskID:          "task-1",
		TargetState:     models.TaskStateCompleted,
		ActionKind:      "state_update",
		OperationID:     "op-1",
		ActorID:         "caregiver-1",
		ExpectedVersion: 1,
	}

	_, alreadyApplied, err := s.TransitionTask(ctx, params)
	require.NoError(t, err)
	assert.False(t, alreadyApplied)

	// The client crashed before recording the success and replays the same
	// operation. The ledger answers instead of a version check.
	task, alreadyApplied, err := s.TransitionTask(ctx, params)
	require.NoError(t, err)
	assert.True(t, alreadyApplied)
	assert.EqualValues(t, 2, task.Version)

	// No double apply.
	stored, err := s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.Version)
}

func TestStorage_TransitionTask_Validation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	createTestTask(t, s, "task-1")

	_, _, err := s.TransitionTask(ctx, storage.TransitionParams{
		TaskID:          "task-1",
		TargetState:     "archived",
		OperationID:     "op-1",
		ExpectedVersion: 1,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidState)

	_, _, err = s.TransitionTask(ctx, storage.TransitionParams{
		TaskID:          "missing",
		TargetState:     models.TaskStateCompleted,
		OperationID:     "op-2",
		ExpectedVersion: 1,
	})
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}

func TestStorage_ListTasks(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	createTestTask(t, s, "task-1")
	createTestTask(t, s, "task-2")

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

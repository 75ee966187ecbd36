package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
)

// Manager owns the durable operation queue. It is the only component that
// creates queue entries; status transitions after enqueue belong to the sync
// driver.
type Manager struct {
	store  storage.QueueStorage
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a queue manager.
func NewManager(store storage.QueueStorage, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Enqueue records a pending operation. The id is generated here and stays
// stable across retries; it doubles as the idempotency token sent to the
// server.
func (m *Manager) Enqueue(ctx context.Context, kind models.OperationKind, entityID, actorID string, payload any, expectedVersion int64) (*models.QueuedOperation, error) {
	if !models.KnownKind(kind) {
		return nil, fmt.Errorf("unknown operation kind %q", kind)
	}
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	encoded, err := models.EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	op := &models.QueuedOperation{
		CreatedAt:       m.now().UTC(),
		ID:              uuid.NewString(),
		EntityID:        entityID,
		ActorID:         actorID,
		Kind:            kind,
		Status:          models.StatusPending,
		Payload:         encoded,
		ExpectedVersion: expectedVersion,
	}

	if err := m.store.InsertOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	m.logger.Info("Operation enqueued",
		"operation_id", op.ID,
		"kind", op.Kind,
		"entity_id", op.EntityID)

	return op, nil
}

// Get retrieves an operation by id.
func (m *Manager) Get(ctx context.Context, id string) (*models.QueuedOperation, error) {
	return m.store.GetOperation(ctx, id)
}

// ListByStatus returns operations with the given status, oldest first.
func (m *Manager) ListByStatus(ctx context.Context, status models.OperationStatus) ([]*models.QueuedOperation, error) {
	return m.store.ListOperationsByStatus(ctx, status)
}

// CountByStatus counts operations with the given status.
func (m *Manager) CountByStatus(ctx context.Context, status models.OperationStatus) (int, error) {
	return m.store.CountOperationsByStatus(ctx, status)
}

// MarkSyncing moves an operation to syncing before its remote call goes out.
func (m *Manager) MarkSyncing(ctx context.Context, id string) error {
	return m.transition(ctx, id, models.StatusSyncing, func(op *models.QueuedOperation) {})
}

// MarkSynced records that the remote accepted the operation.
func (m *Manager) MarkSynced(ctx context.Context, id string) error {
	return m.transition(ctx, id, models.StatusSynced, func(op *models.QueuedOperation) {
		op.LastError = ""
	})
}

// MarkFailed terminates an operation after a conflict, a permanent rejection
// or an exhausted retry budget. Increments the retry count and records the
// error for operator inspection.
func (m *Manager) MarkFailed(ctx context.Context, id, errMsg string) error {
	return m.transition(ctx, id, models.StatusFailed, func(op *models.QueuedOperation) {
		op.RetryCount++
		op.LastError = errMsg
	})
}

// ReturnToPending puts a syncing operation back in line after a transient
// failure. The retry count grows and nextAttemptAt gates when the driver may
// try again.
func (m *Manager) ReturnToPending(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error {
	return m.transition(ctx, id, models.StatusPending, func(op *models.QueuedOperation) {
		op.RetryCount++
		op.LastError = errMsg
		op.NextAttemptAt = nextAttemptAt
	})
}

// Requeue manually returns a failed operation to the queue with a fresh
// retry budget. Used after an operator resolves the underlying problem.
func (m *Manager) Requeue(ctx context.Context, id string) error {
	return m.transition(ctx, id, models.StatusPending, func(op *models.QueuedOperation) {
		op.RetryCount = 0
		op.LastError = ""
		op.NextAttemptAt = time.Time{}
	})
}

// RecoverStale returns operations stuck in syncing back to pending. A crash
// between the remote call and the local status write leaves them behind; the
// retry count is deliberately untouched since the attempt's outcome is
// unknown. The server-side idempotency check makes the re-send safe.
func (m *Manager) RecoverStale(ctx context.Context) (int, error) {
	stale, err := m.store.ListOperationsByStatus(ctx, models.StatusSyncing)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale operations: %w", err)
	}

	for _, op := range stale {
		op.Status = models.StatusPending
		if err := m.store.UpdateOperation(ctx, op); err != nil {
			return 0, fmt.Errorf("failed to recover operation %s: %w", op.ID, err)
		}
		m.logger.Warn("Recovered operation stuck in syncing",
			"operation_id", op.ID,
			"entity_id", op.EntityID)
	}

	return len(stale), nil
}

// PurgeSynced garbage-collects all synced operations. Failed operations are
// never touched: discarding them silently would erase the only record of a
// lost write.
func (m *Manager) PurgeSynced(ctx context.Context) (int, error) {
	return m.store.PurgeSyncedOperations(ctx)
}

// Remove deletes a terminal operation from the queue.
func (m *Manager) Remove(ctx context.Context, id string) error {
	op, err := m.store.GetOperation(ctx, id)
	if err != nil {
		return err
	}
	if !op.Status.Terminal() {
		return fmt.Errorf("operation %s is %s, only terminal operations can be removed", id, op.Status)
	}
	return m.store.DeleteOperation(ctx, id)
}

// transition loads, validates, mutates, and stores a status change.
func (m *Manager) transition(ctx context.Context, id string, to models.OperationStatus, mutate func(*models.QueuedOperation)) error {
	op, err := m.store.GetOperation(ctx, id)
	if err != nil {
		return err
	}

	if !models.ValidStatusTransition(op.Status, to) {
		return fmt.Errorf("invalid status transition %s -> %s for operation %s", op.Status, to, id)
	}

	op.Status = to
	mutate(op)

	if err := m.store.UpdateOperation(ctx, op); err != nil {
		return fmt.Errorf("failed to update operation %s: %w", id, err)
	}
	return nil
}

// Package conflict persists version mismatches discovered during replay and
// the decisions made about them. Choosing an outcome (local, server, or a
// merged value) is policy owned by whoever reconciles; the tracker only
// records it.
package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
)

// Tracker owns the conflict record collection.
type Tracker struct {
	store  storage.ConflictStorage
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a conflict tracker.
func NewTracker(store storage.ConflictStorage, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Record materializes a detected version mismatch. Called exactly once per
// mismatch; the referenced operation must exist (or have existed) in the
// queue.
func (t *Tracker) Record(ctx context.Context, operationID, entityID string, localValue, serverValue []byte) (*models.ConflictRecord, error) {
	if operationID == "" {
		return nil, fmt.Errorf("operation id is required")
	}

	rec := &models.ConflictRecord{
		DetectedAt:  t.now().UTC(),
		ID:          uuid.NewString(),
		OperationID: operationID,
		EntityID:    entityID,
		LocalValue:  localValue,
		ServerValue: serverValue,
	}

	if err := t.store.InsertConflict(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record conflict: %w", err)
	}

	t.logger.Warn("Version conflict recorded",
		"conflict_id", rec.ID,
		"operation_id", rec.OperationID,
		"entity_id", rec.EntityID)

	return rec, nil
}

// Get retrieves a conflict record by id.
func (t *Tracker) Get(ctx context.Context, id string) (*models.ConflictRecord, error) {
	return t.store.GetConflict(ctx, id)
}

// ListUnresolved returns conflicts awaiting a decision, oldest first.
func (t *Tracker) ListUnresolved(ctx context.Context) ([]*models.ConflictRecord, error) {
	return t.store.ListUnresolvedConflicts(ctx)
}

// CountUnresolved counts conflicts awaiting a decision.
func (t *Tracker) CountUnresolved(ctx context.Context) (int, error) {
	return t.store.CountUnresolvedConflicts(ctx)
}

// Resolve records the reconciliation decision. It never mutates the
// referenced operation: retrying a resolved conflict requires an explicit
// re-enqueue.
func (t *Tracker) Resolve(ctx context.Context, id string, outcome models.ResolutionOutcome) error {
	if !models.KnownResolutionOutcome(outcome) {
		return fmt.Errorf("unknown resolution outcome %q", outcome)
	}

	rec, err := t.store.GetConflict(ctx, id)
	if err != nil {
		return err
	}
	if rec.Resolved {
		return fmt.Errorf("conflict %s is already resolved as %s", id, rec.Outcome)
	}

	resolvedAt := t.now().UTC()
	rec.Resolved = true
	rec.Outcome = outcome
	rec.ResolvedAt = &resolvedAt

	if err := t.store.UpdateConflict(ctx, rec); err != nil {
		return fmt.Errorf("failed to resolve conflict %s: %w", id, err)
	}

	t.logger.Info("Conflict resolved",
		"conflict_id", id,
		"outcome", outcome)

	return nil
}

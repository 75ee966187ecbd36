// Package sink holds the append-only evidence and audit collections. Records
// entering a sink are facts already committed locally; sync only propagates
// them, it never rejects them on version grounds.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
)

// EvidenceSink appends captured artifacts for later upload.
type EvidenceSink struct {
	store  storage.EvidenceStorage
	logger *slog.Logger
	now    func() time.Time
}

// NewEvidenceSink creates an evidence sink.
func NewEvidenceSink(store storage.EvidenceStorage, logger *slog.Logger) *EvidenceSink {
	return &EvidenceSink{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Append records a captured artifact. The record is immutable afterwards
// except for the synced flag.
func (s *EvidenceSink) Append(ctx context.Context, taskID, actorID string, kind models.MediaKind, payload []byte) (*models.OfflineEvidence, error) {
	if !models.KnownMediaKind(kind) {
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}
	if taskID == "" {
		return nil, fmt.Errorf("task id is required")
	}

	ev := &models.OfflineEvidence{
		CapturedAt: s.now().UTC(),
		ID:         uuid.NewString(),
		TaskID:     taskID,
		ActorID:    actorID,
		Kind:       kind,
		Payload:    payload,
	}

	if err := s.store.InsertEvidence(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to append evidence: %w", err)
	}

	s.logger.Info("Evidence captured",
		"evidence_id", ev.ID,
		"task_id", ev.TaskID,
		"kind", ev.Kind)

	return ev, nil
}

// Get retrieves an evidence record by id.
func (s *EvidenceSink) Get(ctx context.Context, id string) (*models.OfflineEvidence, error) {
	return s.store.GetEvidence(ctx, id)
}

// ListUnsynced returns records awaiting upload, oldest first.
func (s *EvidenceSink) ListUnsynced(ctx context.Context) ([]*models.OfflineEvidence, error) {
	return s.store.ListUnsyncedEvidence(ctx)
}

// ListByTask returns records owned by a task.
func (s *EvidenceSink) ListByTask(ctx context.Context, taskID string) ([]*models.OfflineEvidence, error) {
	return s.store.ListEvidenceByTask(ctx, taskID)
}

// MarkSynced flips the synced flag after a successful upload.
func (s *EvidenceSink) MarkSynced(ctx context.Context, id string) error {
	return s.store.MarkEvidenceSynced(ctx, id)
}

// CountUnsynced counts records awaiting upload.
func (s *EvidenceSink) CountUnsynced(ctx context.Context) (int, error) {
	return s.store.CountUnsyncedEvidence(ctx)
}

// PurgeSynced garbage-collects uploaded records.
func (s *EvidenceSink) PurgeSynced(ctx context.Context) (int, error) {
	return s.store.PurgeSyncedEvidence(ctx)
}

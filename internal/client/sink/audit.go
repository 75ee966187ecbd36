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

// AuditSink appends locally recorded audit events for later upload.
type AuditSink struct {
	store  storage.AuditStorage
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditSink creates an audit sink.
func NewAuditSink(store storage.AuditStorage, logger *slog.Logger) *AuditSink {
	return &AuditSink{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Append records an audit event.
func (s *AuditSink) Append(ctx context.Context, entityType, entityID, action, actorID string, metadata map[string]string) (*models.OfflineAuditEvent, error) {
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("entity type and id are required")
	}
	if action == "" {
		return nil, fmt.Errorf("action label is required")
	}

	ev := &models.OfflineAuditEvent{
		OccurredAt: s.now().UTC(),
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		Metadata:   metadata,
	}

	if err := s.store.InsertAuditEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to append audit event: %w", err)
	}

	s.logger.Debug("Audit event recorded",
		"audit_id", ev.ID,
		"entity_id", ev.EntityID,
		"action", ev.Action)

	return ev, nil
}

// Get retrieves an audit event by id.
func (s *AuditSink) Get(ctx context.Context, id string) (*models.OfflineAuditEvent, error) {
	return s.store.GetAuditEvent(ctx, id)
}

// ListUnsynced returns events awaiting upload, oldest first.
func (s *AuditSink) ListUnsynced(ctx context.Context) ([]*models.OfflineAuditEvent, error) {
	return s.store.ListUnsyncedAuditEvents(ctx)
}

// MarkSynced flips the synced flag after a successful upload.
func (s *AuditSink) MarkSynced(ctx context.Context, id string) error {
	return s.store.MarkAuditEventSynced(ctx, id)
}

// CountUnsynced counts events awaiting upload.
func (s *AuditSink) CountUnsynced(ctx context.Context) (int, error) {
	return s.store.CountUnsyncedAuditEvents(ctx)
}

// PurgeSynced garbage-collects uploaded events.
func (s *AuditSink) PurgeSynced(ctx context.Context) (int, error) {
	return s.store.PurgeSyncedAuditEvents(ctx)
}

package storage

import (
	"context"

	"github.com/caresync-io/caresync/internal/models"
)

//go:generate moq -out evidence_mock.go . EvidenceStorage

// EvidenceStorage defines the append-only evidence collection. Records are
// never rewritten after insert; the only permitted mutation flips the synced
// flag.
type EvidenceStorage interface {
	// InsertEvidence stores a captured artifact.
	// Returns ErrDuplicateID if the id exists.
	InsertEvidence(ctx context.Context, ev *models.OfflineEvidence) error

	// GetEvidence retrieves a record by id.
	// Returns ErrEvidenceNotFound if absent.
	GetEvidence(ctx context.Context, id string) (*models.OfflineEvidence, error)

	// ListUnsyncedEvidence returns records with synced=false, served by the
	// synced-flag index.
	ListUnsyncedEvidence(ctx context.Context) ([]*models.OfflineEvidence, error)

	// ListEvidenceByTask returns records owned by a task, served by the
	// owner index.
	ListEvidenceByTask(ctx context.Context, taskID string) ([]*models.OfflineEvidence, error)

	// MarkEvidenceSynced flips the synced flag.
	// Returns ErrEvidenceNotFound if absent.
	MarkEvidenceSynced(ctx context.Context, id string) error

	// CountUnsyncedEvidence counts records with synced=false.
	CountUnsyncedEvidence(ctx context.Context) (int, error)

	// PurgeSyncedEvidence deletes all records with synced=true and returns
	// how many were removed.
	PurgeSyncedEvidence(ctx context.Context) (int, error)
}

//go:generate moq -out audit_mock.go . AuditStorage

// AuditStorage defines the append-only audit event collection. Same
// discipline as evidence.
type AuditStorage interface {
	// InsertAuditEvent stores an audit event.
	// Returns ErrDuplicateID if the id exists.
	InsertAuditEvent(ctx context.Context, ev *models.OfflineAuditEvent) error

	// GetAuditEvent retrieves an event by id.
	// Returns ErrAuditEventNotFound if absent.
	GetAuditEvent(ctx context.Context, id string) (*models.OfflineAuditEvent, error)

	// ListUnsyncedAuditEvents returns events with synced=false ordered by
	// timestamp, served by the synced index.
	ListUnsyncedAuditEvents(ctx context.Context) ([]*models.OfflineAuditEvent, error)

	// MarkAuditEventSynced flips the synced flag.
	// Returns ErrAuditEventNotFound if absent.
	MarkAuditEventSynced(ctx context.Context, id string) error

	// CountUnsyncedAuditEvents counts events with synced=false.
	CountUnsyncedAuditEvents(ctx context.Context) (int, error)

	// PurgeSyncedAuditEvents deletes all events with synced=true and returns
	// how many were removed.
	PurgeSyncedAuditEvents(ctx context.Context) (int, error)
}

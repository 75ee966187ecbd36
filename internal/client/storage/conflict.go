package storage

import (
	"context"

	"github.com/caresync-io/caresync/internal/models"
)

//go:generate moq -out conflict_mock.go . ConflictStorage

// ConflictStorage defines the conflict record collection. Records are never
// deleted automatically: resolved conflicts remain as an audit trail.
type ConflictStorage interface {
	// InsertConflict stores a newly detected conflict.
	// Returns ErrDuplicateID if the id exists.
	InsertConflict(ctx context.Context, rec *models.ConflictRecord) error

	// GetConflict retrieves a conflict record by id.
	// Returns ErrConflictNotFound if absent.
	GetConflict(ctx context.Context, id string) (*models.ConflictRecord, error)

	// UpdateConflict replaces a stored conflict record.
	// Returns ErrConflictNotFound if absent.
	UpdateConflict(ctx context.Context, rec *models.ConflictRecord) error

	// ListUnresolvedConflicts returns records with resolved=false ordered by
	// detection time, served by the resolved-flag index.
	ListUnresolvedConflicts(ctx context.Context) ([]*models.ConflictRecord, error)

	// CountUnresolvedConflicts counts records with resolved=false.
	CountUnresolvedConflicts(ctx context.Context) (int, error)
}

// SyncStateStorage holds the single per-installation sync summary record.
type SyncStateStorage interface {
	// SaveSyncState overwrites the summary record wholesale.
	SaveSyncState(ctx context.Context, state *models.SyncState) error

	// GetSyncState retrieves the summary record.
	// Returns ErrSyncStateNotFound if no pass has completed yet.
	GetSyncState(ctx context.Context) (*models.SyncState, error)
}

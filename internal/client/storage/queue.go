package storage

import (
	"context"

	"github.com/caresync-io/caresync/internal/models"
)

//go:generate moq -out queue_mock.go . QueueStorage

// QueueStorage defines the durable operation queue collection.
// Every mutating call runs inside a single storage transaction: the whole
// write commits or none of it does.
type QueueStorage interface {
	// InsertOperation stores a new queued operation.
	// Returns ErrDuplicateID if an operation with the same id exists.
	InsertOperation(ctx context.Context, op *models.QueuedOperation) error

	// GetOperation retrieves an operation by id.
	// Returns ErrOperationNotFound if absent.
	GetOperation(ctx context.Context, id string) (*models.QueuedOperation, error)

	// UpdateOperation replaces a stored operation wholesale.
	// Returns ErrOperationNotFound if absent.
	UpdateOperation(ctx context.Context, op *models.QueuedOperation) error

	// DeleteOperation removes an operation. No-op if absent.
	DeleteOperation(ctx context.Context, id string) error

	// ListOperationsByStatus returns operations with the given status
	// ordered by creation time, oldest first. The ordering is served by the
	// status index, not a full scan.
	ListOperationsByStatus(ctx context.Context, status models.OperationStatus) ([]*models.QueuedOperation, error)

	// CountOperationsByStatus counts operations with the given status.
	CountOperationsByStatus(ctx context.Context, status models.OperationStatus) (int, error)

	// PurgeSyncedOperations deletes all operations with status synced and
	// returns how many were removed.
	PurgeSyncedOperations(ctx context.Context) (int, error)
}

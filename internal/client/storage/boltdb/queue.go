package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
)

// queueIdxKey builds the status index key for an operation.
func queueIdxKey(op *models.QueuedOperation) []byte {
	return idxKey(string(op.Status), idxTime(op.CreatedAt.UnixNano()), op.ID)
}

// queueStatusPrefix is the index prefix covering one status.
func queueStatusPrefix(status models.OperationStatus) []byte {
	return []byte(string(status) + idxSep)
}

// InsertOperation stores a new queued operation and its index entry in one
// transaction.
func (s *Storage) InsertOperation(ctx context.Context, op *models.QueuedOperation) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket.Get([]byte(op.ID)) != nil {
			return storage.ErrDuplicateID
		}
		if err := bucket.Put([]byte(op.ID), data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		return tx.Bucket(bucketQueueIdx).Put(queueIdxKey(op), []byte(op.ID))
	})
	if err != nil {
		return err
	}
	return nil
}

// GetOperation retrieves a queued operation by id.
func (s *Storage) GetOperation(ctx context.Context, id string) (*models.QueuedOperation, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var op *models.QueuedOperation

	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketQueue).Get([]byte(id))
		if data == nil {
			return storage.ErrOperationNotFound
		}
		op = &models.QueuedOperation{}
		if err := json.Unmarshal(data, op); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// UpdateOperation replaces a stored operation and moves its index entry when
// status or creation time changed, all in one transaction.
func (s *Storage) UpdateOperation(ctx context.Context, op *models.QueuedOperation) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		existing := bucket.Get([]byte(op.ID))
		if existing == nil {
			return storage.ErrOperationNotFound
		}

		var old models.QueuedOperation
		if err := json.Unmarshal(existing, &old); err != nil {
			return fmt.Errorf("failed to unmarshal existing operation: %w", err)
		}

		idx := tx.Bucket(bucketQueueIdx)
		if err := idx.Delete(queueIdxKey(&old)); err != nil {
			return fmt.Errorf("failed to drop old index entry: %w", err)
		}
		if err := idx.Put(queueIdxKey(op), []byte(op.ID)); err != nil {
			return fmt.Errorf("failed to write index entry: %w", err)
		}

		if err := bucket.Put([]byte(op.ID), data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		return nil
	})
}

// DeleteOperation removes an operation and its index entry. No-op if absent.
func (s *Storage) DeleteOperation(ctx context.Context, id string) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		existing := bucket.Get([]byte(id))
		if existing == nil {
			return nil
		}

		var old models.QueuedOperation
		if err := json.Unmarshal(existing, &old); err != nil {
			return fmt.Errorf("failed to unmarshal existing operation: %w", err)
		}

		if err := tx.Bucket(bucketQueueIdx).Delete(queueIdxKey(&old)); err != nil {
			return fmt.Errorf("failed to drop index entry: %w", err)
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete operation: %w", err)
		}
		return nil
	})
}

// ListOperationsByStatus returns operations with the given status ordered by
// creation time, oldest first. The index key embeds the creation timestamp,
// so cursor order is already chronological.
func (s *Storage) ListOperationsByStatus(ctx context.Context, status models.OperationStatus) ([]*models.QueuedOperation, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var ops []*models.QueuedOperation

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		return scanPrefix(tx.Bucket(bucketQueueIdx), queueStatusPrefix(status), func(id []byte) error {
			data := bucket.Get(id)
			if data == nil {
				return fmt.Errorf("index points at missing operation %s", id)
			}
			var op models.QueuedOperation
			if err := json.Unmarshal(data, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			ops = append(ops, &op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list operations by status: %w", err)
	}

	return ops, nil
}

// CountOperationsByStatus counts operations with the given status using only
// the index.
func (s *Storage) CountOperationsByStatus(ctx context.Context, status models.OperationStatus) (int, error) {
	db := s.handle()
	if db == nil {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := db.View(func(tx *bbolt.Tx) error {
		return scanPrefix(tx.Bucket(bucketQueueIdx), queueStatusPrefix(status), func(id []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}

	return count, nil
}

// PurgeSyncedOperations deletes every operation with status synced in one
// transaction and returns the number removed. Failed operations are never
// touched here.
func (s *Storage) PurgeSyncedOperations(ctx context.Context) (int, error) {
	db := s.handle()
	if db == nil {
		return 0, storage.ErrStorageClosed
	}

	removed := 0
	err := db.Update(func(tx *bbolt.Tx) error {
		var err error
		removed, err = purgePrefix(tx.Bucket(bucketQueueIdx), tx.Bucket(bucketQueue), queueStatusPrefix(models.StatusSynced))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge synced operations: %w", err)
	}

	return removed, nil
}

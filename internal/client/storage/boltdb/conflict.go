package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
)

func conflictIdxKey(rec *models.ConflictRecord) []byte {
	return idxKey(boolFlag(rec.Resolved), idxTime(rec.DetectedAt.UnixNano()), rec.ID)
}

// InsertConflict stores a newly detected conflict with its index entry.
func (s *Storage) InsertConflict(ctx context.Context, rec *models.ConflictRecord) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		if bucket.Get([]byte(rec.ID)) != nil {
			return storage.ErrDuplicateID
		}
		if err := bucket.Put([]byte(rec.ID), data); err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}
		return tx.Bucket(bucketConflictsIdx).Put(conflictIdxKey(rec), []byte(rec.ID))
	})
}

// GetConflict retrieves a conflict record by id.
func (s *Storage) GetConflict(ctx context.Context, id string) (*models.ConflictRecord, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var rec *models.ConflictRecord

	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketConflicts).Get([]byte(id))
		if data == nil {
			return storage.ErrConflictNotFound
		}
		rec = &models.ConflictRecord{}
		if err := json.Unmarshal(data, rec); err != nil {
			return fmt.Errorf("failed to unmarshal conflict: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// UpdateConflict replaces a stored conflict record and moves its index entry
// when the resolved flag changed.
func (s *Storage) UpdateConflict(ctx context.Context, rec *models.ConflictRecord) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		existing := bucket.Get([]byte(rec.ID))
		if existing == nil {
			return storage.ErrConflictNotFound
		}

		var old models.ConflictRecord
		if err := json.Unmarshal(existing, &old); err != nil {
			return fmt.Errorf("failed to unmarshal existing conflict: %w", err)
		}

		idx := tx.Bucket(bucketConflictsIdx)
		if err := idx.Delete(conflictIdxKey(&old)); err != nil {
			return fmt.Errorf("failed to drop old index entry: %w", err)
		}
		if err := idx.Put(conflictIdxKey(rec), []byte(rec.ID)); err != nil {
			return fmt.Errorf("failed to write index entry: %w", err)
		}

		if err := bucket.Put([]byte(rec.ID), data); err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}
		return nil
	})
}

// ListUnresolvedConflicts returns unresolved records ordered by detection
// time, oldest first.
func (s *Storage) ListUnresolvedConflicts(ctx context.Context) ([]*models.ConflictRecord, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []*models.ConflictRecord

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		prefix := []byte(boolFlag(false) + idxSep)
		return scanPrefix(tx.Bucket(bucketConflictsIdx), prefix, func(id []byte) error {
			data := bucket.Get(id)
			if data == nil {
				return fmt.Errorf("index points at missing conflict %s", id)
			}
			var rec models.ConflictRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal conflict: %w", err)
			}
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved conflicts: %w", err)
	}

	return records, nil
}

// CountUnresolvedConflicts counts unresolved records using only the index.
func (s *Storage) CountUnresolvedConflicts(ctx context.Context) (int, error) {
	db := s.handle()
	if db == nil {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := db.View(func(tx *bbolt.Tx) error {
		prefix := []byte(boolFlag(false) + idxSep)
		return scanPrefix(tx.Bucket(bucketConflictsIdx), prefix, func(id []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved conflicts: %w", err)
	}

	return count, nil
}

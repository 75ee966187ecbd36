package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
)

func evidenceIdxKey(ev *models.OfflineEvidence) []byte {
	return idxKey(boolFlag(ev.Synced), idxTime(ev.CapturedAt.UnixNano()), ev.ID)
}

func evidenceOwnerKey(ev *models.OfflineEvidence) []byte {
	return idxKey(ev.TaskID, ev.ID)
}

// InsertEvidence stores a captured artifact with its synced-flag and owner
// index entries in one transaction.
func (s *Storage) InsertEvidence(ctx context.Context, ev *models.OfflineEvidence) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvidence)
		if bucket.Get([]byte(ev.ID)) != nil {
			return storage.ErrDuplicateID
		}
		if err := bucket.Put([]byte(ev.ID), data); err != nil {
			return fmt.Errorf("failed to save evidence: %w", err)
		}
		if err := tx.Bucket(bucketEvidenceIdx).Put(evidenceIdxKey(ev), []byte(ev.ID)); err != nil {
			return fmt.Errorf("failed to write synced index: %w", err)
		}
		return tx.Bucket(bucketEvidenceTask).Put(evidenceOwnerKey(ev), []byte(ev.ID))
	})
}

// GetEvidence retrieves an evidence record by id.
func (s *Storage) GetEvidence(ctx context.Context, id string) (*models.OfflineEvidence, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var ev *models.OfflineEvidence

	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEvidence).Get([]byte(id))
		if data == nil {
			return storage.ErrEvidenceNotFound
		}
		ev = &models.OfflineEvidence{}
		if err := json.Unmarshal(data, ev); err != nil {
			return fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ev, nil
}

// ListUnsyncedEvidence returns records awaiting upload, oldest capture first.
func (s *Storage) ListUnsyncedEvidence(ctx context.Context) ([]*models.OfflineEvidence, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []*models.OfflineEvidence

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvidence)
		prefix := []byte(boolFlag(false) + idxSep)
		return scanPrefix(tx.Bucket(bucketEvidenceIdx), prefix, func(id []byte) error {
			data := bucket.Get(id)
			if data == nil {
				return fmt.Errorf("index points at missing evidence %s", id)
			}
			var ev models.OfflineEvidence
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("failed to unmarshal evidence: %w", err)
			}
			records = append(records, &ev)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced evidence: %w", err)
	}

	return records, nil
}

// ListEvidenceByTask returns all evidence owned by a task via the owner index.
func (s *Storage) ListEvidenceByTask(ctx context.Context, taskID string) ([]*models.OfflineEvidence, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []*models.OfflineEvidence

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvidence)
		prefix := []byte(taskID + idxSep)
		return scanPrefix(tx.Bucket(bucketEvidenceTask), prefix, func(id []byte) error {
			data := bucket.Get(id)
			if data == nil {
				return fmt.Errorf("owner index points at missing evidence %s", id)
			}
			var ev models.OfflineEvidence
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("failed to unmarshal evidence: %w", err)
			}
			records = append(records, &ev)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence by task: %w", err)
	}

	return records, nil
}

// MarkEvidenceSynced flips the synced flag. This is the only mutation the
// append-only evidence collection permits.
func (s *Storage) MarkEvidenceSynced(ctx context.Context, id string) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvidence)
		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrEvidenceNotFound
		}

		var ev models.OfflineEvidence
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
		if ev.Synced {
			return nil
		}

		idx := tx.Bucket(bucketEvidenceIdx)
		if err := idx.Delete(evidenceIdxKey(&ev)); err != nil {
			return fmt.Errorf("failed to drop old index entry: %w", err)
		}

		ev.Synced = true
		updated, err := json.Marshal(&ev)
		if err != nil {
			return fmt.Errorf("failed to marshal evidence: %w", err)
		}
		if err := bucket.Put([]byte(id), updated); err != nil {
			return fmt.Errorf("failed to save evidence: %w", err)
		}
		return idx.Put(evidenceIdxKey(&ev), []byte(id))
	})
}

// CountUnsyncedEvidence counts records awaiting upload using only the index.
func (s *Storage) CountUnsyncedEvidence(ctx context.Context) (int, error) {
	db := s.handle()
	if db == nil {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := db.View(func(tx *bbolt.Tx) error {
		prefix := []byte(boolFlag(false) + idxSep)
		return scanPrefix(tx.Bucket(bucketEvidenceIdx), prefix, func(id []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced evidence: %w", err)
	}

	return count, nil
}

// PurgeSyncedEvidence deletes all uploaded evidence in one transaction,
// including owner index entries, and returns the number removed.
func (s *Storage) PurgeSyncedEvidence(ctx context.Context) (int, error) {
	db := s.handle()
	if db == nil {
		return 0, storage.ErrStorageClosed
	}

	removed := 0
	err := db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvidence)
		idx := tx.Bucket(bucketEvidenceIdx)
		owner := tx.Bucket(bucketEvidenceTask)

		prefix := []byte(boolFlag(true) + idxSep)
		var ids [][]byte
		var idxKeys [][]byte
		c := idx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			idxKeys = append(idxKeys, append([]byte(nil), k...))
			ids = append(ids, append([]byte(nil), v...))
		}

		for i, id := range ids {
			data := bucket.Get(id)
			if data != nil {
				var ev models.OfflineEvidence
				if err := json.Unmarshal(data, &ev); err != nil {
					return fmt.Errorf("failed to unmarshal evidence: %w", err)
				}
				if err := owner.Delete(evidenceOwnerKey(&ev)); err != nil {
					return fmt.Errorf("failed to drop owner index entry: %w", err)
				}
			}
			if err := bucket.Delete(id); err != nil {
				return fmt.Errorf("failed to delete evidence: %w", err)
			}
			if err := idx.Delete(idxKeys[i]); err != nil {
				return fmt.Errorf("failed to delete index entry: %w", err)
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge synced evidence: %w", err)
	}

	return removed, nil
}

package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
)

func auditIdxKey(ev *models.OfflineAuditEvent) []byte {
	return idxKey(boolFlag(ev.Synced), idxTime(ev.OccurredAt.UnixNano()), ev.ID)
}

// InsertAuditEvent stores an audit event with its index entry.
func (s *Storage) InsertAuditEvent(ctx context.Context, ev *models.OfflineAuditEvent) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAudit)
		if bucket.Get([]byte(ev.ID)) != nil {
			return storage.ErrDuplicateID
		}
		if err := bucket.Put([]byte(ev.ID), data); err != nil {
			return fmt.Errorf("failed to save audit event: %w", err)
		}
		return tx.Bucket(bucketAuditIdx).Put(auditIdxKey(ev), []byte(ev.ID))
	})
}

// GetAuditEvent retrieves an audit event by id.
func (s *Storage) GetAuditEvent(ctx context.Context, id string) (*models.OfflineAuditEvent, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var ev *models.OfflineAuditEvent

	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAudit).Get([]byte(id))
		if data == nil {
			return storage.ErrAuditEventNotFound
		}
		ev = &models.OfflineAuditEvent{}
		if err := json.Unmarshal(data, ev); err != nil {
			return fmt.Errorf("failed to unmarshal audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ev, nil
}

// ListUnsyncedAuditEvents returns events awaiting upload, oldest first.
func (s *Storage) ListUnsyncedAuditEvents(ctx context.Context) ([]*models.OfflineAuditEvent, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var events []*models.OfflineAuditEvent

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAudit)
		prefix := []byte(boolFlag(false) + idxSep)
		return scanPrefix(tx.Bucket(bucketAuditIdx), prefix, func(id []byte) error {
			data := bucket.Get(id)
			if data == nil {
				return fmt.Errorf("index points at missing audit event %s", id)
			}
			var ev models.OfflineAuditEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("failed to unmarshal audit event: %w", err)
			}
			events = append(events, &ev)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced audit events: %w", err)
	}

	return events, nil
}

// MarkAuditEventSynced flips the synced flag.
func (s *Storage) MarkAuditEventSynced(ctx context.Context, id string) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAudit)
		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrAuditEventNotFound
		}

		var ev models.OfflineAuditEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("failed to unmarshal audit event: %w", err)
		}
		if ev.Synced {
			return nil
		}

		idx := tx.Bucket(bucketAuditIdx)
		if err := idx.Delete(auditIdxKey(&ev)); err != nil {
			return fmt.Errorf("failed to drop old index entry: %w", err)
		}

		ev.Synced = true
		updated, err := json.Marshal(&ev)
		if err != nil {
			return fmt.Errorf("failed to marshal audit event: %w", err)
		}
		if err := bucket.Put([]byte(id), updated); err != nil {
			return fmt.Errorf("failed to save audit event: %w", err)
		}
		return idx.Put(auditIdxKey(&ev), []byte(id))
	})
}

// CountUnsyncedAuditEvents counts events awaiting upload using only the index.
func (s *Storage) CountUnsyncedAuditEvents(ctx context.Context) (int, error) {
	db := s.handle()
	if db == nil {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := db.View(func(tx *bbolt.Tx) error {
		prefix := []byte(boolFlag(false) + idxSep)
		return scanPrefix(tx.Bucket(bucketAuditIdx), prefix, func(id []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced audit events: %w", err)
	}

	return count, nil
}

// PurgeSyncedAuditEvents deletes all uploaded audit events in one
// transaction and returns the number removed.
func (s *Storage) PurgeSyncedAuditEvents(ctx context.Context) (int, error) {
	db := s.handle()
	if db == nil {
		return 0, storage.ErrStorageClosed
	}

	removed := 0
	err := db.Update(func(tx *bbolt.Tx) error {
		var err error
		prefix := []byte(boolFlag(true) + idxSep)
		removed, err = purgePrefix(tx.Bucket(bucketAuditIdx), tx.Bucket(bucketAudit), prefix)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge synced audit events: %w", err)
	}

	return removed, nil
}

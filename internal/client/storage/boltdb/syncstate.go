package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
)

// keySyncState is the single well-known key in the sync_state bucket.
var keySyncState = []byte("current")

// SaveSyncState overwrites the per-installation summary record wholesale.
func (s *Storage) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSyncState).Put(keySyncState, data)
	})
}

// GetSyncState retrieves the summary record.
func (s *Storage) GetSyncState(ctx context.Context) (*models.SyncState, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var state *models.SyncState

	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSyncState).Get(keySyncState)
		if data == nil {
			return storage.ErrSyncStateNotFound
		}
		state = &models.SyncState{}
		if err := json.Unmarshal(data, state); err != nil {
			return fmt.Errorf("failed to unmarshal sync state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

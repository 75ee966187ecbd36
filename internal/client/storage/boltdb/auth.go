package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/caresync-io/caresync/internal/client/storage"
)

// keyAuth is the single well-known key in the auth bucket.
var keyAuth = []byte("session")

// SaveAuth stores the device session.
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal auth data: %w", err)
	}

	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAuth).Put(keyAuth, data)
	})
}

// GetAuth retrieves the stored device session.
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	db := s.handle()
	if db == nil {
		return nil, storage.ErrStorageClosed
	}

	var auth *storage.AuthData

	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAuth).Get(keyAuth)
		if data == nil {
			return storage.ErrAuthNotFound
		}
		auth = &storage.AuthData{}
		if err := json.Unmarshal(data, auth); err != nil {
			return fmt.Errorf("failed to unmarshal auth data: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return auth, nil
}

// DeleteAuth removes the stored device session (logout).
func (s *Storage) DeleteAuth(ctx context.Context) error {
	db := s.handle()
	if db == nil {
		return storage.ErrStorageClosed
	}

	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAuth).Delete(keyAuth)
	})
}

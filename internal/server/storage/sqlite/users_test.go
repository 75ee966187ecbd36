package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresync-io/caresync/internal/server/storage"
)

func TestStorage_CreateUser(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	user := &storage.User{
		CreatedAt:    time.Now().UTC(),
		ID:           "user-1",
		Username:     "nurse.joy",
		PasswordHash: "$2a$10$hash",
	}
	require.NoError(t, s.CreateUser(ctx, user))

	stored, err := s.GetUserByUsername(ctx, "nurse.joy")
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.ID)
	assert.Nil(t, stored.LastLogin)

	byID, err := s.GetUserByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "nurse.joy", byID.Username)
}

func TestStorage_CreateUser_Duplicate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	user := &storage.User{
		CreatedAt:    time.Now().UTC(),
		ID:           "user-1",
		Username:     "nurse.joy",
		PasswordHash: "$2a$10$hash",
	}
	require.NoError(t, s.CreateUser(ctx, user))

	dup := &storage.User{
		CreatedAt:    time.Now().UTC(),
		ID:           "user-2",
		Username:     "nurse.joy",
		PasswordHash: "$2a$10$other",
	}
	err := s.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
}

func TestStorage_GetUser_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetUserByUsername(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestStorage_UpdateLastLogin(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	user := &storage.User{
		CreatedAt:    time.Now().UTC(),
		ID:           "user-1",
		Username:     "nurse.joy",
		PasswordHash: "$2a$10$hash",
	}
	require.NoError(t, s.CreateUser(ctx, user))

	loginAt := time.Now().UTC()
	require.NoError(t, s.UpdateLastLogin(ctx, "user-1", loginAt))

	stored, err := s.GetUserByID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)

	err = s.UpdateLastLogin(ctx, "missing", loginAt)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

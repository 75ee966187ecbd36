package auth

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpClient "github.com/caresync-io/caresync/internal/client/api"
	"github.com/caresync-io/caresync/internal/client/storage/boltdb"
	"github.com/caresync-io/caresync/pkg/api"
)

type fakeAPI struct {
	httpClient.ClientAPI

	RegisterFunc func(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	LoginFunc    func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
}

func (f *fakeAPI) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	return f.RegisterFunc(ctx, req)
}

func (f *fakeAPI) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	return f.LoginFunc(ctx, req)
}

func newTestService(t *testing.T, remote *fakeAPI) *Service {
	t.Helper()

	store := boltdb.New(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return NewService(remote, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestService_LoginPersistsSession(t *testing.T) {
	expires := time.Now().Add(time.Hour).Unix()
	remote := &fakeAPI{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			assert.Equal(t, "nurse.joy", req.Username)
			return &api.TokenResponse{
				AccessToken: "jwt-token",
				UserID:      "user-1",
				Username:    req.Username,
				ExpiresAt:   expires,
			}, nil
		},
	}
	s := newTestService(t, remote)
	ctx := context.Background()

	auth, err := s.Login(ctx, "nurse.joy", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", auth.AccessToken)

	session, err := s.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)

	ok, err := s.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_LoginRejectsRemoteFailure(t *testing.T) {
	remote := &fakeAPI{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return nil, &httpClient.Error{Kind: api.ErrKindUnauthorized, Message: "invalid credentials"}
		},
	}
	s := newTestService(t, remote)

	_, err := s.Login(context.Background(), "nurse.joy", "wrong")
	require.Error(t, err)

	// A failed login leaves no session behind.
	_, err = s.Session(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestService_SessionExpiry(t *testing.T) {
	remote := &fakeAPI{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return &api.TokenResponse{
				AccessToken: "jwt-token",
				Username:    req.Username,
				ExpiresAt:   time.Now().Add(time.Hour).Unix(),
			}, nil
		},
	}
	s := newTestService(t, remote)
	ctx := context.Background()

	_, err := s.Login(ctx, "nurse.joy", "secret")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	auth, err := s.Session(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)
	// Identity fields stay available for status display.
	assert.Equal(t, "nurse.joy", auth.Username)

	ok, err := s.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Logout(t *testing.T) {
	remote := &fakeAPI{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return &api.TokenResponse{
				AccessToken: "jwt-token",
				Username:    req.Username,
				ExpiresAt:   time.Now().Add(time.Hour).Unix(),
			}, nil
		},
	}
	s := newTestService(t, remote)
	ctx := context.Background()

	_, err := s.Login(ctx, "nurse.joy", "secret")
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx))

	_, err = s.Session(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestService_Register(t *testing.T) {
	remote := &fakeAPI{
		RegisterFunc: func(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
			return &api.RegisterResponse{UserID: "user-1", Username: req.Username}, nil
		},
	}
	s := newTestService(t, remote)

	resp, err := s.Register(context.Background(), "nurse.joy", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.UserID)

	_, err = s.Register(context.Background(), "", "secret")
	assert.ErrorContains(t, err, "required")
}

// Package auth manages the device session: registering, logging in, and
// keeping the access token in local storage so queued work can replay later
// without the caregiver present.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	httpClient "github.com/caresync-io/caresync/internal/client/api"
	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/pkg/api"
)

// ErrNotAuthenticated is returned when no usable session is stored.
var ErrNotAuthenticated = errors.New("not authenticated, run 'caresync login' first")

// ErrSessionExpired is returned when the stored token is past its expiry.
var ErrSessionExpired = errors.New("session expired, run 'caresync login' again")

// Service handles authentication against the server and session persistence.
type Service struct {
	apiClient httpClient.ClientAPI
	store     storage.AuthStorage
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates an auth service.
func NewService(apiClient httpClient.ClientAPI, store storage.AuthStorage, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a caregiver account. It does not log the device in.
func (s *Service) Register(ctx context.Context, username, password string) (*api.RegisterResponse, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	resp, err := s.apiClient.Register(ctx, api.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Account registered", "username", resp.Username)
	return resp, nil
}

// Login authenticates and persists the device session.
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	resp, err := s.apiClient.Login(ctx, api.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	auth := &storage.AuthData{
		Username:    resp.Username,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
		ExpiresAt:   resp.ExpiresAt,
	}
	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("Logged in", "username", auth.Username)
	return auth, nil
}

// Logout removes the local session. Queued operations stay in place; they
// replay after the next login.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteAuth(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("Logged out")
	return nil
}

// Session returns the stored session, checking expiry against the wall
// clock. An expired session is reported but not deleted: its identity fields
// still matter for status display.
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	auth, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}

	if auth.ExpiresAt > 0 && s.now().Unix() >= auth.ExpiresAt {
		return auth, ErrSessionExpired
	}
	return auth, nil
}

// IsAuthenticated reports whether a non-expired session exists.
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	_, err := s.Session(ctx)
	if errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrSessionExpired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

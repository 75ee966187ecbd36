package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresync-io/caresync/pkg/api"
)

func TestClient_Transition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/tasks/task-1/transition", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.TransitionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, api.ProvenanceReplay, req.Provenance)
		assert.EqualValues(t, 3, req.ExpectedVersion)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.TransitionResponse{
			Task: api.Task{ID: req.TaskID, State: req.TargetState, Version: 4},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Transition(context.Background(), "test-token", api.TransitionRequest{
		TaskID:          "task-1",
		TargetState:     "completed",
		OperationID:     "op-1",
		Provenance:      api.ProvenanceReplay,
		ExpectedVersion: 3,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, resp.Task.Version)
	assert.False(t, resp.AlreadyApplied)
}

func TestClient_Transition_VersionConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Kind:           api.ErrKindVersionConflict,
			Message:        "expected version 3, server at 5",
			CurrentVersion: 5,
			CurrentState:   json.RawMessage(`{"state":"skipped","version":5}`),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Transition(context.Background(), "test-token", api.TransitionRequest{
		TaskID:          "task-1",
		ExpectedVersion: 3,
	})
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, api.ErrKindVersionConflict, apiErr.Kind)
	assert.EqualValues(t, 5, apiErr.CurrentVersion)
	assert.JSONEq(t, `{"state":"skipped","version":5}`, string(apiErr.CurrentState))
	assert.False(t, apiErr.Transient())
}

func TestClient_TransportFailureIsTransient(t *testing.T) {
	// Nothing listens here.
	client := NewClient("http://127.0.0.1:1")

	err := client.Health(context.Background())
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, api.ErrKindNetwork, apiErr.Kind)
	assert.True(t, apiErr.Transient())
}

func TestClient_UndecodableErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Health(context.Background())
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, api.ErrKindInternal, apiErr.Kind)
	assert.Contains(t, apiErr.Message, "status 502")
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.TokenResponse{
			AccessToken: "jwt-token",
			UserID:      "user-1",
			Username:    "nurse.joy",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Login(context.Background(), api.LoginRequest{Username: "nurse.joy", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", resp.AccessToken)
	assert.Equal(t, "user-1", resp.UserID)
}

func TestClient_Login_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Kind:    api.ErrKindUnauthorized,
			Message: "invalid credentials",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Login(context.Background(), api.LoginRequest{Username: "nurse.joy", Password: "wrong"})
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, api.ErrKindUnauthorized, apiErr.Kind)
}

func TestClient_ListTasks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/tasks", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.TaskListResponse{
			Tasks: []api.Task{
				{ID: "task-1", Title: "Morning medication", State: "scheduled", Version: 1},
				{ID: "task-2", Title: "Physio", State: "completed", Version: 3},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.ListTasks(context.Background(), "test-token")
	require.NoError(t, err)
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "Morning medication", resp.Tasks[0].Title)
}

func TestClient_UploadEvidence_Duplicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/evidence", r.URL.Path)

		var req api.EvidenceUploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.UploadResponse{ID: req.ID, Duplicate: true})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.UploadEvidence(context.Background(), "test-token", api.EvidenceUploadRequest{
		ID:     "ev-1",
		TaskID: "task-1",
		Kind:   "numeric",
	})
	require.NoError(t, err)
	assert.Equal(t, "ev-1", resp.ID)
	assert.True(t, resp.Duplicate, "re-uploads are acknowledged, not rejected")
}

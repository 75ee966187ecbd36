package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caresync-io/caresync/pkg/api"
)

//go:generate moq -out client_mock.go . ClientAPI

// ClientAPI defines the remote calls the engine consumes. The transition
// call is the version-checked contract at the heart of the replay protocol;
// the rest are plain uploads and reads.
type ClientAPI interface {
	// Register creates a caregiver account.
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)

	// Login authenticates and returns a device token.
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)

	// ListTasks returns the tasks visible to the device.
	ListTasks(ctx context.Context, accessToken string) (*api.TaskListResponse, error)

	// CreateTask registers a new care task.
	CreateTask(ctx context.Context, accessToken string, req api.CreateTaskRequest) (*api.Task, error)

	// Transition performs the version-checked state transition. A version
	// mismatch comes back as *Error with Kind VERSION_CONFLICT carrying the
	// server's current version and state.
	Transition(ctx context.Context, accessToken string, req api.TransitionRequest) (*api.TransitionResponse, error)

	// UploadEvidence pushes one captured artifact.
	UploadEvidence(ctx context.Context, accessToken string, req api.EvidenceUploadRequest) (*api.UploadResponse, error)

	// UploadAudit pushes one audit event.
	UploadAudit(ctx context.Context, accessToken string, req api.AuditUploadRequest) (*api.UploadResponse, error)

	// Health probes server reachability. Used as the connectivity signal.
	Health(ctx context.Context) error
}

// Client is the HTTP implementation of ClientAPI.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// defaultTimeout bounds every remote call. An unbounded hang would stall the
// whole sync pass; past the deadline the call fails as a transient network
// error and is retried like any other.
const defaultTimeout = 30 * time.Second

// NewClient creates a new API client for the given server base URL.
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, defaultTimeout)
}

// NewClientWithTimeout creates a client with a custom call timeout.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Register creates a caregiver account.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login authenticates and returns a device token.
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// ListTasks returns the tasks visible to the device.
func (c *Client) ListTasks(ctx context.Context, accessToken string) (*api.TaskListResponse, error) {
	var resp api.TaskListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/tasks", accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("list tasks request failed: %w", err)
	}
	return &resp, nil
}

// CreateTask registers a new care task.
func (c *Client) CreateTask(ctx context.Context, accessToken string, req api.CreateTaskRequest) (*api.Task, error) {
	var resp api.Task
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/tasks", accessToken, req, &resp); err != nil {
		return nil, fmt.Errorf("create task request failed: %w", err)
	}
	return &resp, nil
}

// Transition performs the version-checked state transition.
func (c *Client) Transition(ctx context.Context, accessToken string, req api.TransitionRequest) (*api.TransitionResponse, error) {
	var resp api.TransitionResponse
	path := fmt.Sprintf("/api/v1/tasks/%s/transition", req.TaskID)
	if err := c.doRequest(ctx, http.MethodPost, path, accessToken, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadEvidence pushes one captured artifact.
func (c *Client) UploadEvidence(ctx context.Context, accessToken string, req api.EvidenceUploadRequest) (*api.UploadResponse, error) {
	var resp api.UploadResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/evidence", accessToken, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadAudit pushes one audit event.
func (c *Client) UploadAudit(ctx context.Context, accessToken string, req api.AuditUploadRequest) (*api.UploadResponse, error) {
	var resp api.UploadResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/audit", accessToken, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health probes server reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/health", "", nil, nil)
}

// doRequest performs an HTTP request with the JSON envelope. Transport
// failures become transient *Error values; non-2xx responses are decoded
// into structured *Error values from the server's ErrorResponse body.
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Kind != "" {
			return &Error{
				Kind:           errResp.Kind,
				Message:        errResp.Message,
				CurrentVersion: errResp.CurrentVersion,
				CurrentState:   errResp.CurrentState,
			}
		}
		return &Error{
			Kind:    api.ErrKindInternal,
			Message: fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

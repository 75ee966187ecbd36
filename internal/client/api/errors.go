package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caresync-io/caresync/pkg/api"
)

// Error is a structured remote failure. The sync driver branches on Kind:
// network errors are retried, version conflicts become conflict records,
// validation errors are permanent.
type Error struct {
	Kind           api.ErrorKind
	Message        string
	CurrentVersion int64
	CurrentState   json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Transient reports whether the failure should be retried with backoff.
func (e *Error) Transient() bool {
	return e.Kind == api.ErrKindNetwork
}

// networkError wraps a transport-level failure (dial, timeout, connection
// reset) as a transient remote error.
func networkError(err error) *Error {
	return &Error{Kind: api.ErrKindNetwork, Message: err.Error()}
}

// AsError extracts a structured remote error from an error chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

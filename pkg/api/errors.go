package api

import "encoding/json"

// ErrorKind classifies a remote failure. The client's retry and conflict
// logic branches on this value, so kinds are part of the wire contract.
type ErrorKind string

const (
	ErrKindNetwork         ErrorKind = "NETWORK_ERROR"
	ErrKindVersionConflict ErrorKind = "VERSION_CONFLICT"
	ErrKindValidation      ErrorKind = "VALIDATION_ERROR"
	ErrKindUnauthorized    ErrorKind = "UNAUTHORIZED"
	ErrKindNotFound        ErrorKind = "NOT_FOUND"
	ErrKindInternal        ErrorKind = "INTERNAL_ERROR"
)

// ErrorResponse is the structured error body returned by the server.
// On a version conflict it carries the server's current version and state so
// the client can materialize a conflict record without a second round trip.
type ErrorResponse struct {
	Kind           ErrorKind       `json:"kind"`
	Message        string          `json:"message"`
	CurrentVersion int64           `json:"current_version,omitempty"`
	CurrentState   json.RawMessage `json:"current_state,omitempty"`
}

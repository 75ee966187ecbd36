package storage

import (
	"errors"
	"fmt"

	"github.com/caresync-io/caresync/internal/models"
)

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTaskNotFound indicates that the care task was not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidState indicates a target state the task model does not know
	ErrInvalidState = errors.New("invalid target state")
)

// VersionMismatchError is returned when a transition's expected version does
// not match the task's current version and the operation is not in the
// applied ledger. It carries the current row so the handler can hand the
// client both sides of the conflict in one response.
type VersionMismatchError struct {
	Task            *models.CareTask
	ExpectedVersion int64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch for task %s: expected %d, current %d",
		e.Task.ID, e.ExpectedVersion, e.Task.Version)
}

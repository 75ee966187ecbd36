// Package storage defines the server-side persistence contracts.
package storage

import (
	"context"
	"time"

	"github.com/caresync-io/caresync/internal/models"
)

// User is a caregiver account.
type User struct {
	CreatedAt    time.Time
	LastLogin    *time.Time
	ID           string
	Username     string
	PasswordHash string
}

// EvidenceRecord is an uploaded care artifact.
type EvidenceRecord struct {
	CapturedAt time.Time
	ReceivedAt time.Time
	ID         string
	TaskID     string
	ActorID    string
	Kind       string
	Payload    []byte
}

// AuditRecord is an uploaded audit event.
type AuditRecord struct {
	OccurredAt time.Time
	ReceivedAt time.Time
	ID         string
	EntityType string
	EntityID   string
	Action     string
	ActorID    string
	Metadata   map[string]string
}

// TransitionParams carries one version-checked state transition.
type TransitionParams struct {
	InitiatedAt     time.Time
	TaskID          string
	TargetState     string
	ActionKind      string
	Note            string
	OperationID     string
	ActorID         string
	ExpectedVersion int64
}

// UserStorage persists caregiver accounts.
type UserStorage interface {
	// CreateUser inserts a new account.
	// Returns ErrUserAlreadyExists on a duplicate username.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByUsername retrieves an account by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByID retrieves an account by id.
	GetUserByID(ctx context.Context, userID string) (*User, error)

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error
}

// TaskStorage persists versioned care tasks and the applied-operation ledger.
type TaskStorage interface {
	// CreateTask inserts a task at version 1 in the scheduled state.
	CreateTask(ctx context.Context, task *models.CareTask) error

	// GetTask retrieves a task by id.
	GetTask(ctx context.Context, id string) (*models.CareTask, error)

	// ListTasks returns all tasks, newest first.
	ListTasks(ctx context.Context) ([]*models.CareTask, error)

	// TransitionTask applies a version-checked transition atomically. The
	// operation id is recorded in the applied ledger; replaying an id that
	// already applied returns the current row with alreadyApplied=true
	// instead of a mismatch. A genuine mismatch returns
	// *VersionMismatchError.
	TransitionTask(ctx context.Context, params TransitionParams) (task *models.CareTask, alreadyApplied bool, err error)
}

// EvidenceStorage persists uploaded artifacts. Inserts are idempotent on id.
type EvidenceStorage interface {
	// InsertEvidence stores an artifact. A repeated id is acknowledged with
	// duplicate=true and the stored row is left untouched.
	InsertEvidence(ctx context.Context, rec *EvidenceRecord) (duplicate bool, err error)

	// ListEvidenceByTask returns artifacts owned by a task, oldest first.
	ListEvidenceByTask(ctx context.Context, taskID string) ([]*EvidenceRecord, error)
}

// AuditStorage persists uploaded audit events. Inserts are idempotent on id.
type AuditStorage interface {
	// InsertAuditEvent stores an event. A repeated id is acknowledged with
	// duplicate=true and the stored row is left untouched.
	InsertAuditEvent(ctx context.Context, rec *AuditRecord) (duplicate bool, err error)

	// ListAuditEvents returns events for an entity, oldest first.
	ListAuditEvents(ctx context.Context, entityID string) ([]*AuditRecord, error)
}

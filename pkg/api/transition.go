package api

import "time"

// Provenance distinguishes a live call from a replayed queue entry.
type Provenance string

const (
	ProvenanceDirect Provenance = "direct"
	ProvenanceReplay Provenance = "replay"
)

// Task mirrors the server's versioned care task on the wire.
type Task struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	ResidentID string    `json:"resident_id"`
	Title      string    `json:"title"`
	State      string    `json:"state"`
	Version    int64     `json:"version"`
}

// TransitionRequest asks the server to move a task to a target state,
// guarded by an expected version (compare-and-swap). OperationID doubles as
// an idempotency token: the server remembers applied operation ids so a
// replayed already-applied request is reported as such instead of being
// applied twice or mistaken for a conflict.
type TransitionRequest struct {
	InitiatedAt     time.Time  `json:"initiated_at"`
	TaskID          string     `json:"task_id"`
	TargetState     string     `json:"target_state"`
	ActionKind      string     `json:"action_kind"`
	Note            string     `json:"note,omitempty"`
	OperationID     string     `json:"operation_id"`
	Provenance      Provenance `json:"provenance"`
	ExpectedVersion int64      `json:"expected_version"`
}

// TransitionResponse reports the task after the transition. AlreadyApplied
// is true when the operation id was found in the server's ledger, meaning
// this exact operation took effect on an earlier attempt.
type TransitionResponse struct {
	Task           Task `json:"task"`
	AlreadyApplied bool `json:"already_applied"`
}

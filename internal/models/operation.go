package models

import "time"

// OperationStatus describes where a queued operation is in its lifecycle.
type OperationStatus string

const (
	// StatusPending means the operation waits for the next sync pass.
	StatusPending OperationStatus = "pending"
	// StatusSyncing means a sync pass has picked the operation up and the
	// remote call is in flight (or was in flight when the process died).
	StatusSyncing OperationStatus = "syncing"
	// StatusSynced means the remote accepted the operation.
	StatusSynced OperationStatus = "synced"
	// StatusFailed means the operation hit a conflict, a permanent
	// rejection, or exhausted its retry budget. Terminal until re-queued.
	StatusFailed OperationStatus = "failed"
)

// Terminal reports whether no further automatic transition happens.
func (s OperationStatus) Terminal() bool {
	return s == StatusSynced || s == StatusFailed
}

// ValidStatusTransition reports whether a queued operation may move from one
// status to another. Transitions are monotonic with a single exception:
// syncing falls back to pending on a transient remote failure.
func ValidStatusTransition(from, to OperationStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusSyncing || to == StatusFailed
	case StatusSyncing:
		return to == StatusSynced || to == StatusFailed || to == StatusPending
	case StatusFailed:
		// Manual re-queue of a failed operation.
		return to == StatusPending
	default:
		return false
	}
}

// OperationKind tags the payload variant carried by a queued operation.
type OperationKind string

const (
	KindStateUpdate     OperationKind = "state_update"
	KindEvidenceCapture OperationKind = "evidence_capture"
	KindAuditEvent      OperationKind = "audit_event"
	KindCareAction      OperationKind = "care_action"
)

// KnownKind reports whether k is one of the payload variants the replay
// logic understands.
func KnownKind(k OperationKind) bool {
	switch k {
	case KindStateUpdate, KindEvidenceCapture, KindAuditEvent, KindCareAction:
		return true
	}
	return false
}

// QueuedOperation is a local mutation recorded while offline (or after a
// failed direct call) that the sync driver later replays against the server.
// The ID is client-generated and stays stable across retries.
type QueuedOperation struct {
	CreatedAt       time.Time       `json:"created_at"`       // CreatedAt defines replay order within an entity
	NextAttemptAt   time.Time       `json:"next_attempt_at"`  // NextAttemptAt gates retries after transient failures
	ID              string          `json:"id"`               // ID unique operation id (UUID), doubles as idempotency token
	EntityID        string          `json:"entity_id"`        // EntityID the task/resident the operation targets
	ActorID         string          `json:"actor_id"`         // ActorID caregiver who initiated the action
	Kind            OperationKind   `json:"kind"`             // Kind selects the payload variant
	Status          OperationStatus `json:"status"`           // Status current lifecycle state
	LastError       string          `json:"last_error"`       // LastError message from the most recent failure
	Payload         []byte          `json:"payload"`          // Payload kind-specific JSON document
	ExpectedVersion int64           `json:"expected_version"` // ExpectedVersion optimistic-concurrency version for CAS kinds
	RetryCount      int             `json:"retry_count"`      // RetryCount transient failures so far
}

// Clone returns a deep copy of the operation.
func (op *QueuedOperation) Clone() *QueuedOperation {
	payload := make([]byte, len(op.Payload))
	copy(payload, op.Payload)

	clone := *op
	clone.Payload = payload
	return &clone
}

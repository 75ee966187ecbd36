package models

import "time"

// ResolutionOutcome records which side won a resolved conflict.
type ResolutionOutcome string

const (
	ResolutionLocal  ResolutionOutcome = "local"
	ResolutionServer ResolutionOutcome = "server"
	ResolutionMerged ResolutionOutcome = "merged"
)

// KnownResolutionOutcome reports whether o is a supported outcome.
func KnownResolutionOutcome(o ResolutionOutcome) bool {
	switch o {
	case ResolutionLocal, ResolutionServer, ResolutionMerged:
		return true
	}
	return false
}

// ConflictRecord captures a version mismatch discovered during replay.
// Created exactly once per detected mismatch and never deleted
// automatically: resolved records stay behind as the audit trail of
// reconciliation decisions.
type ConflictRecord struct {
	DetectedAt  time.Time         `json:"detected_at"`           // DetectedAt when the mismatch was seen
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"` // ResolvedAt when a decision was recorded
	ID          string            `json:"id"`                    // ID unique conflict id (UUID)
	OperationID string            `json:"operation_id"`          // OperationID the queued operation that hit the mismatch
	EntityID    string            `json:"entity_id"`             // EntityID the contested entity
	Outcome     ResolutionOutcome `json:"outcome,omitempty"`     // Outcome decision, set on resolve
	LocalValue  []byte            `json:"local_value"`           // LocalValue the value the client had in flight (JSON)
	ServerValue []byte            `json:"server_value"`          // ServerValue the server's conflicting value (JSON)
	Resolved    bool              `json:"resolved"`              // Resolved true once a decision is recorded
}

package models

import "time"

// Care task states. The server is the authority on which transitions are
// legal; clients only pick a target state.
const (
	TaskStateScheduled  = "scheduled"
	TaskStateInProgress = "in_progress"
	TaskStateCompleted  = "completed"
	TaskStateSkipped    = "skipped"
)

// KnownTaskState reports whether s is a recognized care task state.
func KnownTaskState(s string) bool {
	switch s {
	case TaskStateScheduled, TaskStateInProgress, TaskStateCompleted, TaskStateSkipped:
		return true
	}
	return false
}

// CareTask is the authoritative, versioned entity held by the server.
// Version increases by one on every applied transition and is the value
// clients record as ExpectedVersion for optimistic-concurrency writes.
type CareTask struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	ResidentID string    `json:"resident_id"`
	Title      string    `json:"title"`
	State      string    `json:"state"`
	Version    int64     `json:"version"`
}

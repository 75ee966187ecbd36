package api

import "time"

// EvidenceUploadRequest pushes one captured evidence artifact to the server.
// Uploads are never rejected on version grounds: evidence records facts
// already committed on the device.
type EvidenceUploadRequest struct {
	CapturedAt time.Time `json:"captured_at"`
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	ActorID    string    `json:"actor_id"`
	Kind       string    `json:"kind"`
	Payload    []byte    `json:"payload"`
}

// AuditUploadRequest pushes one locally recorded audit event to the server.
type AuditUploadRequest struct {
	OccurredAt time.Time         `json:"occurred_at"`
	ID         string            `json:"id"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Action     string            `json:"action"`
	ActorID    string            `json:"actor_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// UploadResponse acknowledges an upload. Duplicate is true when the record
// id was already stored, which clients treat the same as success.
type UploadResponse struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

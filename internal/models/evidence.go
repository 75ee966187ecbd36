package models

import "time"

// MediaKind classifies the artifact captured as evidence.
type MediaKind string

const (
	MediaPhoto   MediaKind = "photo"
	MediaAudio   MediaKind = "audio"
	MediaNumeric MediaKind = "numeric"
	MediaText    MediaKind = "text"
)

// KnownMediaKind reports whether k is a supported evidence media kind.
func KnownMediaKind(k MediaKind) bool {
	switch k {
	case MediaPhoto, MediaAudio, MediaNumeric, MediaText:
		return true
	}
	return false
}

// OfflineEvidence is an artifact captured on the device while offline.
// Records are append-only: once written, only the Synced flag ever changes,
// so the local copy stays a faithful evidentiary record.
type OfflineEvidence struct {
	CapturedAt time.Time `json:"captured_at"` // CapturedAt capture timestamp
	ID         string    `json:"id"`          // ID unique evidence id (UUID)
	TaskID     string    `json:"task_id"`     // TaskID owning task/action reference
	ActorID    string    `json:"actor_id"`    // ActorID caregiver who captured it
	Kind       MediaKind `json:"kind"`        // Kind media kind
	Payload    []byte    `json:"payload"`     // Payload raw or encoded artifact bytes
	Synced     bool      `json:"synced"`      // Synced true once uploaded to the server
}

// OfflineAuditEvent records a local audit fact awaiting upload. Same
// append-only discipline as evidence.
type OfflineAuditEvent struct {
	OccurredAt time.Time         `json:"occurred_at"` // OccurredAt event timestamp
	ID         string            `json:"id"`          // ID unique event id (UUID)
	EntityType string            `json:"entity_type"` // EntityType kind of entity described (task, resident, ...)
	EntityID   string            `json:"entity_id"`   // EntityID id of the described entity
	Action     string            `json:"action"`      // Action label of what happened
	ActorID    string            `json:"actor_id"`    // ActorID who did it
	Metadata   map[string]string `json:"metadata"`    // Metadata free-form context
	Synced     bool              `json:"synced"`      // Synced true once uploaded to the server
}

package models

import "time"

// SyncState is the single per-installation summary record. It is recomputed
// and overwritten wholesale after every sync pass, never partially mutated.
type SyncState struct {
	LastSyncAt          time.Time `json:"last_sync_at"`         // LastSyncAt completion time of the last pass
	PendingOperations   int       `json:"pending_operations"`   // PendingOperations queue entries still pending
	UnresolvedConflicts int       `json:"unresolved_conflicts"` // UnresolvedConflicts conflict records awaiting a decision
	UnsyncedEvidence    int       `json:"unsynced_evidence"`    // UnsyncedEvidence evidence records awaiting upload
	UnsyncedAuditEvents int       `json:"unsynced_audit"`       // UnsyncedAuditEvents audit records awaiting upload
}

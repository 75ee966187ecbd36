package storage

import "errors"

// Common client storage errors
var (
	// ErrDuplicateID indicates an insert with an id that already exists
	ErrDuplicateID = errors.New("record with this id already exists")

	// ErrOperationNotFound indicates the queued operation was not found
	ErrOperationNotFound = errors.New("queued operation not found")

	// ErrEvidenceNotFound indicates the evidence record was not found
	ErrEvidenceNotFound = errors.New("evidence record not found")

	// ErrAuditEventNotFound indicates the audit event was not found
	ErrAuditEventNotFound = errors.New("audit event not found")

	// ErrConflictNotFound indicates the conflict record was not found
	ErrConflictNotFound = errors.New("conflict record not found")

	// ErrSyncStateNotFound indicates no sync pass has completed yet
	ErrSyncStateNotFound = errors.New("sync state not found")

	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrStorageClosed indicates that storage is closed or not opened
	ErrStorageClosed = errors.New("storage is closed")
)

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresync-io/caresync/internal/server/storage"
)

func TestStorage_InsertEvidence_Idempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &storage.EvidenceRecord{
		CapturedAt: time.Now().UTC(),
		ReceivedAt: time.Now().UTC(),
		ID:         "ev-1",
		TaskID:     "task-1",
		ActorID:    "caregiver-1",
		Kind:       "numeric",
		Payload:    []byte("37.2"),
	}

	duplicate, err := s.InsertEvidence(ctx, rec)
	require.NoError(t, err)
	assert.False(t, duplicate)

	// A client retry after a crash re-sends the same id.
	modified := *rec
	modified.Payload = []byte("tampered")
	duplicate, err = s.InsertEvidence(ctx, &modified)
	require.NoError(t, err)
	assert.True(t, duplicate)

	// The stored row is the original.
	records, err := s.ListEvidenceByTask(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("37.2"), records[0].Payload)
}

func TestStorage_InsertAuditEvent_Idempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &storage.AuditRecord{
		OccurredAt: time.Now().UTC(),
		ReceivedAt: time.Now().UTC(),
		ID:         "audit-1",
		EntityType: "task",
		EntityID:   "task-1",
		Action:     "medication_given",
		ActorID:    "caregiver-1",
		Metadata:   map[string]string{"dose": "5mg"},
	}

	duplicate, err := s.InsertAuditEvent(ctx, rec)
	require.NoError(t, err)
	assert.False(t, duplicate)

	duplicate, err = s.InsertAuditEvent(ctx, rec)
	require.NoError(t, err)
	assert.True(t, duplicate)

	events, err := s.ListAuditEvents(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "5mg", events[0].Metadata["dose"])
}

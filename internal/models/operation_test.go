package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidStatusTransition(t *testing.T) {
	tests := []struct {
		name string
		from OperationStatus
		to   OperationStatus
		want bool
	}{
		{"pending to syncing", StatusPending, StatusSyncing, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to synced skips syncing", StatusPending, StatusSynced, false},
		{"syncing to synced", StatusSyncing, StatusSynced, true},
		{"syncing to failed", StatusSyncing, StatusFailed, true},
		{"syncing back to pending", StatusSyncing, StatusPending, true},
		{"synced is terminal", StatusSynced, StatusPending, false},
		{"failed requeues to pending", StatusFailed, StatusPending, true},
		{"failed to synced", StatusFailed, StatusSynced, false},
		{"unknown status", OperationStatus("limbo"), StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStatusTransition(tt.from, tt.to))
		})
	}
}

func TestOperationStatus_Terminal(t *testing.T) {
	assert.True(t, StatusSynced.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusSyncing.Terminal())
}

func TestKnownKind(t *testing.T) {
	assert.True(t, KnownKind(KindStateUpdate))
	assert.True(t, KnownKind(KindCareAction))
	assert.False(t, KnownKind("teleport"))
}

func TestQueuedOperation_PayloadDecodeGuards(t *testing.T) {
	payload, err := EncodePayload(StateUpdatePayload{TargetState: TaskStateCompleted, Note: "done"})
	require.NoError(t, err)

	op := &QueuedOperation{ID: "op-1", Kind: KindStateUpdate, Payload: payload}

	decoded, err := op.StateUpdate()
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, decoded.TargetState)
	assert.Equal(t, "done", decoded.Note)

	// Decoding through the wrong variant is refused outright.
	_, err = op.EvidenceCapture()
	assert.ErrorContains(t, err, "not evidence_capture")

	_, err = op.AuditEvent()
	assert.Error(t, err)
}

func TestQueuedOperation_TargetState(t *testing.T) {
	payload, err := EncodePayload(CareActionPayload{Action: "give_medication", TargetState: TaskStateCompleted})
	require.NoError(t, err)

	op := &QueuedOperation{ID: "op-1", Kind: KindCareAction, Payload: payload}
	target, err := op.TargetState()
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, target)

	// Sink-upload kinds carry no transition.
	sinkPayload, err := EncodePayload(EvidenceCapturePayload{EvidenceID: "ev-1"})
	require.NoError(t, err)
	sinkOp := &QueuedOperation{ID: "op-2", Kind: KindEvidenceCapture, Payload: sinkPayload}
	target, err = sinkOp.TargetState()
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestQueuedOperation_Clone(t *testing.T) {
	op := &QueuedOperation{ID: "op-1", Kind: KindStateUpdate, Payload: []byte(`{"target_state":"completed"}`)}

	clone := op.Clone()
	clone.Payload[0] = 'X'
	clone.Status = StatusSynced

	assert.Equal(t, byte('{'), op.Payload[0])
	assert.NotEqual(t, op.Status, clone.Status)
}

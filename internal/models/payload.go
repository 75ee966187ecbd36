package models

import (
	"encoding/json"
	"fmt"
)

// StateUpdatePayload moves a care task to a target state.
type StateUpdatePayload struct {
	TargetState string `json:"target_state"`
	Note        string `json:"note,omitempty"`
}

// EvidenceCapturePayload references an OfflineEvidence record awaiting upload.
type EvidenceCapturePayload struct {
	EvidenceID string `json:"evidence_id"`
}

// AuditEventPayload references an OfflineAuditEvent record awaiting upload.
type AuditEventPayload struct {
	AuditEventID string `json:"audit_event_id"`
}

// CareActionPayload is a generic care action that also transitions the task.
type CareActionPayload struct {
	Action      string `json:"action"`
	TargetState string `json:"target_state"`
	Note        string `json:"note,omitempty"`
}

// EncodePayload serializes a kind-specific payload for storage in a
// QueuedOperation.
func EncodePayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// StateUpdate decodes the payload of a state_update operation.
func (op *QueuedOperation) StateUpdate() (*StateUpdatePayload, error) {
	if op.Kind != KindStateUpdate {
		return nil, fmt.Errorf("operation %s is %s, not %s", op.ID, op.Kind, KindStateUpdate)
	}
	var p StateUpdatePayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode state update payload: %w", err)
	}
	return &p, nil
}

// EvidenceCapture decodes the payload of an evidence_capture operation.
func (op *QueuedOperation) EvidenceCapture() (*EvidenceCapturePayload, error) {
	if op.Kind != KindEvidenceCapture {
		return nil, fmt.Errorf("operation %s is %s, not %s", op.ID, op.Kind, KindEvidenceCapture)
	}
	var p EvidenceCapturePayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode evidence capture payload: %w", err)
	}
	return &p, nil
}

// AuditEvent decodes the payload of an audit_event operation.
func (op *QueuedOperation) AuditEvent() (*AuditEventPayload, error) {
	if op.Kind != KindAuditEvent {
		return nil, fmt.Errorf("operation %s is %s, not %s", op.ID, op.Kind, KindAuditEvent)
	}
	var p AuditEventPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode audit event payload: %w", err)
	}
	return &p, nil
}

// CareAction decodes the payload of a care_action operation.
func (op *QueuedOperation) CareAction() (*CareActionPayload, error) {
	if op.Kind != KindCareAction {
		return nil, fmt.Errorf("operation %s is %s, not %s", op.ID, op.Kind, KindCareAction)
	}
	var p CareActionPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode care action payload: %w", err)
	}
	return &p, nil
}

// TargetState returns the state a CAS operation drives the entity to, or ""
// for sink-upload kinds that carry no transition.
func (op *QueuedOperation) TargetState() (string, error) {
	switch op.Kind {
	case KindStateUpdate:
		p, err := op.StateUpdate()
		if err != nil {
			return "", err
		}
		return p.TargetState, nil
	case KindCareAction:
		p, err := op.CareAction()
		if err != nil {
			return "", err
		}
		return p.TargetState, nil
	default:
		return "", nil
	}
}

// Package dispatch is the client's front door for care actions. Online, an
// action goes straight to the server; offline (or when the direct call dies
// on the wire) it lands in the durable queue for the next sync pass.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	httpClient "github.com/caresync-io/caresync/internal/client/api"
	"github.com/caresync-io/caresync/internal/client/netstate"
	"github.com/caresync-io/caresync/internal/client/queue"
	"github.com/caresync-io/caresync/internal/client/sink"
	"github.com/caresync-io/caresync/internal/models"
	"github.com/caresync-io/caresync/pkg/api"
)

// Dispatcher routes actions between the direct path and the queue.
type Dispatcher struct {
	apiClient httpClient.ClientAPI
	queue     *queue.Manager
	evidence  *sink.EvidenceSink
	audit     *sink.AuditSink
	net       *netstate.Watcher
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	apiClient httpClient.ClientAPI,
	queueMgr *queue.Manager,
	evidence *sink.EvidenceSink,
	audit *sink.AuditSink,
	net *netstate.Watcher,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		apiClient: apiClient,
		queue:     queueMgr,
		evidence:  evidence,
		audit:     audit,
		net:       net,
		logger:    logger,
		now:       time.Now,
	}
}

// TransitionResult reports how a care action was handled.
type TransitionResult struct {
	// Task is the server's view after a direct transition. Nil when queued.
	Task *api.Task

	// Operation is the queued entry. Nil when the direct call succeeded.
	Operation *models.QueuedOperation
}

// Queued reports whether the action went to the queue instead of the server.
func (r *TransitionResult) Queued() bool { return r.Operation != nil }

// Transition moves a task to the target state. Online it calls the server
// directly; a conflict or validation failure is returned to the caller since
// they can react immediately. A transport failure flips netstate offline and
// falls back to the queue. Offline the action is queued straight away.
func (d *Dispatcher) Transition(ctx context.Context, accessToken, taskID, actorID, targetState, note string, expectedVersion int64) (*TransitionResult, error) {
	if !models.KnownTaskState(targetState) {
		return nil, fmt.Errorf("unknown target state %q", targetState)
	}

	if d.net.Online() {
		resp, err := d.apiClient.Transition(ctx, accessToken, api.TransitionRequest{
			InitiatedAt:     d.now().UTC(),
			TaskID:          taskID,
			TargetState:     targetState,
			ActionKind:      string(models.KindStateUpdate),
			Note:            note,
			OperationID:     uuid.NewString(),
			Provenance:      api.ProvenanceDirect,
			ExpectedVersion: expectedVersion,
		})
		if err == nil {
			d.logger.Info("Transition applied directly",
				"task_id", taskID,
				"target_state", targetState,
				"version", resp.Task.Version)
			return &TransitionResult{Task: &resp.Task}, nil
		}
		if !transportFailure(err) {
			return nil, err
		}
		d.net.MarkOffline()
		d.logger.Warn("Direct transition failed on the wire, queueing",
			"task_id", taskID,
			"error", err)
	}

	op, err := d.queue.Enqueue(ctx, models.KindStateUpdate, taskID, actorID,
		models.StateUpdatePayload{TargetState: targetState, Note: note}, expectedVersion)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Operation: op}, nil
}

// CaptureEvidence appends an artifact to the evidence sink and queues its
// upload behind any pending transitions for the same task.
func (d *Dispatcher) CaptureEvidence(ctx context.Context, taskID, actorID string, kind models.MediaKind, payload []byte) (*models.OfflineEvidence, error) {
	ev, err := d.evidence.Append(ctx, taskID, actorID, kind, payload)
	if err != nil {
		return nil, err
	}

	if _, err := d.queue.Enqueue(ctx, models.KindEvidenceCapture, taskID, actorID,
		models.EvidenceCapturePayload{EvidenceID: ev.ID}, 0); err != nil {
		return nil, fmt.Errorf("evidence %s captured but not queued: %w", ev.ID, err)
	}
	return ev, nil
}

// RecordAudit appends an audit event and queues its upload.
func (d *Dispatcher) RecordAudit(ctx context.Context, entityType, entityID, action, actorID string, metadata map[string]string) (*models.OfflineAuditEvent, error) {
	ev, err := d.audit.Append(ctx, entityType, entityID, action, actorID, metadata)
	if err != nil {
		return nil, err
	}

	if _, err := d.queue.Enqueue(ctx, models.KindAuditEvent, entityID, actorID,
		models.AuditEventPayload{AuditEventID: ev.ID}, 0); err != nil {
		return nil, fmt.Errorf("audit event %s recorded but not queued: %w", ev.ID, err)
	}
	return ev, nil
}

// transportFailure reports whether the error never reached the server, making
// a queue fallback safe and appropriate.
func transportFailure(err error) bool {
	if apiErr, ok := httpClient.AsError(err); ok {
		return apiErr.Transient()
	}
	return false
}

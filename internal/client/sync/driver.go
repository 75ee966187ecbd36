// Package sync implements the replay protocol: draining the durable
// operation queue against the versioned server, interpreting results, and
// recording conflicts.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	httpClient "github.com/caresync-io/caresync/internal/client/api"
	"github.com/caresync-io/caresync/internal/client/conflict"
	"github.com/caresync-io/caresync/internal/client/queue"
	"github.com/caresync-io/caresync/internal/client/sink"
	"github.com/caresync-io/caresync/internal/client/storage"
	"github.com/caresync-io/caresync/internal/models"
	"github.com/caresync-io/caresync/pkg/api"
)

// ErrSyncInProgress is returned when a pass is requested while another is
// still draining the queue.
var ErrSyncInProgress = errors.New("sync pass already in progress")

// Driver orchestrates sync passes. Operations for one entity replay strictly
// in creation order; distinct entities drain concurrently up to the
// configured parallelism.
type Driver struct {
	apiClient httpClient.ClientAPI
	queue     *queue.Manager
	evidence  *sink.EvidenceSink
	audit     *sink.AuditSink
	conflicts *conflict.Tracker
	states    storage.SyncStateStorage
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
	active    atomic.Bool
}

// NewDriver creates a sync driver.
func NewDriver(
	apiClient httpClient.ClientAPI,
	queueMgr *queue.Manager,
	evidence *sink.EvidenceSink,
	audit *sink.AuditSink,
	conflicts *conflict.Tracker,
	states storage.SyncStateStorage,
	logger *slog.Logger,
	cfg Config,
) *Driver {
	return &Driver{
		apiClient: apiClient,
		queue:     queueMgr,
		evidence:  evidence,
		audit:     audit,
		conflicts: conflicts,
		states:    states,
		logger:    logger,
		cfg:       cfg.normalize(),
		now:       time.Now,
	}
}

// Result summarizes one sync pass.
type Result struct {
	Synced            int // operations accepted by the server
	AlreadyApplied    int // subset of Synced that the server had applied earlier
	Conflicts         int // operations that hit a genuine version conflict
	TransientFailures int // operations returned to pending with backoff
	PermanentFailures int // operations marked failed (validation or exhausted budget)
	Deferred          int // operations skipped because their backoff window is open
	Recovered         int // operations found stuck in syncing from a previous crash
	EvidenceUploaded  int // sink records pushed this pass
	AuditUploaded     int // sink records pushed this pass
}

// passStats collects per-entity results without shared state; each replay
// goroutine writes only its own slot.
type passStats struct {
	synced            int
	alreadyApplied    int
	conflicts         int
	transientFailures int
	permanentFailures int
	deferred          int
}

// Sync runs one pass: recover stale operations, replay pending operations in
// causal order, flush the evidence and audit sinks, and overwrite SyncState.
// Cancelling ctx stops the pass between operations; an issued remote call is
// always awaited.
func (d *Driver) Sync(ctx context.Context, accessToken string) (*Result, error) {
	if !d.active.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer d.active.Store(false)

	result := &Result{}

	recovered, err := d.queue.RecoverStale(ctx)
	if err != nil {
		return nil, err
	}
	result.Recovered = recovered

	pending, err := d.queue.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}

	d.logger.Info("Starting sync pass",
		"pending", len(pending),
		"recovered", recovered)

	// Group by entity, preserving creation order both across groups and
	// within each group (the pending list is already oldest-first).
	var order []string
	groups := make(map[string][]*models.QueuedOperation)
	for _, op := range pending {
		if _, ok := groups[op.EntityID]; !ok {
			order = append(order, op.EntityID)
		}
		groups[op.EntityID] = append(groups[op.EntityID], op)
	}

	stats := make([]passStats, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.EntityParallelism)
	for i, entityID := range order {
		ops := groups[entityID]
		s := &stats[i]
		g.Go(func() error {
			return d.replayEntity(gctx, accessToken, ops, s)
		})
	}
	replayErr := g.Wait()

	for i := range stats {
		result.Synced += stats[i].synced
		result.AlreadyApplied += stats[i].alreadyApplied
		result.Conflicts += stats[i].conflicts
		result.TransientFailures += stats[i].transientFailures
		result.PermanentFailures += stats[i].permanentFailures
		result.Deferred += stats[i].deferred
	}

	if replayErr == nil {
		d.flushSinks(ctx, accessToken, result)
	}

	// The summary is overwritten wholesale even when the pass aborted:
	// durable counts must reflect reality after a crash or token expiry.
	if err := d.updateSyncState(ctx); err != nil {
		d.logger.Warn("Failed to update sync state", "error", err)
		if replayErr == nil {
			replayErr = err
		}
	}

	d.logger.Info("Sync pass finished",
		"synced", result.Synced,
		"conflicts", result.Conflicts,
		"transient_failures", result.TransientFailures,
		"permanent_failures", result.PermanentFailures,
		"deferred", result.Deferred,
		"evidence_uploaded", result.EvidenceUploaded,
		"audit_uploaded", result.AuditUploaded)

	if replayErr != nil {
		return result, replayErr
	}
	return result, nil
}

// replayEntity drains one entity's operations strictly in creation order.
// A conflict or a transient failure stops the group: later operations stay
// pending so causal order survives to the next pass.
func (d *Driver) replayEntity(ctx context.Context, accessToken string, ops []*models.QueuedOperation, stats *passStats) error {
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}

		if op.NextAttemptAt.After(d.now()) {
			// Backoff window still open. Later operations for this entity
			// must wait behind it.
			stats.deferred += len(ops) - i
			return nil
		}

		proceed, err := d.replayOperation(ctx, accessToken, op, stats)
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
	}
	return nil
}

// replayOperation executes one operation. The bool result reports whether
// the entity group may continue; errors abort the whole pass.
func (d *Driver) replayOperation(ctx context.Context, accessToken string, op *models.QueuedOperation, stats *passStats) (bool, error) {
	if err := d.queue.MarkSyncing(ctx, op.ID); err != nil {
		return false, err
	}

	switch op.Kind {
	case models.KindStateUpdate, models.KindCareAction:
		return d.replayTransition(ctx, accessToken, op, stats)
	case models.KindEvidenceCapture:
		return d.replayEvidenceUpload(ctx, accessToken, op, stats)
	case models.KindAuditEvent:
		return d.replayAuditUpload(ctx, accessToken, op, stats)
	default:
		if err := d.queue.MarkFailed(ctx, op.ID, fmt.Sprintf("unknown operation kind %q", op.Kind)); err != nil {
			return false, err
		}
		stats.permanentFailures++
		return true, nil
	}
}

// replayTransition re-issues a CAS state transition with the operation's
// recorded expected version.
func (d *Driver) replayTransition(ctx context.Context, accessToken string, op *models.QueuedOperation, stats *passStats) (bool, error) {
	target, note, err := transitionIntent(op)
	if err != nil {
		if markErr := d.queue.MarkFailed(ctx, op.ID, err.Error()); markErr != nil {
			return false, markErr
		}
		stats.permanentFailures++
		return true, nil
	}

	resp, err := d.apiClient.Transition(ctx, accessToken, api.TransitionRequest{
		InitiatedAt:     op.CreatedAt,
		TaskID:          op.EntityID,
		TargetState:     target,
		ActionKind:      string(op.Kind),
		Note:            note,
		OperationID:     op.ID,
		Provenance:      api.ProvenanceReplay,
		ExpectedVersion: op.ExpectedVersion,
	})
	if err != nil {
		return d.handleRemoteError(ctx, op, err, stats)
	}

	if err := d.queue.MarkSynced(ctx, op.ID); err != nil {
		return false, err
	}
	stats.synced++
	if resp.AlreadyApplied {
		stats.alreadyApplied++
		d.logger.Info("Operation had already been applied on the server",
			"operation_id", op.ID,
			"entity_id", op.EntityID)
	}
	return true, nil
}

// replayEvidenceUpload pushes the evidence record a queued capture refers to.
func (d *Driver) replayEvidenceUpload(ctx context.Context, accessToken string, op *models.QueuedOperation, stats *passStats) (bool, error) {
	payload, err := op.EvidenceCapture()
	if err != nil {
		return d.failPermanently(ctx, op, err.Error(), stats)
	}

	ev, err := d.evidence.Get(ctx, payload.EvidenceID)
	if errors.Is(err, storage.ErrEvidenceNotFound) {
		return d.failPermanently(ctx, op, fmt.Sprintf("evidence %s not found", payload.EvidenceID), stats)
	}
	if err != nil {
		return false, err
	}

	if !ev.Synced {
		if _, err := d.apiClient.UploadEvidence(ctx, accessToken, evidenceUploadRequest(ev)); err != nil {
			return d.handleRemoteError(ctx, op, err, stats)
		}
		if err := d.evidence.MarkSynced(ctx, ev.ID); err != nil {
			return false, err
		}
	}

	if err := d.queue.MarkSynced(ctx, op.ID); err != nil {
		return false, err
	}
	stats.synced++
	return true, nil
}

// replayAuditUpload pushes the audit event a queued operation refers to.
func (d *Driver) replayAuditUpload(ctx context.Context, accessToken string, op *models.QueuedOperation, stats *passStats) (bool, error) {
	payload, err := op.AuditEvent()
	if err != nil {
		return d.failPermanently(ctx, op, err.Error(), stats)
	}

	ev, err := d.audit.Get(ctx, payload.AuditEventID)
	if errors.Is(err, storage.ErrAuditEventNotFound) {
		return d.failPermanently(ctx, op, fmt.Sprintf("audit event %s not found", payload.AuditEventID), stats)
	}
	if err != nil {
		return false, err
	}

	if !ev.Synced {
		if _, err := d.apiClient.UploadAudit(ctx, accessToken, auditUploadRequest(ev)); err != nil {
			return d.handleRemoteError(ctx, op, err, stats)
		}
		if err := d.audit.MarkSynced(ctx, ev.ID); err != nil {
			return false, err
		}
	}

	if err := d.queue.MarkSynced(ctx, op.ID); err != nil {
		return false, err
	}
	stats.synced++
	return true, nil
}

// handleRemoteError interprets a failed remote call per the error taxonomy:
// conflicts are materialized and never auto-retried, validation failures are
// terminal, everything transient goes back to pending with capped
// exponential backoff until the retry budget runs out.
func (d *Driver) handleRemoteError(ctx context.Context, op *models.QueuedOperation, callErr error, stats *passStats) (bool, error) {
	apiErr, ok := httpClient.AsError(callErr)
	if !ok {
		// Undecodable response or similar local trouble: retry like a
		// network failure.
		apiErr = &httpClient.Error{Kind: api.ErrKindNetwork, Message: callErr.Error()}
	}

	switch apiErr.Kind {
	case api.ErrKindVersionConflict:
		localValue, err := localConflictValue(op)
		if err != nil {
			return false, err
		}
		serverValue := serverConflictValue(apiErr)
		if _, err := d.conflicts.Record(ctx, op.ID, op.EntityID, localValue, serverValue); err != nil {
			return false, err
		}
		if err := d.queue.MarkFailed(ctx, op.ID, apiErr.Error()); err != nil {
			return false, err
		}
		stats.conflicts++
		return false, nil

	case api.ErrKindValidation, api.ErrKindNotFound:
		if err := d.queue.MarkFailed(ctx, op.ID, apiErr.Error()); err != nil {
			return false, err
		}
		stats.permanentFailures++
		d.logger.Warn("Operation rejected permanently",
			"operation_id", op.ID,
			"error", apiErr.Message)
		// A terminal rejection does not block later operations: they carry
		// their own version guards.
		return true, nil

	case api.ErrKindUnauthorized:
		// The token is no good; nothing else in this pass can succeed.
		// The operation stays in syncing and is recovered on the next pass.
		return false, fmt.Errorf("sync pass aborted: %w", apiErr)

	default:
		retries := op.RetryCount + 1
		if retries >= d.cfg.MaxRetries {
			if err := d.queue.MarkFailed(ctx, op.ID, fmt.Sprintf("retry budget exhausted: %s", apiErr.Message)); err != nil {
				return false, err
			}
			stats.permanentFailures++
			d.logger.Warn("Operation failed after exhausting retries",
				"operation_id", op.ID,
				"retries", retries)
			return false, nil
		}

		next := d.now().Add(d.cfg.backoffDelay(retries))
		if err := d.queue.ReturnToPending(ctx, op.ID, apiErr.Message, next); err != nil {
			return false, err
		}
		stats.transientFailures++
		d.logger.Info("Transient failure, operation returned to pending",
			"operation_id", op.ID,
			"retry_count", retries,
			"next_attempt_at", next)
		return false, nil
	}
}

// failPermanently marks an operation failed for a local, non-retryable
// reason (undecodable payload, dangling sink reference).
func (d *Driver) failPermanently(ctx context.Context, op *models.QueuedOperation, msg string, stats *passStats) (bool, error) {
	if err := d.queue.MarkFailed(ctx, op.ID, msg); err != nil {
		return false, err
	}
	stats.permanentFailures++
	return true, nil
}

// flushSinks uploads unsynced evidence and audit records that no queued
// operation covers. Uploads are idempotent server-side, so a crash between
// upload and the local synced flag costs one duplicate-acknowledged push.
func (d *Driver) flushSinks(ctx context.Context, accessToken string, result *Result) {
	evidence, err := d.evidence.ListUnsynced(ctx)
	if err != nil {
		d.logger.Warn("Failed to list unsynced evidence", "error", err)
	} else {
		for _, ev := range evidence {
			if ctx.Err() != nil {
				return
			}
			if _, err := d.apiClient.UploadEvidence(ctx, accessToken, evidenceUploadRequest(ev)); err != nil {
				d.logger.Warn("Evidence upload failed, will retry next pass",
					"evidence_id", ev.ID,
					"error", err)
				if isTransient(err) {
					break
				}
				continue
			}
			if err := d.evidence.MarkSynced(ctx, ev.ID); err != nil {
				d.logger.Warn("Failed to mark evidence synced", "evidence_id", ev.ID, "error", err)
				continue
			}
			result.EvidenceUploaded++
		}
	}

	events, err := d.audit.ListUnsynced(ctx)
	if err != nil {
		d.logger.Warn("Failed to list unsynced audit events", "error", err)
		return
	}
	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.apiClient.UploadAudit(ctx, accessToken, auditUploadRequest(ev)); err != nil {
			d.logger.Warn("Audit upload failed, will retry next pass",
				"audit_id", ev.ID,
				"error", err)
			if isTransient(err) {
				break
			}
			continue
		}
		if err := d.audit.MarkSynced(ctx, ev.ID); err != nil {
			d.logger.Warn("Failed to mark audit event synced", "audit_id", ev.ID, "error", err)
			continue
		}
		result.AuditUploaded++
	}
}

// updateSyncState recomputes the summary record from durable counts and
// overwrites it wholesale.
func (d *Driver) updateSyncState(ctx context.Context) error {
	state, err := d.computeCounts(ctx)
	if err != nil {
		return err
	}
	state.LastSyncAt = d.now().UTC()
	return d.states.SaveSyncState(ctx, state)
}

// Counts returns the on-demand metrics surface: pending operations,
// unsynced sink records, unresolved conflicts. LastSyncAt comes from the
// stored summary when one exists.
func (d *Driver) Counts(ctx context.Context) (*models.SyncState, error) {
	state, err := d.computeCounts(ctx)
	if err != nil {
		return nil, err
	}
	if stored, err := d.states.GetSyncState(ctx); err == nil {
		state.LastSyncAt = stored.LastSyncAt
	} else if !errors.Is(err, storage.ErrSyncStateNotFound) {
		return nil, err
	}
	return state, nil
}

func (d *Driver) computeCounts(ctx context.Context) (*models.SyncState, error) {
	pending, err := d.queue.CountByStatus(ctx, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending operations: %w", err)
	}
	conflicts, err := d.conflicts.CountUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count unresolved conflicts: %w", err)
	}
	evidence, err := d.evidence.CountUnsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count unsynced evidence: %w", err)
	}
	audit, err := d.audit.CountUnsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count unsynced audit events: %w", err)
	}

	return &models.SyncState{
		PendingOperations:   pending,
		UnresolvedConflicts: conflicts,
		UnsyncedEvidence:    evidence,
		UnsyncedAuditEvents: audit,
	}, nil
}

// transitionIntent extracts the target state and note from a CAS operation.
func transitionIntent(op *models.QueuedOperation) (target, note string, err error) {
	switch op.Kind {
	case models.KindStateUpdate:
		p, err := op.StateUpdate()
		if err != nil {
			return "", "", err
		}
		return p.TargetState, p.Note, nil
	case models.KindCareAction:
		p, err := op.CareAction()
		if err != nil {
			return "", "", err
		}
		return p.TargetState, p.Note, nil
	default:
		return "", "", fmt.Errorf("operation kind %q carries no transition", op.Kind)
	}
}

// localConflictValue serializes the client's in-flight intent for the
// conflict record.
func localConflictValue(op *models.QueuedOperation) ([]byte, error) {
	target, note, err := transitionIntent(op)
	if err != nil {
		// Non-CAS kinds can conflict only through server misbehavior;
		// capture the raw payload.
		return op.Payload, nil
	}
	return json.Marshal(map[string]any{
		"entity_id":        op.EntityID,
		"target_state":     target,
		"note":             note,
		"expected_version": op.ExpectedVersion,
	})
}

// serverConflictValue extracts the server's side of the conflict.
func serverConflictValue(apiErr *httpClient.Error) []byte {
	if len(apiErr.CurrentState) > 0 {
		return apiErr.CurrentState
	}
	value, _ := json.Marshal(map[string]any{
		"current_version": apiErr.CurrentVersion,
	})
	return value
}

func evidenceUploadRequest(ev *models.OfflineEvidence) api.EvidenceUploadRequest {
	return api.EvidenceUploadRequest{
		CapturedAt: ev.CapturedAt,
		ID:         ev.ID,
		TaskID:     ev.TaskID,
		ActorID:    ev.ActorID,
		Kind:       string(ev.Kind),
		Payload:    ev.Payload,
	}
}

func auditUploadRequest(ev *models.OfflineAuditEvent) api.AuditUploadRequest {
	return api.AuditUploadRequest{
		OccurredAt: ev.OccurredAt,
		ID:         ev.ID,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Action:     ev.Action,
		ActorID:    ev.ActorID,
		Metadata:   ev.Metadata,
	}
}

func isTransient(err error) bool {
	if apiErr, ok := httpClient.AsError(err); ok {
		return apiErr.Transient()
	}
	return false
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/caresync-io/caresync/internal/server/metrics"
	"github.com/caresync-io/caresync/internal/server/middleware"
	"github.com/caresync-io/caresync/internal/server/storage"
	"github.com/caresync-io/caresync/pkg/api"
)

// UploadsHandler ingests evidence artifacts and audit events drained from
// device queues. Uploads are append-only and never version-checked; a
// re-sent record id is acknowledged as a duplicate so clients can retry
// blindly after a crash.
type UploadsHandler struct {
	logger          *slog.Logger
	evidenceStorage storage.EvidenceStorage
	auditStorage    storage.AuditStorage
	metrics         *metrics.Metrics
}

// NewUploadsHandler creates a handler for the upload endpoints.
func NewUploadsHandler(logger *slog.Logger, evidenceStorage storage.EvidenceStorage, auditStorage storage.AuditStorage, m *metrics.Metrics) *UploadsHandler {
	return &UploadsHandler{
		logger:          logger,
		evidenceStorage: evidenceStorage,
		auditStorage:    auditStorage,
		metrics:         m,
	}
}

// UploadEvidence handles POST /api/v1/evidence.
func (h *UploadsHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.EvidenceUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode evidence upload", slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindValidation, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		sendError(w, h.logger, api.ErrKindValidation, "id is required", http.StatusBadRequest)
		return
	}
	if req.TaskID == "" {
		sendError(w, h.logger, api.ErrKindValidation, "task_id is required", http.StatusBadRequest)
		return
	}

	actorID := req.ActorID
	if actorID == "" {
		actorID = middleware.UserIDFromContext(ctx)
	}

	duplicate, err := h.evidenceStorage.InsertEvidence(ctx, &storage.EvidenceRecord{
		CapturedAt: req.CapturedAt,
		ReceivedAt: time.Now().UTC(),
		ID:         req.ID,
		TaskID:     req.TaskID,
		ActorID:    actorID,
		Kind:       req.Kind,
		Payload:    req.Payload,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to store evidence", slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	if duplicate {
		h.metrics.IncrementDuplicateUploads()
		h.logger.InfoContext(ctx, "duplicate evidence upload acknowledged",
			slog.String("evidence_id", req.ID))
	} else {
		h.metrics.IncrementEvidenceUploads()
	}

	sendJSON(w, h.logger, api.UploadResponse{ID: req.ID, Duplicate: duplicate}, http.StatusOK)
}

// UploadAudit handles POST /api/v1/audit.
func (h *UploadsHandler) UploadAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.AuditUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode audit upload", slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindValidation, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		sendError(w, h.logger, api.ErrKindValidation, "id is required", http.StatusBadRequest)
		return
	}
	if req.EntityID == "" {
		sendError(w, h.logger, api.ErrKindValidation, "entity_id is required", http.StatusBadRequest)
		return
	}
	if req.Action == "" {
		sendError(w, h.logger, api.ErrKindValidation, "action is required", http.StatusBadRequest)
		return
	}

	actorID := req.ActorID
	if actorID == "" {
		actorID = middleware.UserIDFromContext(ctx)
	}

	duplicate, err := h.auditStorage.InsertAuditEvent(ctx, &storage.AuditRecord{
		OccurredAt: req.OccurredAt,
		ReceivedAt: time.Now().UTC(),
		ID:         req.ID,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Action:     req.Action,
		ActorID:    actorID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to store audit event", slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	if duplicate {
		h.metrics.IncrementDuplicateUploads()
		h.logger.InfoContext(ctx, "duplicate audit upload acknowledged",
			slog.String("audit_id", req.ID))
	} else {
		h.metrics.IncrementAuditUploads()
	}

	sendJSON(w, h.logger, api.UploadResponse{ID: req.ID, Duplicate: duplicate}, http.StatusOK)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caresync-io/caresync/internal/models"
	"github.com/caresync-io/caresync/internal/server/metrics"
	"github.com/caresync-io/caresync/internal/server/middleware"
	"github.com/caresync-io/caresync/internal/server/storage"
	"github.com/caresync-io/caresync/pkg/api"
)

// TasksHandler serves the versioned care task endpoints, including the
// compare-and-swap transition that the offline replay protocol depends on.
type TasksHandler struct {
	logger      *slog.Logger
	taskStorage storage.TaskStorage
	metrics     *metrics.Metrics
}

// NewTasksHandler creates a handler for the task endpoints.
func NewTasksHandler(logger *slog.Logger, taskStorage storage.TaskStorage, m *metrics.Metrics) *TasksHandler {
	return &TasksHandler{
		logger:      logger,
		taskStorage: taskStorage,
		metrics:     m,
	}
}

// List handles GET /api/v1/tasks.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tasks, err := h.taskStorage.ListTasks(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list tasks", slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.TaskListResponse{Tasks: make([]api.Task, 0, len(tasks))}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, toAPITask(task))
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}

// Create handles POST /api/v1/tasks. New tasks start scheduled at version 1.
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode create task request", slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindValidation, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.ResidentID == "" {
		sendError(w, h.logger, api.ErrKindValidation, "resident_id is required", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		sendError(w, h.logger, api.ErrKindValidation, "title is required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	task := &models.CareTask{
		CreatedAt:  now,
		UpdatedAt:  now,
		ID:         uuid.New().String(),
		ResidentID: req.ResidentID,
		Title:      req.Title,
		State:      models.TaskStateScheduled,
		Version:    1,
	}

	if err := h.taskStorage.CreateTask(ctx, task); err != nil {
		h.logger.ErrorContext(ctx, "failed to create task", slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "task created",
		slog.String("task_id", task.ID),
		slog.String("resident_id", task.ResidentID))

	sendJSON(w, h.logger, toAPITask(task), http.StatusCreated)
}

// Transition handles POST /api/v1/tasks/{taskID}/transition.
//
// The expected version is compared against the stored row, and the operation
// id is checked against the applied-operations ledger first: a replay of an
// operation that already took effect is acknowledged instead of being
// reported as a conflict. On a genuine mismatch the response carries the
// server's current version and state so the client can record the conflict
// without another round trip.
func (h *TasksHandler) Transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		sendError(w, h.logger, api.ErrKindValidation, "task id is required", http.StatusBadRequest)
		return
	}

	var req api.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode transition request", slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindValidation, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.OperationID == "" {
		sendError(w, h.logger, api.ErrKindValidation, "operation_id is required", http.StatusBadRequest)
		return
	}
	if req.ExpectedVersion < 1 {
		sendError(w, h.logger, api.ErrKindValidation, "expected_version must be positive", http.StatusBadRequest)
		return
	}

	task, alreadyApplied, err := h.taskStorage.TransitionTask(ctx, storage.TransitionParams{
		InitiatedAt:     req.InitiatedAt,
		TaskID:          taskID,
		TargetState:     req.TargetState,
		ActionKind:      req.ActionKind,
		Note:            req.Note,
		OperationID:     req.OperationID,
		ActorID:         middleware.UserIDFromContext(ctx),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.transitionError(ctx, w, taskID, &req, err)
		return
	}

	if alreadyApplied {
		h.metrics.IncrementReplayedOperations()
		h.logger.InfoContext(ctx, "transition replayed, already applied",
			slog.String("task_id", taskID),
			slog.String("operation_id", req.OperationID))
	} else {
		h.metrics.IncrementTransitionsApplied()
		h.logger.InfoContext(ctx, "task transitioned",
			slog.String("task_id", taskID),
			slog.String("target_state", req.TargetState),
			slog.Int64("version", task.Version),
			slog.String("provenance", string(req.Provenance)))
	}

	sendJSON(w, h.logger, api.TransitionResponse{
		Task:           toAPITask(task),
		AlreadyApplied: alreadyApplied,
	}, http.StatusOK)
}

func (h *TasksHandler) transitionError(ctx context.Context, w http.ResponseWriter, taskID string, req *api.TransitionRequest, err error) {
	var mismatch *storage.VersionMismatchError
	switch {
	case errors.As(err, &mismatch):
		h.metrics.IncrementTransitionConflicts()
		current, marshalErr := json.Marshal(toAPITask(mismatch.Task))
		if marshalErr != nil {
			h.logger.ErrorContext(ctx, "failed to encode current task", slog.Any("error", marshalErr))
			sendError(w, h.logger, api.ErrKindInternal, "internal server error", http.StatusInternalServerError)
			return
		}
		h.logger.WarnContext(ctx, "transition rejected: version mismatch",
			slog.String("task_id", taskID),
			slog.Int64("expected_version", req.ExpectedVersion),
			slog.Int64("current_version", mismatch.Task.Version))
		sendJSON(w, h.logger, api.ErrorResponse{
			Kind:           api.ErrKindVersionConflict,
			Message:        mismatch.Error(),
			CurrentVersion: mismatch.Task.Version,
			CurrentState:   current,
		}, http.StatusConflict)
	case errors.Is(err, storage.ErrInvalidState):
		sendError(w, h.logger, api.ErrKindValidation, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrTaskNotFound):
		sendError(w, h.logger, api.ErrKindNotFound, "task not found", http.StatusNotFound)
	default:
		h.logger.ErrorContext(ctx, "failed to transition task",
			slog.String("task_id", taskID), slog.Any("error", err))
		sendError(w, h.logger, api.ErrKindInternal, "internal server error", http.StatusInternalServerError)
	}
}

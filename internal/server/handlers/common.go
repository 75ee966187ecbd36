package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/caresync-io/caresync/internal/models"
	"github.com/caresync-io/caresync/pkg/api"
)

// sendJSON writes v as a JSON response body.
func sendJSON(w http.ResponseWriter, logger *slog.Logger, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError writes a structured error body. Clients branch on the kind, so
// every error path must pick one deliberately.
func sendError(w http.ResponseWriter, logger *slog.Logger, kind api.ErrorKind, message string, status int) {
	sendJSON(w, logger, api.ErrorResponse{Kind: kind, Message: message}, status)
}

// toAPITask converts the storage representation to the wire representation.
func toAPITask(task *models.CareTask) api.Task {
	return api.Task{
		CreatedAt:  task.CreatedAt,
		UpdatedAt:  task.UpdatedAt,
		ID:         task.ID,
		ResidentID: task.ResidentID,
		Title:      task.Title,
		State:      task.State,
		Version:    task.Version,
	}
}

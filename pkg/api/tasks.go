package api

// CreateTaskRequest registers a new care task on the server.
type CreateTaskRequest struct {
	ResidentID string `json:"resident_id"`
	Title      string `json:"title"`
}

// TaskListResponse returns the tasks visible to the authenticated device.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/supporttools/GoDBVault/pkg/storage"
	"github.com/supporttools/GoDBVault/pkg/tasks"
)

// TasksHandler handles task submission and status API endpoints
type TasksHandler struct {
	ops   *tasks.Operations
	store storage.Backend
}

// NewTasksHandler creates a new tasks handler
func NewTasksHandler(ops *tasks.Operations, store storage.Backend) *TasksHandler {
	return &TasksHandler{ops: ops, store: store}
}

// RegisterRoutes registers the task API routes on the provided mux
func (h *TasksHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/backups/run", h.handleRunBackup)
	mux.HandleFunc("/api/backups/restore", h.handleRestore)
	mux.HandleFunc("/api/tables/export", h.handleExport)
	mux.HandleFunc("/api/tables/import", h.handleImport)
	mux.HandleFunc("/api/tasks", h.handleTaskStatus)
}

// taskStatusResponse mirrors the shape task submitters poll for.
type taskStatusResponse struct {
	TaskID string       `json:"task_id"`
	Status tasks.Status `json:"status"`
	Result any          `json:"result"`
}

// handleRunBackup submits a backup task for a connection profile
func (h *TasksHandler) handleRunBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profile := r.URL.Query().Get("profile")
	if profile == "" {
		http.Error(w, "Missing required parameter: profile", http.StatusBadRequest)
		return
	}

	taskID, err := h.ops.SubmitBackup(profile)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeTaskAccepted(w, taskID)
}

// handleRestore submits a restore task replaying a stored artifact
func (h *TasksHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profile := r.URL.Query().Get("profile")
	filename := r.URL.Query().Get("filename")
	if profile == "" || filename == "" {
		http.Error(w, "Missing required parameters: profile, filename", http.StatusBadRequest)
		return
	}

	taskID, err := h.ops.SubmitRestore(profile, filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeTaskAccepted(w, taskID)
}

// handleExport submits a table export task
func (h *TasksHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profile := r.URL.Query().Get("profile")
	table := r.URL.Query().Get("table")
	format := r.URL.Query().Get("format")
	if profile == "" || table == "" {
		http.Error(w, "Missing required parameters: profile, table", http.StatusBadRequest)
		return
	}

	taskID, err := h.ops.SubmitExport(profile, table, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeTaskAccepted(w, taskID)
}

// handleImport stores an uploaded file and submits a table import task. The
// file lands in backup storage first so the import worker can fetch it from
// any replica.
func (h *TasksHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing required file upload: file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	profile := r.FormValue("profile")
	table := r.FormValue("table")
	format := r.FormValue("format")
	if format == "" {
		format = "csv"
	}
	if profile == "" || table == "" {
		http.Error(w, "Missing required parameters: profile, table", http.StatusBadRequest)
		return
	}

	fileName := fmt.Sprintf("import_%s_%s_%s.%s", profile, table, time.Now().Format("20060102150405"), format)

	tmp, err := os.CreateTemp("", "dbvault-import-*")
	if err != nil {
		http.Error(w, "Failed to stage uploaded file: "+err.Error(), http.StatusInternalServerError)
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		http.Error(w, "Failed to stage uploaded file: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := tmp.Close(); err != nil {
		http.Error(w, "Failed to stage uploaded file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := h.store.Upload(tmpPath, fileName); err != nil {
		http.Error(w, "Failed to store uploaded file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	taskID, err := h.ops.SubmitImport(profile, table, fileName, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeTaskAccepted(w, taskID)
}

// handleTaskStatus returns one task by id, or every known task
func (h *TasksHandler) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check if a specific task is requested
	taskID := r.URL.Query().Get("id")
	if taskID != "" {
		task, ok := h.ops.Runner().Get(taskID)
		if !ok {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(convertTaskToStatus(task)); err != nil {
			log.Printf("Error encoding task status response: %v", err)
		}
		return
	}

	// Otherwise, return all tasks
	all := h.ops.Runner().List()
	responses := make([]taskStatusResponse, 0, len(all))
	for _, task := range all {
		responses = append(responses, convertTaskToStatus(task))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"tasks": responses,
		"count": len(responses),
	}); err != nil {
		log.Printf("Error encoding task list response: %v", err)
	}
}

// convertTaskToStatus renders a task the way pollers expect: result stays
// null until the task reaches a terminal status, and failures surface as an
// error-shaped result rather than a bare string.
func convertTaskToStatus(task tasks.Task) taskStatusResponse {
	resp := taskStatusResponse{
		TaskID: task.ID,
		Status: task.Status,
	}

	if !task.Status.Terminal() {
		return resp
	}

	if task.Status == tasks.StatusFailed {
		resp.Result = map[string]any{
			"status":  "error",
			"message": task.Error,
		}
		return resp
	}

	resp.Result = task.Result
	return resp
}

// writeTaskAccepted acknowledges an async submission with the task id the
// caller polls /api/tasks with.
func writeTaskAccepted(w http.ResponseWriter, taskID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	if err := json.NewEncoder(w).Encode(map[string]string{
		"task_id": taskID,
		"status":  "processing",
	}); err != nil {
		log.Printf("Error encoding task submission response: %v", err)
	}
}

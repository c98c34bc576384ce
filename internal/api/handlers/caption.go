package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caption-service/backend/internal/db"
	"github.com/caption-service/backend/internal/task"
)

// CaptionHandler serves the client-facing job surfaces: submission, status
// polling, and result retrieval.
type CaptionHandler struct {
	manager  *task.Manager
	db       *db.Database
	validate *validator.Validate
}

func NewCaptionHandler(manager *task.Manager, database *db.Database) *CaptionHandler {
	return &CaptionHandler{
		manager:  manager,
		db:       database,
		validate: validator.New(),
	}
}

type generateRequest struct {
	VideoURL string `json:"video_url" validate:"required,url"`
	Language string `json:"language" validate:"omitempty,bcp47_language_tag"`
}

// Generate accepts a video reference and returns a task ID immediately.
// Processing happens in the background; failures are visible via the status
// surface only.
func (h *CaptionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		jsonError(w, "video_url is required and must be a valid URL", http.StatusBadRequest)
		return
	}

	id, err := h.manager.Submit(req.VideoURL, req.Language)
	if err != nil {
		jsonError(w, "failed to create task: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]string{
		"task_id": id,
		"status":  string(task.StatusPending),
	}, http.StatusAccepted)
}

// Status reports the current state of a task
func (h *CaptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.db.GetTask(id)
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to load task: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"task_id":  t.ID,
		"status":   t.Status,
		"progress": t.Progress,
		"message":  t.Message,
	}
	if t.Error != "" {
		resp["error"] = t.Error
	}
	jsonResponse(w, resp, http.StatusOK)
}

// Result returns the ordered caption list for a completed task. A task that
// is not yet terminal reports not-ready; a failed task reports its error.
func (h *CaptionHandler) Result(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.db.GetTask(id)
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to load task: "+err.Error(), http.StatusInternalServerError)
		return
	}

	switch t.Status {
	case task.StatusCompleted:
		captions, err := h.db.CaptionsForTask(id)
		if err != nil {
			jsonError(w, "failed to load captions: "+err.Error(), http.StatusInternalServerError)
			return
		}
		jsonResponse(w, map[string]interface{}{
			"task_id":  t.ID,
			"title":    t.Title,
			"duration": t.Duration,
			"language": t.Language,
			"captions": captions,
		}, http.StatusOK)
	case task.StatusFailed:
		jsonError(w, t.Error, http.StatusConflict)
	default:
		jsonResponse(w, map[string]interface{}{
			"task_id": t.ID,
			"status":  t.Status,
			"message": "captions not ready",
		}, http.StatusConflict)
	}
}

// Health reports process liveness and the current pending backlog
func (h *CaptionHandler) Health(w http.ResponseWriter, r *http.Request) {
	pending, err := h.db.CountByStatus(task.StatusPending)
	if err != nil {
		jsonError(w, "store unavailable: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]interface{}{
		"status":        "healthy",
		"pending_tasks": pending,
		"timestamp":     time.Now().Unix(),
	}, http.StatusOK)
}

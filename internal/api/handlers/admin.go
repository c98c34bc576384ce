package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caption-service/backend/internal/db"
	"github.com/caption-service/backend/internal/task"
)

// AdminHandler exposes the operator-facing task surfaces
type AdminHandler struct {
	db *db.Database
}

func NewAdminHandler(database *db.Database) *AdminHandler {
	return &AdminHandler{db: database}
}

// ListTasks returns all tasks, newest first
func (h *AdminHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.db.ListTasks()
	if err != nil {
		jsonError(w, "failed to list tasks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	jsonResponse(w, tasks, http.StatusOK)
}

// GetTask returns a single task, including captions when completed
func (h *AdminHandler) GetTask(w http.ResponseWriter, r *http.Request) {
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

	if t.Status == task.StatusCompleted {
		captions, err := h.db.CaptionsForTask(id)
		if err != nil {
			jsonError(w, "failed to load captions: "+err.Error(), http.StatusInternalServerError)
			return
		}
		t.Captions = captions
	}

	jsonResponse(w, t, http.StatusOK)
}

// DeleteTask removes a task and its captions
func (h *AdminHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.db.DeleteTask(id)
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to delete task: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

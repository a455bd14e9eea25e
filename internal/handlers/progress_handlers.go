package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"textbook-reader/internal/logger"
	"textbook-reader/internal/services"
)

// ProgressHandler handles HTTP requests for reading progress
type ProgressHandler struct {
	progress services.ProgressTracker
	log      *logger.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progress services.ProgressTracker, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		log:      logger.OrNop(log),
	}
}

// SaveProgressRequest represents a request to record the current page
type SaveProgressRequest struct {
	Page int `json:"page"`
}

// GetProgressResponse represents the saved page of a lesson
type GetProgressResponse struct {
	Success bool `json:"success"`
	Page    int  `json:"page,omitempty"`
}

// GetProgress returns the last page reached in a lesson
// GET /api/progress/{lessonId}
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	lessonID := mux.Vars(r)["lessonId"]

	p, found := h.progress.Get(lessonID)
	if !found {
		writeJSON(w, http.StatusOK, GetProgressResponse{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, GetProgressResponse{Success: true, Page: p.Page})
}

// SaveProgress records the last page reached in a lesson
// PUT /api/progress/{lessonId}
func (h *ProgressHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	lessonID := mux.Vars(r)["lessonId"]

	var req SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Page < 1 {
		http.Error(w, "page must be at least 1", http.StatusBadRequest)
		return
	}

	if err := h.progress.Save(lessonID, req.Page); err != nil {
		h.log.Error("Failed to save progress", "lesson_id", lessonID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

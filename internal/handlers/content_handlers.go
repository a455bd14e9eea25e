package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"textbook-reader/internal/logger"
	"textbook-reader/internal/models"
	"textbook-reader/internal/services"
)

// ContentHandler handles HTTP requests for textbook content
type ContentHandler struct {
	content services.ContentSource
	log     *logger.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(content services.ContentSource, log *logger.Logger) *ContentHandler {
	return &ContentHandler{
		content: content,
		log:     logger.OrNop(log),
	}
}

// ListChapters returns the chapters of a textbook with their lessons
// GET /api/textbooks/{textbookId}/chapters
func (h *ContentHandler) ListChapters(w http.ResponseWriter, r *http.Request) {
	textbookID := mux.Vars(r)["textbookId"]
	if textbookID == "" {
		http.Error(w, "textbookId is required", http.StatusBadRequest)
		return
	}

	chapters, err := h.content.GetChapters(r.Context(), textbookID)
	if err != nil {
		h.log.Error("Failed to list chapters", "textbook_id", textbookID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Always return an array, even if empty
	if chapters == nil {
		chapters = []*models.Chapter{}
	}
	writeJSON(w, http.StatusOK, chapters)
}

// GetLesson returns a lesson
// GET /api/lessons/{lessonId}
func (h *ContentHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := mux.Vars(r)["lessonId"]

	lesson, err := h.content.GetLesson(r.Context(), lessonID)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

// GetPage returns one page of a lesson with its hotspots
// GET /api/lessons/{lessonId}/pages/{page}
func (h *ContentHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lessonID := vars["lessonId"]
	number, err := strconv.Atoi(vars["page"])
	if err != nil || number < 1 {
		http.Error(w, "page must be a positive integer", http.StatusBadRequest)
		return
	}

	page, err := h.content.GetPageContent(r.Context(), lessonID, number)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ContentHandler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.log.Error("Content lookup failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"textbook-reader/internal/logger"
	"textbook-reader/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Reader clients are served from the same host or an embedded webview
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ReaderHandler upgrades reader clients to a live reading session
type ReaderHandler struct {
	reader *services.ReaderService
	log    *logger.Logger
}

// NewReaderHandler creates a new reader handler
func NewReaderHandler(reader *services.ReaderService, log *logger.Logger) *ReaderHandler {
	return &ReaderHandler{
		reader: reader,
		log:    logger.OrNop(log),
	}
}

// ServeReader opens a reading session on a lesson over a websocket
// GET /ws/reader?lessonId=...
func (h *ReaderHandler) ServeReader(w http.ResponseWriter, r *http.Request) {
	lessonID := r.URL.Query().Get("lessonId")
	if lessonID == "" {
		http.Error(w, "lessonId query parameter is required", http.StatusBadRequest)
		return
	}

	session, err := h.reader.NewSession(r.Context(), lessonID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error("Failed to open reading session", "lesson_id", lessonID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "lesson_id", lessonID, "error", err)
		session.Close()
		return
	}
	h.reader.Serve(conn, session)
}

// SessionStatsResponse reports live reading sessions
type SessionStatsResponse struct {
	Sessions int `json:"sessions"`
}

// Stats returns the number of live reading sessions
// GET /api/reader/stats
func (h *ReaderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionStatsResponse{Sessions: h.reader.SessionCount()})
}

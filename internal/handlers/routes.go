package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewStaticHandler serves page illustrations from the assets directory
func NewStaticHandler(assetsPath string) http.Handler {
	return http.StripPrefix("/assets/", http.FileServer(http.Dir(assetsPath)))
}

// SetupRoutes wires every handler onto a router
func SetupRoutes(content *ContentHandler, progress *ProgressHandler, reader *ReaderHandler, static http.Handler) *mux.Router {
	router := mux.NewRouter()

	// WebSocket endpoint
	router.HandleFunc("/ws/reader", reader.ServeReader)

	api := router.PathPrefix("/api").Subrouter()

	// Content
	api.HandleFunc("/textbooks/{textbookId}/chapters", content.ListChapters).Methods("GET")
	api.HandleFunc("/lessons/{lessonId}", content.GetLesson).Methods("GET")
	api.HandleFunc("/lessons/{lessonId}/pages/{page:[0-9]+}", content.GetPage).Methods("GET")

	// Reading progress
	api.HandleFunc("/progress/{lessonId}", progress.GetProgress).Methods("GET")
	api.HandleFunc("/progress/{lessonId}", progress.SaveProgress).Methods("PUT")

	api.HandleFunc("/reader/stats", reader.Stats).Methods("GET")

	// Page illustrations
	router.PathPrefix("/assets/").Handler(static)

	return router
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"textbook-reader/internal/config"
	"textbook-reader/internal/logger"
	"textbook-reader/internal/models"
	"textbook-reader/internal/surface"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

// ImageSource reports the natural size of a page illustration
type ImageSource interface {
	Probe(ref string) (surface.ImageInfo, error)
}

// ProgressTracker remembers the last page a learner reached in a lesson
type ProgressTracker interface {
	Get(lessonID string) (models.Progress, bool)
	Save(lessonID string, page int) error
}

// ReaderService owns the live reading sessions
type ReaderService struct {
	content  ContentSource
	images   ImageSource
	progress ProgressTracker
	cfg      config.ReaderConfig
	log      *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewReaderService creates a reader service. progress may be nil.
func NewReaderService(content ContentSource, images ImageSource, progress ProgressTracker, cfg config.ReaderConfig, log *logger.Logger) *ReaderService {
	return &ReaderService{
		content:  content,
		images:   images,
		progress: progress,
		cfg:      cfg,
		log:      logger.OrNop(log).With("component", "ReaderService"),
		sessions: make(map[string]*Session),
	}
}

// NewSession opens a reading session on a lesson and starts its event loop.
// The session is removed from the service when it closes.
func (rs *ReaderService) NewSession(ctx context.Context, lessonID string) (*Session, error) {
	if lessonID == "" {
		return nil, fmt.Errorf("lessonId is required")
	}
	lesson, err := rs.content.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	// The session outlives the request that opened it
	s, err := newSession(context.WithoutCancel(ctx), *lesson, rs)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	s.onClose = rs.remove

	rs.mu.Lock()
	rs.sessions[s.ID] = s
	rs.mu.Unlock()

	rs.log.Info("Reading session opened", "session_id", s.ID, "lesson_id", lessonID, "pages", lesson.PageCount)
	s.Start()
	return s, nil
}

func (rs *ReaderService) remove(s *Session) {
	rs.mu.Lock()
	delete(rs.sessions, s.ID)
	rs.mu.Unlock()
	rs.log.Info("Reading session closed", "session_id", s.ID, "lesson_id", s.LessonID)
}

// GetSession returns a live session by id
func (rs *ReaderService) GetSession(id string) (*Session, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	s, ok := rs.sessions[id]
	return s, ok
}

// SessionCount returns the number of live sessions
func (rs *ReaderService) SessionCount() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.sessions)
}

// Shutdown closes every live session
func (rs *ReaderService) Shutdown() {
	rs.mu.RLock()
	live := make([]*Session, 0, len(rs.sessions))
	for _, s := range rs.sessions {
		live = append(live, s)
	}
	rs.mu.RUnlock()

	for _, s := range live {
		s.Close()
	}
}

// Serve pumps a session over a websocket connection until either side
// goes away. It blocks and closes both the session and the connection.
func (rs *ReaderService) Serve(conn *websocket.Conn, s *Session) {
	defer s.Close()
	go rs.writePump(conn, s)
	rs.readPump(conn, s)
}

func (rs *ReaderService) readPump(conn *websocket.Conn, s *Session) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rs.log.Warn("WebSocket read error", "session_id", s.ID, "error", err)
			} else {
				rs.log.Debug("WebSocket closed", "session_id", s.ID, "error", err)
			}
			return
		}
		s.Dispatch(msg)
	}
}

func (rs *ReaderService) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg := <-s.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				rs.log.Warn("WebSocket write error", "session_id", s.ID, "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

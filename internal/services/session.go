package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"textbook-reader/internal/config"
	"textbook-reader/internal/flip"
	"textbook-reader/internal/geometry"
	"textbook-reader/internal/hotspot"
	"textbook-reader/internal/logger"
	"textbook-reader/internal/models"
	"textbook-reader/internal/surface"
	"textbook-reader/internal/zoom"
)

// Server → client message types
const (
	MsgSession         = "session"
	MsgPage            = "page"
	MsgLayout          = "layout"
	MsgScale           = "scale"
	MsgFlip            = "flip"
	MsgPageChanged     = "pageChanged"
	MsgBoundary        = "boundary"
	MsgBoundaryCleared = "boundaryCleared"
	MsgHotspot         = "hotspot"
	MsgError           = "error"
)

// Client → server message types
const (
	MsgResize = "resize"
	MsgZoom   = "zoom"
	MsgPinch  = "pinch"
	MsgTap    = "tap"
	MsgNav    = "nav"
)

const (
	eventQueueSize  = 64
	outboundBufSize = 256
)

// Message is sent to the reader client
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ClientMessage is received from the reader client
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type resizeRequest struct {
	Width float64 `json:"width"`
}

type zoomRequest struct {
	Action string  `json:"action"`
	Scale  float64 `json:"scale,omitempty"`
}

type pinchRequest struct {
	Phase  string           `json:"phase"`
	Points []geometry.Point `json:"points"`
}

type tapRequest struct {
	HotspotID string   `json:"hotspotId,omitempty"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
}

type navRequest struct {
	Action string `json:"action"`
	Page   int    `json:"page,omitempty"`
}

// SessionInfo is the payload of the session message
type SessionInfo struct {
	SessionID string        `json:"sessionId"`
	Lesson    models.Lesson `json:"lesson"`
	Page      int           `json:"page"`
	Label     string        `json:"label"`
	Zoom      zoom.State    `json:"zoom"`
}

// HotspotLayout is one hotspot's position in a layout message
type HotspotLayout struct {
	ID   string             `json:"id"`
	Kind models.HotspotKind `json:"kind"`
	Rect geometry.Rect      `json:"rect"`
}

// Layout is the payload of the layout message
type Layout struct {
	Page     int             `json:"page"`
	Scale    float64         `json:"scale"`
	Hotspots []HotspotLayout `json:"hotspots"`
}

// PageChanged is the payload of the pageChanged message
type PageChanged struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
}

// FlipStarted is the payload of the flip message
type FlipStarted struct {
	From       int            `json:"from"`
	To         int            `json:"to"`
	Direction  flip.Direction `json:"direction"`
	DurationMs int64          `json:"durationMs"`
}

// Boundary is the payload of the boundary message
type Boundary struct {
	Kind    flip.BoundaryKind `json:"kind"`
	Message string            `json:"message"`
}

// HotspotActivated is the payload of the hotspot message
type HotspotActivated struct {
	ID       string             `json:"id"`
	Kind     models.HotspotKind `json:"kind"`
	AudioRef string             `json:"audioRef"`
	Text     string             `json:"text,omitempty"`
}

// Session is one learner reading one lesson. All reader state lives on the
// session's event loop; transports only post work to it and drain Outbound.
type Session struct {
	ID       string
	LessonID string

	content  ContentSource
	images   ImageSource
	progress ProgressTracker
	cfg      config.ReaderConfig
	log      *logger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan func()
	send      chan Message
	saves     chan int
	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*Session)

	// owned by the event loop
	lesson       models.Lesson
	zoom         *zoom.Controller
	flip         *flip.Controller
	surface      *surface.Surface
	width        float64
	placed       map[string]geometry.Rect
	pageRequests uint64
}

func newSession(ctx context.Context, lesson models.Lesson, rs *ReaderService) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.New().String()
	s := &Session{
		ID:       id,
		LessonID: lesson.ID,
		content:  rs.content,
		images:   rs.images,
		progress: rs.progress,
		cfg:      rs.cfg,
		log:      rs.log.With("session_id", id, "lesson_id", lesson.ID),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan func(), eventQueueSize),
		send:     make(chan Message, outboundBufSize),
		saves:    make(chan int, 1),
		done:     make(chan struct{}),
		lesson:   lesson,
		placed:   make(map[string]geometry.Rect),
	}

	var err error
	s.zoom, err = zoom.New(
		zoom.WithRange(rs.cfg.ZoomMin, rs.cfg.ZoomMax),
		zoom.WithStep(rs.cfg.ZoomStep),
		zoom.WithLogger(s.log),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	startPage := 1
	if s.progress != nil {
		if p, ok := s.progress.Get(lesson.ID); ok {
			startPage = p.Page
		}
	}
	s.flip, err = flip.New(lesson.PageCount,
		flip.WithStartPage(startPage),
		flip.WithAnimator(flip.AnimatorFunc(s.animate)),
		flip.WithScheduler(s),
		flip.WithBoundaryDuration(rs.cfg.BoundaryDuration),
		flip.WithLogger(s.log),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("lesson %s: %w", lesson.ID, err)
	}

	s.surface, err = surface.New(surface.Config{
		Container: s,
		Targets:   s.newTarget,
		Images:    loopImageLoader{s: s},
		Zoom:      s.zoom,
		Logger:    s.log,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	s.wire()
	return s, nil
}

func (s *Session) wire() {
	s.zoom.OnScaleChanged(func(scale float64) {
		s.emit(MsgScale, s.zoom.State())
	})
	s.surface.OnLayout(func(scale float64) {
		s.flushLayout(scale)
	})
	s.surface.OnHotspotActivated(func(h models.Hotspot) {
		s.emit(MsgHotspot, HotspotActivated{ID: h.ID, Kind: h.Kind, AudioRef: h.AudioRef, Text: h.Text})
	})
	s.surface.OnLoadError(func(err error) {
		s.log.Warn("Page image unavailable", "error", err)
		s.emit(MsgError, map[string]string{"message": "image unavailable"})
	})
	s.flip.OnPageChanged(func(current, total int) {
		s.emit(MsgPageChanged, PageChanged{Current: current, Total: total, Label: s.flip.PageLabel()})
		s.saveProgress(current)
		s.requestPage(current)
	})
	s.flip.OnBoundaryReached(func(kind flip.BoundaryKind) {
		s.emit(MsgBoundary, Boundary{Kind: kind, Message: s.flip.BoundaryMessage()})
	})
	s.flip.OnBoundaryCleared(func() {
		s.emit(MsgBoundaryCleared, nil)
	})
}

// Start runs the event loop and loads the first page.
func (s *Session) Start() {
	go s.loop()
	if s.progress != nil {
		go s.progressWriter()
	}
	s.post(func() {
		s.emit(MsgSession, SessionInfo{
			SessionID: s.ID,
			Lesson:    s.lesson,
			Page:      s.flip.Current(),
			Label:     s.flip.PageLabel(),
			Zoom:      s.zoom.State(),
		})
		s.requestPage(s.flip.Current())
	})
}

func (s *Session) loop() {
	defer s.surface.Close()
	for {
		select {
		case task := <-s.events:
			task()
		case <-s.done:
			return
		}
	}
}

// post queues fn on the event loop. It drops fn once the session is closed.
func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// Close stops the event loop. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outbound carries messages for the client.
func (s *Session) Outbound() <-chan Message { return s.send }

func (s *Session) emit(msgType string, data interface{}) {
	select {
	case s.send <- Message{Type: msgType, Data: data}:
	default:
		s.log.Warn("Outbound buffer full, dropping message", "type", msgType)
	}
}

// Dispatch hands a client message to the event loop.
func (s *Session) Dispatch(msg ClientMessage) {
	s.post(func() { s.handle(msg) })
}

func (s *Session) handle(msg ClientMessage) {
	var err error
	switch msg.Type {
	case MsgResize:
		err = s.handleResize(msg.Data)
	case MsgZoom:
		err = s.handleZoom(msg.Data)
	case MsgPinch:
		err = s.handlePinch(msg.Data)
	case MsgTap:
		err = s.handleTap(msg.Data)
	case MsgNav:
		err = s.handleNav(msg.Data)
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}
	if err != nil {
		// Input problems are never shown to the learner
		s.log.Warn("Ignoring client message", "type", msg.Type, "error", err)
	}
}

func (s *Session) handleResize(raw json.RawMessage) error {
	var req resizeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}
	if req.Width <= 0 {
		return fmt.Errorf("width must be positive, got %v", req.Width)
	}
	s.width = req.Width
	s.surface.Resize(req.Width)
	return nil
}

func (s *Session) handleZoom(raw json.RawMessage) error {
	var req zoomRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}
	switch req.Action {
	case "in":
		s.zoom.StepIn()
	case "out":
		s.zoom.StepOut()
	case "reset":
		s.zoom.Reset()
	case "set":
		s.zoom.SetScale(req.Scale)
	default:
		return fmt.Errorf("unknown zoom action %q", req.Action)
	}
	return nil
}

func (s *Session) handlePinch(raw json.RawMessage) error {
	var req pinchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		// A broken gesture frame must not leave a pinch running
		s.zoom.EndPinch()
		return err
	}
	switch req.Phase {
	case "begin":
		s.zoom.BeginPinch(req.Points...)
	case "update":
		s.zoom.UpdatePinch(req.Points...)
	case "end", "cancel":
		s.zoom.EndPinch()
	default:
		s.zoom.EndPinch()
		return fmt.Errorf("unknown pinch phase %q", req.Phase)
	}
	return nil
}

func (s *Session) handleTap(raw json.RawMessage) error {
	var req tapRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}
	if req.HotspotID != "" {
		s.surface.Tap(req.HotspotID)
		return nil
	}
	if req.X != nil && req.Y != nil {
		s.surface.TapAt(geometry.Pt(*req.X, *req.Y))
		return nil
	}
	return errors.New("tap needs a hotspotId or x/y")
}

func (s *Session) handleNav(raw json.RawMessage) error {
	var req navRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}
	switch req.Action {
	case "next":
		s.flip.Next()
	case "prev":
		s.flip.Prev()
	case "goto":
		s.flip.GoTo(req.Page)
	default:
		return fmt.Errorf("unknown nav action %q", req.Action)
	}
	return nil
}

// requestPage fetches page n off the loop and loads it when it arrives.
// The lesson is re-read alongside so a corrected page count reaches the
// flip controller. Only the most recent request is honoured.
func (s *Session) requestPage(n int) {
	s.pageRequests++
	req := s.pageRequests
	go func() {
		page, err := s.content.GetPageContent(s.ctx, s.LessonID, n)
		lesson, lessonErr := s.content.GetLesson(s.ctx, s.LessonID)
		s.post(func() {
			if req != s.pageRequests {
				return
			}
			if lessonErr == nil && s.syncPageCount(lesson.PageCount) {
				return
			}
			if err != nil {
				s.log.Error("Failed to load page content", "page", n, "error", err)
				s.emit(MsgError, map[string]string{"message": "page unavailable"})
				return
			}
			s.emit(MsgPage, page)
			s.surface.Load(page)
		})
	}()
}

// syncPageCount applies a changed lesson page count. It reports true when
// the current page moved and a new page fetch replaced the pending one.
func (s *Session) syncPageCount(total int) bool {
	if total == s.flip.Total() {
		return false
	}
	before := s.flip.Current()
	if err := s.flip.SetTotal(total); err != nil {
		s.log.Warn("Cannot apply lesson page count", "total", total, "error", err)
		return false
	}
	s.lesson.PageCount = total
	current := s.flip.Current()
	s.log.Info("Lesson page count changed", "total", total, "page", current)
	s.emit(MsgPageChanged, PageChanged{Current: current, Total: total, Label: s.flip.PageLabel()})
	if current == before {
		return false
	}
	s.saveProgress(current)
	s.requestPage(current)
	return true
}

// saveProgress hands page to the progress writer. Only the latest
// unwritten page is kept.
func (s *Session) saveProgress(page int) {
	if s.progress == nil {
		return
	}
	select {
	case s.saves <- page:
	default:
		select {
		case <-s.saves:
		default:
		}
		s.saves <- page
	}
}

// progressWriter persists pages off the loop, flushing the last one on close.
func (s *Session) progressWriter() {
	for {
		select {
		case page := <-s.saves:
			s.writeProgress(page)
		case <-s.done:
			select {
			case page := <-s.saves:
				s.writeProgress(page)
			default:
			}
			return
		}
	}
}

func (s *Session) writeProgress(page int) {
	if err := s.progress.Save(s.LessonID, page); err != nil {
		s.log.Warn("Failed to save reading progress", "page", page, "error", err)
	}
}

// animate announces the flip to the client and completes it on the loop
// once the configured duration has passed.
func (s *Session) animate(from, to int, dir flip.Direction, done func()) {
	d := s.cfg.FlipDuration
	s.emit(MsgFlip, FlipStarted{From: from, To: to, Direction: dir, DurationMs: d.Milliseconds()})
	if d <= 0 {
		done()
		return
	}
	time.AfterFunc(d, func() { s.post(done) })
}

// AfterFunc runs f on the event loop after d. Cancelling from the loop
// also suppresses a timer that already fired but has not run yet.
func (s *Session) AfterFunc(d time.Duration, f func()) func() {
	cancelled := false
	t := time.AfterFunc(d, func() {
		s.post(func() {
			if !cancelled {
				f()
			}
		})
	})
	return func() {
		cancelled = true
		t.Stop()
	}
}

// Width is the client's displayed page width at zoom 1.
func (s *Session) Width() float64 { return s.width }

func (s *Session) newTarget(h models.Hotspot) hotspot.Target {
	return clientTarget{s: s, id: h.ID}
}

// flushLayout ships every placed rect in one message after a layout pass.
func (s *Session) flushLayout(scale float64) {
	hotspots := s.surface.Layer().Hotspots()
	out := Layout{Page: s.flip.Current(), Scale: scale, Hotspots: make([]HotspotLayout, 0, len(hotspots))}
	if page, ok := s.surface.Page(); ok {
		out.Page = page.Number
	}
	for _, h := range hotspots {
		r, ok := s.placed[h.ID]
		if !ok {
			continue
		}
		out.Hotspots = append(out.Hotspots, HotspotLayout{ID: h.ID, Kind: h.Kind, Rect: r})
	}
	s.emit(MsgLayout, out)
}

// clientTarget stands for a hotspot element drawn by the client.
type clientTarget struct {
	s  *Session
	id string
}

func (t clientTarget) Apply(r geometry.Rect) { t.s.placed[t.id] = r }
func (t clientTarget) Remove()               { delete(t.s.placed, t.id) }

// loopImageLoader probes images off the loop and delivers the result on it.
type loopImageLoader struct {
	s *Session
}

func (l loopImageLoader) Load(ref string, done func(surface.ImageInfo, error)) {
	go func() {
		info, err := l.s.images.Probe(ref)
		l.s.post(func() { done(info, err) })
	}()
}

// Package surface renders one page: background image plus hotspots, kept in
// register through image load, container resize and zoom.
package surface

import (
	"errors"
	"fmt"

	"textbook-reader/internal/geometry"
	"textbook-reader/internal/hotspot"
	"textbook-reader/internal/logger"
	"textbook-reader/internal/models"
	"textbook-reader/internal/zoom"
)

var (
	ErrNoContainer     = errors.New("page surface needs a container")
	ErrNoTargetFactory = errors.New("page surface needs a hotspot target factory")
	ErrNoImageLoader   = errors.New("page surface needs an image loader")
	ErrNoZoom          = errors.New("page surface needs a zoom controller")
)

// Container is the box the background image is laid out in.
type Container interface {
	// Width is the displayed image width at zoom 1.
	Width() float64
}

// ImageInfo describes a loaded background image.
type ImageInfo struct {
	NaturalWidth  float64
	NaturalHeight float64
}

// ImageLoader loads a background image and calls done later with its
// natural size or an error. done must be delivered on the caller's loop.
type ImageLoader interface {
	Load(ref string, done func(ImageInfo, error))
}

// Config holds the collaborators of a Surface.
type Config struct {
	Container Container
	Targets   hotspot.TargetFactory
	Images    ImageLoader
	Zoom      *zoom.Controller
	Logger    *logger.Logger
}

// Surface is the render target for one page at a time. Not safe for
// concurrent use.
type Surface struct {
	container Container
	images    ImageLoader
	zoom      *zoom.Controller
	layer     *hotspot.Layer
	log       *logger.Logger
	zoomSub   zoom.Subscription

	page           *models.Page
	generation     uint64
	natural        ImageInfo
	ready          bool
	containerWidth float64

	activated  []func(models.Hotspot)
	loadErrors []func(error)
	layouts    []func(scale float64)
}

// New validates cfg and subscribes to zoom changes.
func New(cfg Config) (*Surface, error) {
	switch {
	case cfg.Container == nil:
		return nil, ErrNoContainer
	case cfg.Targets == nil:
		return nil, ErrNoTargetFactory
	case cfg.Images == nil:
		return nil, ErrNoImageLoader
	case cfg.Zoom == nil:
		return nil, ErrNoZoom
	}
	log := logger.OrNop(cfg.Logger)
	s := &Surface{
		container:      cfg.Container,
		images:         cfg.Images,
		zoom:           cfg.Zoom,
		layer:          hotspot.NewLayer(cfg.Targets, log),
		log:            log,
		containerWidth: cfg.Container.Width(),
	}
	s.zoomSub = cfg.Zoom.OnScaleChanged(func(float64) { s.reposition() })
	return s, nil
}

// Close detaches the surface from the zoom controller and removes targets.
func (s *Surface) Close() {
	s.zoomSub.Cancel()
	s.layer.Clear()
	s.generation++
}

// Load replaces the current page. Hotspots are mounted at once; if the page
// has a background they are positioned when the image finishes loading.
func (s *Surface) Load(page models.Page) {
	s.generation++
	gen := s.generation
	s.page = &page
	s.ready = false
	s.natural = ImageInfo{}
	s.layer.SetHotspots(page.Hotspots)

	if page.Background == nil || page.Background.Ref == "" {
		s.layer.Mount()
		s.notifyLayout(1)
		return
	}
	bg := *page.Background
	s.images.Load(bg.Ref, func(info ImageInfo, err error) {
		if gen != s.generation {
			s.log.Debug("dropping image load for replaced page", "ref", bg.Ref)
			return
		}
		s.imageLoaded(bg, info, err)
	})
}

func (s *Surface) imageLoaded(bg models.Background, info ImageInfo, err error) {
	if err != nil {
		s.log.Warn("background image failed to load", "ref", bg.Ref, "error", err)
		s.layer.Mount()
		s.notifyLayout(1)
		loadErr := fmt.Errorf("failed to load background %q: %w", bg.Ref, err)
		for _, fn := range s.loadErrors {
			fn(loadErr)
		}
		return
	}
	if info.NaturalWidth <= 0 {
		info.NaturalWidth, info.NaturalHeight = bg.NaturalWidth, bg.NaturalHeight
	}
	s.natural = info
	s.ready = true
	s.reposition()
}

// Resize records a new container width and repositions.
func (s *Surface) Resize(width float64) {
	s.containerWidth = width
	s.reposition()
}

// Scale is the multiplier from origin space to display pixels: fit-to-width
// scale times zoom. Before the image is known it is 1.
func (s *Surface) Scale() float64 {
	if !s.ready {
		return 1
	}
	fit, err := geometry.ScaleOf(s.natural.NaturalWidth, s.containerWidth)
	if err != nil {
		s.log.Warn("cannot derive display scale", "natural_width", s.natural.NaturalWidth, "error", err)
	}
	return fit * s.zoom.Scale()
}

// reposition is skipped until both the natural size and a laid-out
// container width are known.
func (s *Surface) reposition() {
	if !s.ready || s.containerWidth <= 0 {
		return
	}
	scale := s.Scale()
	s.layer.Reposition(scale)
	s.notifyLayout(scale)
}

func (s *Surface) notifyLayout(scale float64) {
	for _, fn := range s.layouts {
		fn(scale)
	}
}

// Tap activates the hotspot with id. Unknown ids return false quietly.
func (s *Surface) Tap(id string) bool {
	h, ok := s.layer.Activate(id)
	if !ok {
		return false
	}
	s.fireActivated(h)
	return true
}

// TapAt activates the hotspot under p, in display pixels.
func (s *Surface) TapAt(p geometry.Point) bool {
	h, ok := s.layer.HitTest(p)
	if !ok {
		return false
	}
	s.fireActivated(h)
	return true
}

func (s *Surface) fireActivated(h models.Hotspot) {
	for _, fn := range s.activated {
		fn(h)
	}
}

// OnHotspotActivated registers fn for hotspot taps.
func (s *Surface) OnHotspotActivated(fn func(models.Hotspot)) {
	s.activated = append(s.activated, fn)
}

// OnLoadError registers fn for background image failures.
func (s *Surface) OnLoadError(fn func(error)) {
	s.loadErrors = append(s.loadErrors, fn)
}

// OnLayout registers fn for every pass that moved hotspot targets.
func (s *Surface) OnLayout(fn func(scale float64)) {
	s.layouts = append(s.layouts, fn)
}

// Page returns the loaded page, if any.
func (s *Surface) Page() (models.Page, bool) {
	if s.page == nil {
		return models.Page{}, false
	}
	return *s.page, true
}

// Ready reports whether the background's natural size is known.
func (s *Surface) Ready() bool { return s.ready }

// Natural returns the natural image size recorded at load.
func (s *Surface) Natural() ImageInfo { return s.natural }

// Layer exposes the hotspot layer for read access.
func (s *Surface) Layer() *hotspot.Layer { return s.layer }

// Package zoom holds the reader's zoom scale. Scale changes come from step
// commands or from a two-finger pinch and are always clamped before anyone
// hears about them.
package zoom

import (
	"errors"
	"fmt"
	"math"

	"textbook-reader/internal/geometry"
	"textbook-reader/internal/logger"
)

const (
	DefaultMin   = 0.5
	DefaultMax   = 3.0
	DefaultScale = 1.0
	DefaultStep  = 0.25
)

// ErrInvalidRange is returned for ranges that are empty, non-positive, or
// exclude the default scale of 1.
var ErrInvalidRange = errors.New("invalid zoom range")

// State is a snapshot of the zoom scale and its bounds.
type State struct {
	Scale float64 `json:"scale"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type pinchState struct {
	active          bool
	initialDistance float64
	initialScale    float64
}

// Option configures a Controller.
type Option func(*Controller) error

// WithRange sets the clamp bounds. See ValidateRange.
func WithRange(min, max float64) Option {
	return func(c *Controller) error {
		if err := ValidateRange(min, max); err != nil {
			return err
		}
		c.state.Min, c.state.Max = min, max
		return nil
	}
}

// WithStep sets the increment used by StepIn and StepOut.
func WithStep(step float64) Option {
	return func(c *Controller) error {
		if step <= 0 || math.IsNaN(step) {
			return fmt.Errorf("zoom step must be positive, got %v", step)
		}
		c.step = step
		return nil
	}
}

// WithLogger sets the controller's logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Controller) error {
		c.log = logger.OrNop(log)
		return nil
	}
}

// Controller owns the zoom state. It is not safe for concurrent use.
type Controller struct {
	state     State
	step      float64
	pinch     pinchState
	listeners *listeners
	log       *logger.Logger
}

// New creates a controller at scale 1 with the default range and step.
func New(opts ...Option) (*Controller, error) {
	c := &Controller{
		state:     State{Scale: DefaultScale, Min: DefaultMin, Max: DefaultMax},
		step:      DefaultStep,
		listeners: &listeners{},
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to configure zoom: %w", err)
		}
	}
	return c, nil
}

// ValidateRange accepts 0 < min <= 1 <= max. A range that excludes 1 would
// make the initial and reset scale unreachable.
func ValidateRange(min, max float64) error {
	switch {
	case math.IsNaN(min) || math.IsNaN(max):
		return fmt.Errorf("%w: NaN bound", ErrInvalidRange)
	case min <= 0:
		return fmt.Errorf("%w: min %v must be positive", ErrInvalidRange, min)
	case min > max:
		return fmt.Errorf("%w: min %v above max %v", ErrInvalidRange, min, max)
	case min > DefaultScale || max < DefaultScale:
		return fmt.Errorf("%w: [%v, %v] excludes scale %v", ErrInvalidRange, min, max, DefaultScale)
	}
	return nil
}

// SetRange changes the bounds and re-clamps the current scale.
func (c *Controller) SetRange(min, max float64) error {
	if err := ValidateRange(min, max); err != nil {
		return err
	}
	c.state.Min, c.state.Max = min, max
	c.SetScale(c.state.Scale)
	return nil
}

// SetScale clamps requested into [Min, Max], stores it, and notifies every
// listener with the clamped value. NaN requests are dropped.
func (c *Controller) SetScale(requested float64) float64 {
	if math.IsNaN(requested) {
		c.log.Warn("ignoring NaN zoom request", "scale", c.state.Scale)
		return c.state.Scale
	}
	c.state.Scale = clamp(requested, c.state.Min, c.state.Max)
	c.listeners.emit(c.state.Scale)
	return c.state.Scale
}

// StepIn zooms in by one step.
func (c *Controller) StepIn() float64 { return c.SetScale(c.state.Scale + c.step) }

// StepOut zooms out by one step.
func (c *Controller) StepOut() float64 { return c.SetScale(c.state.Scale - c.step) }

// Reset returns to scale 1.
func (c *Controller) Reset() float64 { return c.SetScale(DefaultScale) }

// BeginPinch starts a pinch from exactly two contact points. Any other
// count ends whatever pinch was running and reports false.
func (c *Controller) BeginPinch(points ...geometry.Point) bool {
	if len(points) != 2 {
		c.EndPinch()
		return false
	}
	c.pinch = pinchState{
		active:          true,
		initialDistance: geometry.Distance(points[0], points[1]),
		initialScale:    c.state.Scale,
	}
	return true
}

// UpdatePinch derives a scale from the current finger spread relative to
// the spread at BeginPinch. A third finger or a lifted one ends the pinch.
func (c *Controller) UpdatePinch(points ...geometry.Point) bool {
	if !c.pinch.active {
		return false
	}
	if len(points) != 2 {
		c.EndPinch()
		return false
	}
	if c.pinch.initialDistance <= 0 {
		c.log.Debug("pinch started with coincident points, ignoring update")
		return false
	}
	current := geometry.Distance(points[0], points[1])
	c.SetScale(c.pinch.initialScale * (current / c.pinch.initialDistance))
	return true
}

// EndPinch discards the pinch state. Call it for cancelled gestures too.
func (c *Controller) EndPinch() {
	c.pinch = pinchState{}
}

func (c *Controller) Pinching() bool { return c.pinch.active }
func (c *Controller) Scale() float64 { return c.state.Scale }
func (c *Controller) State() State   { return c.state }

// OnScaleChanged registers fn for every scale change.
func (c *Controller) OnScaleChanged(fn func(scale float64)) Subscription {
	return c.listeners.add(fn)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

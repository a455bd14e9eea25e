// Package flip sequences page turns: it guards against overlapping
// animations, reports the first/last page boundary to the learner, and only
// moves the current page once a flip animation has finished.
package flip

import (
	"errors"
	"fmt"
	"time"

	"textbook-reader/internal/logger"
)

var (
	// ErrInvalidTotalPages rejects a controller with fewer than one page.
	ErrInvalidTotalPages = errors.New("total pages must be at least 1")
	// ErrAnimating rejects changes that would race an in-flight flip.
	ErrAnimating = errors.New("page flip in progress")
)

// DefaultBoundaryDuration is how long a boundary message stays up by default.
const DefaultBoundaryDuration = 2 * time.Second

// Direction is a presentation hint for the flip animation.
type Direction string

const (
	DirectionNone     Direction = "none"
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// BoundaryKind tells which end of the lesson navigation ran into.
type BoundaryKind string

const (
	BoundaryFirst BoundaryKind = "first"
	BoundaryLast  BoundaryKind = "last"
)

// Animator plays the page-turn transition and calls done exactly once when
// it finishes. done may be called synchronously.
type Animator interface {
	Animate(from, to int, dir Direction, done func())
}

// AnimatorFunc adapts a function to Animator.
type AnimatorFunc func(from, to int, dir Direction, done func())

func (f AnimatorFunc) Animate(from, to int, dir Direction, done func()) { f(from, to, dir, done) }

// instant completes every flip immediately.
var instant = AnimatorFunc(func(_, _ int, _ Direction, done func()) { done() })

// Scheduler defers f by d. The returned func cancels it if it has not run.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// State is a snapshot of the controller.
type State struct {
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
	Animating   bool      `json:"animating"`
	Direction   Direction `json:"direction"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithAnimator sets what plays the page turn. nil keeps the instant animator.
func WithAnimator(a Animator) Option {
	return func(c *Controller) {
		if a != nil {
			c.animator = a
		}
	}
}

// WithScheduler sets what dismisses the boundary message. The default uses
// time.AfterFunc, which fires on another goroutine.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithBoundaryDuration sets how long a boundary message stays up.
func WithBoundaryDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.boundaryDuration = d
		}
	}
}

// WithStartPage opens the controller on page n (clamped) without animating.
func WithStartPage(n int) Option {
	return func(c *Controller) { c.startPage = n }
}

// WithLogger sets the controller's logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Controller) { c.log = logger.OrNop(log) }
}

// Controller is the page-turn state machine. It is not safe for concurrent
// use: the owning session delivers every call, including animation
// completions and scheduled dismissals, on one goroutine.
type Controller struct {
	state            State
	animator         Animator
	scheduler        Scheduler
	boundaryDuration time.Duration
	startPage        int
	log              *logger.Logger

	boundary        string
	cancelDismiss   func()
	pageChanged     []func(current, total int)
	boundaryReached []func(kind BoundaryKind)
	boundaryCleared []func()
}

// New creates a controller on page 1 of totalPages.
func New(totalPages int, opts ...Option) (*Controller, error) {
	if totalPages < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTotalPages, totalPages)
	}
	c := &Controller{
		state:            State{CurrentPage: 1, TotalPages: totalPages, Direction: DirectionNone},
		animator:         instant,
		scheduler:        timerScheduler{},
		boundaryDuration: DefaultBoundaryDuration,
		log:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.startPage != 0 {
		c.state.CurrentPage = clampPage(c.startPage, totalPages)
	}
	return c, nil
}

// Next flips forward one page.
func (c *Controller) Next() bool {
	if c.state.Animating {
		return false
	}
	if c.state.CurrentPage >= c.state.TotalPages {
		c.reachBoundary(BoundaryLast)
		return false
	}
	c.flip(c.state.CurrentPage+1, DirectionForward)
	return true
}

// Prev flips back one page.
func (c *Controller) Prev() bool {
	if c.state.Animating {
		return false
	}
	if c.state.CurrentPage <= 1 {
		c.reachBoundary(BoundaryFirst)
		return false
	}
	c.flip(c.state.CurrentPage-1, DirectionBackward)
	return true
}

// GoTo flips to target, clamped into [1, total]. Targeting the visible page
// does nothing.
func (c *Controller) GoTo(target int) bool {
	if c.state.Animating {
		return false
	}
	target = clampPage(target, c.state.TotalPages)
	if target == c.state.CurrentPage {
		return false
	}
	dir := DirectionBackward
	if target > c.state.CurrentPage {
		dir = DirectionForward
	}
	c.flip(target, dir)
	return true
}

func (c *Controller) flip(target int, dir Direction) {
	from := c.state.CurrentPage
	c.state.Animating = true
	c.state.Direction = dir
	completed := false
	c.animator.Animate(from, target, dir, func() {
		if completed {
			c.log.Warn("flip completion called twice", "from", from, "to", target)
			return
		}
		completed = true
		c.complete(target)
	})
}

func (c *Controller) complete(target int) {
	c.state.CurrentPage = target
	c.state.Animating = false
	c.state.Direction = DirectionNone
	for _, fn := range c.pageChanged {
		fn(c.state.CurrentPage, c.state.TotalPages)
	}
}

func (c *Controller) reachBoundary(kind BoundaryKind) {
	if kind == BoundaryFirst {
		c.boundary = "This is the first page"
	} else {
		c.boundary = "This is the last page"
	}
	if c.cancelDismiss != nil {
		c.cancelDismiss()
	}
	c.cancelDismiss = c.scheduler.AfterFunc(c.boundaryDuration, c.DismissBoundary)
	for _, fn := range c.boundaryReached {
		fn(kind)
	}
}

// DismissBoundary clears the boundary message. The scheduler calls it after
// the boundary duration; calling it early is allowed.
func (c *Controller) DismissBoundary() {
	if c.boundary == "" {
		return
	}
	c.boundary = ""
	c.cancelDismiss = nil
	for _, fn := range c.boundaryCleared {
		fn()
	}
}

// SetTotal changes the page count, e.g. when a lesson's declared count is
// corrected, and clamps the current page without animating. It is refused
// while a flip is in flight, since the flip's target may not survive.
func (c *Controller) SetTotal(total int) error {
	if total < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidTotalPages, total)
	}
	if c.state.Animating {
		return ErrAnimating
	}
	c.state.TotalPages = total
	if c.state.CurrentPage > total {
		c.state.CurrentPage = total
	}
	return nil
}

// OnPageChanged is called after every completed flip.
func (c *Controller) OnPageChanged(fn func(current, total int)) {
	c.pageChanged = append(c.pageChanged, fn)
}

// OnBoundaryReached is called when navigation runs past either end.
func (c *Controller) OnBoundaryReached(fn func(kind BoundaryKind)) {
	c.boundaryReached = append(c.boundaryReached, fn)
}

// OnBoundaryCleared is called when the boundary message goes away.
func (c *Controller) OnBoundaryCleared(fn func()) {
	c.boundaryCleared = append(c.boundaryCleared, fn)
}

func (c *Controller) State() State            { return c.state }
func (c *Controller) Current() int            { return c.state.CurrentPage }
func (c *Controller) Total() int              { return c.state.TotalPages }
func (c *Controller) Animating() bool         { return c.state.Animating }
func (c *Controller) BoundaryMessage() string { return c.boundary }

// BoundaryDuration is how long a boundary message stays up.
func (c *Controller) BoundaryDuration() time.Duration { return c.boundaryDuration }

// PageLabel renders the page-count display, e.g. "7 / 10".
func (c *Controller) PageLabel() string {
	return fmt.Sprintf("%d / %d", c.state.CurrentPage, c.state.TotalPages)
}

func clampPage(n, total int) int {
	if n < 1 {
		return 1
	}
	if n > total {
		return total
	}
	return n
}

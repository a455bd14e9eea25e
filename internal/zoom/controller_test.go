package zoom

import (
	"errors"
	"math"
	"testing"

	"textbook-reader/internal/geometry"
)

func mustController(t *testing.T, opts ...Option) *Controller {
	t.Helper()
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestDefaults(t *testing.T) {
	c := mustController(t)
	want := State{Scale: 1, Min: 0.5, Max: 3}
	if got := c.State(); got != want {
		t.Fatalf("State: want=%+v got=%+v", want, got)
	}
}

func TestSetScaleAlwaysWithinRange(t *testing.T) {
	c := mustController(t)
	for _, req := range []float64{-5, 0, 0.1, 0.5, 1, 2.99, 3, 10, math.Inf(1), math.Inf(-1)} {
		got := c.SetScale(req)
		if got < 0.5 || got > 3 {
			t.Fatalf("SetScale(%v): out of range got=%v", req, got)
		}
		if again := c.SetScale(got); again != got {
			t.Fatalf("SetScale fixed point: want=%v got=%v", got, again)
		}
	}
}

func TestSetScaleNotifiesClampedValue(t *testing.T) {
	c := mustController(t)
	var seen []float64
	c.OnScaleChanged(func(s float64) { seen = append(seen, s) })
	c.SetScale(9)
	c.SetScale(0.01)
	if len(seen) != 2 || seen[0] != 3 || seen[1] != 0.5 {
		t.Fatalf("notifications: want=[3 0.5] got=%v", seen)
	}
}

func TestSetScaleIgnoresNaN(t *testing.T) {
	c := mustController(t)
	calls := 0
	c.OnScaleChanged(func(float64) { calls++ })
	if got := c.SetScale(math.NaN()); got != 1 {
		t.Fatalf("NaN request: want=1 got=%v", got)
	}
	if calls != 0 {
		t.Fatalf("NaN request should not notify")
	}
}

func TestStepAndReset(t *testing.T) {
	c := mustController(t)
	if got := c.StepIn(); got != 1.25 {
		t.Fatalf("StepIn: want=1.25 got=%v", got)
	}
	c.StepOut()
	if got := c.StepOut(); got != 0.75 {
		t.Fatalf("StepOut: want=0.75 got=%v", got)
	}
	c.StepOut()
	if got := c.StepOut(); got != 0.5 {
		t.Fatalf("StepOut past min: want=0.5 got=%v", got)
	}
	if got := c.Reset(); got != 1 {
		t.Fatalf("Reset: want=1 got=%v", got)
	}
}

func TestCustomStep(t *testing.T) {
	c := mustController(t, WithStep(0.5))
	if got := c.StepIn(); got != 1.5 {
		t.Fatalf("StepIn with 0.5 step: want=1.5 got=%v", got)
	}
	if _, err := New(WithStep(0)); err == nil {
		t.Fatalf("zero step should be rejected")
	}
}

func TestRangePolicy(t *testing.T) {
	bad := [][2]float64{{0, 2}, {-1, 2}, {2, 1}, {1.5, 4}, {0.2, 0.8}, {math.NaN(), 2}}
	for _, r := range bad {
		if err := ValidateRange(r[0], r[1]); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("ValidateRange(%v,%v): want ErrInvalidRange got=%v", r[0], r[1], err)
		}
		if _, err := New(WithRange(r[0], r[1])); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("New(WithRange(%v,%v)): want ErrInvalidRange got=%v", r[0], r[1], err)
		}
	}
	for _, r := range [][2]float64{{1, 1}, {0.1, 10}, {1, 5}} {
		if err := ValidateRange(r[0], r[1]); err != nil {
			t.Fatalf("ValidateRange(%v,%v): unexpected %v", r[0], r[1], err)
		}
	}
}

func TestSetRangeReclampsScale(t *testing.T) {
	c := mustController(t)
	c.SetScale(3)
	if err := c.SetRange(0.5, 2); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	if got := c.Scale(); got != 2 {
		t.Fatalf("scale after narrowing: want=2 got=%v", got)
	}
	if err := c.SetRange(2, 4); err == nil {
		t.Fatalf("range excluding 1 should be rejected")
	}
	if got := c.State(); got.Min != 0.5 || got.Max != 2 {
		t.Fatalf("rejected range must not apply: got=%+v", got)
	}
}

func TestPinchScaleDerivation(t *testing.T) {
	c := mustController(t)
	if !c.BeginPinch(geometry.Pt(0, 0), geometry.Pt(100, 0)) {
		t.Fatalf("BeginPinch with two points should start")
	}
	c.UpdatePinch(geometry.Pt(0, 0), geometry.Pt(150, 0))
	if got := c.Scale(); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("spread to 150: want=1.5 got=%v", got)
	}
	c.UpdatePinch(geometry.Pt(0, 0), geometry.Pt(0, 50))
	if got := c.Scale(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("spread to 50: want=0.5 got=%v", got)
	}
	c.UpdatePinch(geometry.Pt(0, 0), geometry.Pt(1000, 0))
	if got := c.Scale(); got != 3 {
		t.Fatalf("spread to 1000 clamps: want=3 got=%v", got)
	}
}

func TestPinchUsesScaleAtBegin(t *testing.T) {
	c := mustController(t)
	c.SetScale(2)
	c.BeginPinch(geometry.Pt(0, 0), geometry.Pt(100, 0))
	c.UpdatePinch(geometry.Pt(0, 0), geometry.Pt(50, 0))
	c.UpdatePinch(geometry.Pt(0, 0), geometry.Pt(75, 0))
	if got := c.Scale(); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("updates derive from initial scale: want=1.5 got=%v", got)
	}
}

func TestPinchRequiresExactlyTwoPoints(t *testing.T) {
	c := mustController(t)
	if c.BeginPinch(geometry.Pt(0, 0)) {
		t.Fatalf("single point must not begin a pinch")
	}
	if c.BeginPinch(geometry.Pt(0, 0), geometry.Pt(1, 1), geometry.Pt(2, 2)) {
		t.Fatalf("three points must not begin a pinch")
	}
	c.BeginPinch(geometry.Pt(0, 0), geometry.Pt(100, 0))
	if c.UpdatePinch(geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(20, 0)) {
		t.Fatalf("third finger must not continue the pinch")
	}
	if c.Pinching() {
		t.Fatalf("third finger should end the pinch")
	}
	if got := c.Scale(); got != 1 {
		t.Fatalf("scale should be untouched: got=%v", got)
	}
}

func TestPinchZeroInitialDistanceIsNoop(t *testing.T) {
	c := mustController(t)
	calls := 0
	c.OnScaleChanged(func(float64) { calls++ })
	c.BeginPinch(geometry.Pt(5, 5), geometry.Pt(5, 5))
	if c.UpdatePinch(geometry.Pt(0, 0), geometry.Pt(100, 0)) {
		t.Fatalf("degenerate pinch update should report false")
	}
	if calls != 0 || c.Scale() != 1 {
		t.Fatalf("degenerate pinch should not change scale: calls=%d scale=%v", calls, c.Scale())
	}
}

func TestEndPinchClearsState(t *testing.T) {
	c := mustController(t)
	c.BeginPinch(geometry.Pt(0, 0), geometry.Pt(100, 0))
	c.EndPinch()
	if c.Pinching() {
		t.Fatalf("EndPinch should clear active")
	}
	if c.UpdatePinch(geometry.Pt(0, 0), geometry.Pt(300, 0)) {
		t.Fatalf("update after end must be ignored")
	}
	c.EndPinch()
	if got := c.Scale(); got != 1 {
		t.Fatalf("scale after ended pinch: want=1 got=%v", got)
	}
}

func TestSubscriptionCancel(t *testing.T) {
	c := mustController(t)
	calls := 0
	sub := c.OnScaleChanged(func(float64) { calls++ })
	c.StepIn()
	sub.Cancel()
	sub.Cancel()
	c.StepIn()
	if calls != 1 {
		t.Fatalf("calls after cancel: want=1 got=%d", calls)
	}
}

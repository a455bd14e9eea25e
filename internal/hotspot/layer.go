// Package hotspot keeps the visual targets of a page's hotspots aligned with
// the displayed background image.
package hotspot

import (
	"textbook-reader/internal/geometry"
	"textbook-reader/internal/logger"
	"textbook-reader/internal/models"
)

// Target is whatever the host platform draws for one hotspot.
type Target interface {
	// Apply moves the target to r, in display pixels.
	Apply(r geometry.Rect)
	// Remove detaches the target; it is never reused afterwards.
	Remove()
}

// TargetFactory creates the visual target for a hotspot.
type TargetFactory func(h models.Hotspot) Target

type entry struct {
	hotspot models.Hotspot
	target  Target
	display geometry.Rect
	placed  bool
}

// Layer owns the hotspots of the current page. It is not safe for
// concurrent use; a reading session drives it from a single goroutine.
type Layer struct {
	factory TargetFactory
	log     *logger.Logger
	entries []*entry
	byID    map[string]*entry
}

// NewLayer creates an empty layer.
func NewLayer(factory TargetFactory, log *logger.Logger) *Layer {
	return &Layer{
		factory: factory,
		log:     logger.OrNop(log),
		byID:    make(map[string]*entry),
	}
}

// SetHotspots replaces the whole hotspot set. Previous targets are removed
// before any new one is created.
func (l *Layer) SetHotspots(list []models.Hotspot) {
	l.Clear()
	for _, h := range list {
		if prev, dup := l.byID[h.ID]; dup {
			l.log.Warn("duplicate hotspot id, keeping the later one", "hotspot_id", h.ID)
			prev.target.Remove()
			l.entries = removeEntry(l.entries, prev)
		}
		e := &entry{hotspot: h, target: l.factory(h)}
		l.entries = append(l.entries, e)
		l.byID[h.ID] = e
	}
}

// Clear removes every target.
func (l *Layer) Clear() {
	for _, e := range l.entries {
		e.target.Remove()
	}
	l.entries = nil
	l.byID = make(map[string]*entry)
}

// Reposition applies ToDisplayRect(Expand(origin, padding), scale) to every
// target. Each call recomputes from absolute state.
func (l *Layer) Reposition(scale float64) {
	for _, e := range l.entries {
		l.place(e, geometry.ToDisplayRect(geometry.Expand(e.hotspot.Origin, e.hotspot.Padding), scale))
	}
}

// Mount applies the authored rects, padded but unscaled. Used when there is
// no background image to scale against.
func (l *Layer) Mount() {
	for _, e := range l.entries {
		l.place(e, geometry.Expand(e.hotspot.Origin, e.hotspot.Padding))
	}
}

func (l *Layer) place(e *entry, r geometry.Rect) {
	e.display = r
	e.placed = true
	e.target.Apply(r)
}

// Activate resolves a hotspot by id. An unknown id reports false; taps on a
// page that has already been replaced end up here.
func (l *Layer) Activate(id string) (models.Hotspot, bool) {
	e, ok := l.byID[id]
	if !ok {
		l.log.Debug("tap on unknown hotspot ignored", "hotspot_id", id)
		return models.Hotspot{}, false
	}
	return e.hotspot, true
}

// HitTest finds the hotspot under p (display pixels). When rects overlap
// the smallest one wins, so a word inside a dialogue bubble is reachable.
func (l *Layer) HitTest(p geometry.Point) (models.Hotspot, bool) {
	var best *entry
	for _, e := range l.entries {
		if !e.placed || !e.display.Contains(p) {
			continue
		}
		if best == nil || e.display.Area() < best.display.Area() {
			best = e
		}
	}
	if best == nil {
		return models.Hotspot{}, false
	}
	return best.hotspot, true
}

// DisplayRect returns the rect last applied to a hotspot's target.
func (l *Layer) DisplayRect(id string) (geometry.Rect, bool) {
	e, ok := l.byID[id]
	if !ok || !e.placed {
		return geometry.Rect{}, false
	}
	return e.display, true
}

// Hotspots returns the current set in insertion order.
func (l *Layer) Hotspots() []models.Hotspot {
	out := make([]models.Hotspot, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.hotspot)
	}
	return out
}

// Len returns the number of hotspots on the page.
func (l *Layer) Len() int { return len(l.entries) }

func removeEntry(s []*entry, target *entry) []*entry {
	for i, e := range s {
		if e == target {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

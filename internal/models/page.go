package models

import (
	"strings"

	"textbook-reader/internal/geometry"
)

// HotspotKind classifies what a hotspot plays when tapped
type HotspotKind string

const (
	HotspotDialogue HotspotKind = "dialogue"
	HotspotWord     HotspotKind = "word"
	HotspotText     HotspotKind = "text"
	HotspotFormula  HotspotKind = "formula"
	HotspotOther    HotspotKind = "other"
)

// ParseHotspotKind maps a stored kind onto the known set; anything unknown is "other"
func ParseHotspotKind(s string) HotspotKind {
	switch k := HotspotKind(strings.ToLower(strings.TrimSpace(s))); k {
	case HotspotDialogue, HotspotWord, HotspotText, HotspotFormula:
		return k
	default:
		return HotspotOther
	}
}

// Hotspot represents a tappable region linked to an audio cue.
// Origin is expressed in the background image's natural pixel space.
type Hotspot struct {
	ID       string        `json:"id"`
	Kind     HotspotKind   `json:"kind"`
	AudioRef string        `json:"audioRef"`
	Text     string        `json:"text,omitempty"`
	Origin   geometry.Rect `json:"origin"`
	Padding  float64       `json:"padding,omitempty"`
}

// Background represents the illustrated image behind a page
type Background struct {
	Ref           string  `json:"ref"`
	NaturalWidth  float64 `json:"naturalWidth,omitempty"`
	NaturalHeight float64 `json:"naturalHeight,omitempty"`
}

// Page represents one page of a lesson with its hotspots
type Page struct {
	LessonID   string      `json:"lessonId"`
	Number     int         `json:"number"`
	Background *Background `json:"background,omitempty"`
	Hotspots   []Hotspot   `json:"hotspots"`
}

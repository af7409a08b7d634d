// Package domain contains core concepts of the chat system.
// This file defines the display entries produced by endpoints.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Side tells on which side of the conversation a line is rendered.
type Side int

const (
	// Local lines were typed on this endpoint.
	Local Side = iota
	// Remote lines were received from another participant.
	Remote
	// System lines are informational (connects, faults, toggles).
	System
)

func (s Side) String() string {
	switch s {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "system"
	}
}

// Line is one entry of the conversation view.
// Classification is nil when no classification was performed.
type Line struct {
	At             time.Time
	Text           string
	Side           Side
	Blocked        bool
	Classification *Classification
}

func NewLine(text string, side Side) Line {
	return Line{At: time.Now(), Text: text, Side: side}
}

func SystemLine(text string) Line {
	return NewLine(text, System)
}

func (l Line) WithClassification(c *Classification) Line {
	l.Classification = c
	return l
}

func (l Line) AsBlocked() Line {
	l.Blocked = true
	return l
}

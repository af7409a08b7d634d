package event

import (
	"chat-guard/domain"
	"time"

	"github.com/google/uuid"
)

// Tag is the kind of chat-log record.
type Tag string

const (
	Connect         Tag = "CONNECT"
	Disconnect      Tag = "DISCONNECT"
	Client          Tag = "CLIENT"
	Server          Tag = "SERVER"
	BlockedIncoming Tag = "BLOCKED_INCOMING"
	BlockedOutgoing Tag = "BLOCKED_OUTGOING"
)

// NoConfidence is logged when no classification applies.
const NoConfidence = -1.0

// Record is one append-only chat-log entry.
type Record struct {
	ID         uuid.UUID
	At         time.Time
	Tag        Tag
	Confidence float64
	Text       string
}

func NewRecord(tag Tag, text string, confidence float64) Record {
	return Record{
		ID:         uuid.New(),
		At:         time.Now(),
		Tag:        tag,
		Confidence: confidence,
		Text:       text,
	}
}

// ConfidenceOf returns the confidence to log for an optional classification.
func ConfidenceOf(c *domain.Classification) float64 {
	if c == nil {
		return NoConfidence
	}
	return c.Confidence
}

// IsMessage reports whether the record carries chat text rather than an address.
func (r Record) IsMessage() bool {
	return r.Tag != Connect && r.Tag != Disconnect
}

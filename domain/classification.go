package domain

import "fmt"

const (
	LabelSpam  = "spam"
	LabelHam   = "ham"
	LabelError = "error"

	DefaultSpamThreshold = 0.80
)

// Classification is the verdict of a classifier for one message.
// Confidence is not validated against [0,1].
type Classification struct {
	Label      string
	Confidence float64
}

// ErrorClassification means classification was attempted and failed.
func ErrorClassification() Classification {
	return Classification{Label: LabelError, Confidence: 0.0}
}

func (c Classification) String() string {
	return fmt.Sprintf("%s (%.2f)", c.Label, c.Confidence)
}

// Policy decides whether a classified message is suppressed.
type Policy struct {
	Threshold float64
}

func NewPolicy(threshold float64) Policy {
	return Policy{Threshold: threshold}
}

// ShouldBlock reports whether c is a confident spam verdict.
// An absent classification is never blocked, and neither is a NaN confidence.
func (p Policy) ShouldBlock(c *Classification) bool {
	return c != nil && c.Label == LabelSpam && c.Confidence >= p.Threshold
}

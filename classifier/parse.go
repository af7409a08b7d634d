package classifier

import (
	"chat-guard/domain"
	"strconv"
	"strings"
)

// ParseLine reads one "<label>|<confidence>" predictor line.
// A line without a pipe is a bare label with confidence 1.0; an unparsable
// confidence field becomes 0.0 while the label is kept. A blank line is an
// error classification.
func ParseLine(line string) domain.Classification {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return domain.ErrorClassification()
	}
	label, rest, found := strings.Cut(trimmed, "|")
	if !found {
		return domain.Classification{Label: trimmed, Confidence: 1.0}
	}
	field, _, _ := strings.Cut(rest, "|")
	confidence, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		confidence = 0.0
	}
	return domain.Classification{Label: strings.TrimSpace(label), Confidence: confidence}
}

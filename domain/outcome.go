package domain

// SendOutcome is what happened to a locally typed message.
type SendOutcome int

const (
	// Ignored input was blank.
	Ignored SendOutcome = iota
	// Blocked text stayed local; only a notice was transmitted.
	Blocked
	Sent
	// Failed transmission was reported on the display.
	Failed
)

func (o SendOutcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Blocked:
		return "blocked"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

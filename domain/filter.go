package domain

import "sync/atomic"

// FilterState is the per-endpoint spam filter switch.
// It starts enabled and is never persisted.
type FilterState struct {
	enabled atomic.Bool
}

func NewFilterState() *FilterState {
	f := &FilterState{}
	f.enabled.Store(true)
	return f
}

func (f *FilterState) Enabled() bool {
	return f.enabled.Load()
}

func (f *FilterState) Set(enabled bool) {
	f.enabled.Store(enabled)
}

// Toggle flips the switch and returns the new state.
func (f *FilterState) Toggle() bool {
	for {
		current := f.enabled.Load()
		if f.enabled.CompareAndSwap(current, !current) {
			return !current
		}
	}
}

// Label renders the state the way the toggle control shows it.
func (f *FilterState) Label() string {
	if f.Enabled() {
		return "ON"
	}
	return "OFF"
}

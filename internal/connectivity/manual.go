package connectivity

import "sync/atomic"

// Manual is a Signal driven by explicit SetOnline calls. It backs the
// assume_online configuration (constructed online, never toggled) and test
// scenarios that script connectivity transitions.
type Manual struct {
	broadcaster
	online atomic.Bool
}

// NewManual returns a manual signal with the given initial status.
func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online.Store(online)
	return m
}

// Online reports the current status.
func (m *Manual) Online() bool {
	return m.online.Load()
}

// SetOnline updates the status and broadcasts the transition to
// subscribers when it changes.
func (m *Manual) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	m.publish(online)
}

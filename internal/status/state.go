package status

import (
	"fmt"
	"slices"
	"sync"
)

// State is the login state of one profile.
type State string

const (
	Offline      State = "OFFLINE"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Online       State = "ONLINE"
	Reconnecting State = "RECONNECTING"
	LoggedOut    State = "LOGGED_OUT"
	Error        State = "ERROR"
)

var validTransitions = map[State][]State{
	Offline:      {AuthRequired, Connecting, Error},
	AuthRequired: {Connecting, Offline, Error},
	Connecting:   {Online, AuthRequired, Reconnecting, Offline, Error},
	Online:       {Reconnecting, LoggedOut, Offline, Error},
	Reconnecting: {Connecting, Online, Offline, Error},
	LoggedOut:    {AuthRequired, Offline},
	Error:        {Offline, Connecting},
}

// Label is the short form shown in the status and top bars.
func (s State) Label() string {
	switch s {
	case Online:
		return "online"
	case Connecting:
		return "connecting"
	case Reconnecting:
		return "reconnecting"
	case AuthRequired:
		return "auth required"
	case LoggedOut:
		return "logged out"
	case Error:
		return "error"
	default:
		return "offline"
	}
}

// Change describes one accepted transition.
type Change struct {
	Profile string
	From    State
	To      State
}

// Machine enforces login state transitions for a single profile and reports
// every accepted change to the observer.
type Machine struct {
	mu       sync.RWMutex
	profile  string
	current  State
	observer func(Change)
}

// NewMachine creates a machine for profile starting Offline. observer may be nil.
func NewMachine(profile string, observer func(Change)) *Machine {
	return &Machine{
		profile:  profile,
		current:  Offline,
		observer: observer,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new state, returning an error for transitions the
// table does not allow. A transition to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.current
	if from == to {
		m.mu.Unlock()
		return nil
	}
	if !slices.Contains(validTransitions[from], to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	m.current = to
	m.mu.Unlock()

	if m.observer != nil {
		m.observer(Change{Profile: m.profile, From: from, To: to})
	}
	return nil
}

// Force moves to a state regardless of the transition table. Used when the
// remote side reports a state we must mirror, such as a forced logout.
func (m *Machine) Force(to State) {
	m.mu.Lock()
	from := m.current
	m.current = to
	m.mu.Unlock()
	if from != to && m.observer != nil {
		m.observer(Change{Profile: m.profile, From: from, To: to})
	}
}

package status

import "testing"

func TestInitialState(t *testing.T) {
	m := NewMachine("p", nil)
	if m.Current() != Offline {
		t.Errorf("initial state = %s, want OFFLINE", m.Current())
	}
}

// walkTo drives m from Offline to target along an allowed path.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Offline:      {},
		AuthRequired: {AuthRequired},
		Connecting:   {Connecting},
		Online:       {Connecting, Online},
		Reconnecting: {Connecting, Online, Reconnecting},
		LoggedOut:    {Connecting, Online, LoggedOut},
		Error:        {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walk to %s: %v", target, err)
		}
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Offline, AuthRequired},
		{Offline, Connecting},
		{AuthRequired, Connecting},
		{Connecting, Online},
		{Online, Reconnecting},
		{Reconnecting, Online},
		{Online, LoggedOut},
		{LoggedOut, AuthRequired},
		{Error, Connecting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine("p", nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine("p", nil)
	if err := m.Transition(Online); err == nil {
		t.Error("Transition(OFFLINE -> ONLINE) should fail")
	}
	if m.Current() != Offline {
		t.Errorf("state = %s after rejected transition, want OFFLINE", m.Current())
	}
}

func TestTransitionNotifiesObserver(t *testing.T) {
	var got []Change
	m := NewMachine("wa_main", func(c Change) { got = append(got, c) })

	if err := m.Transition(AuthRequired); err != nil {
		t.Fatal(err)
	}
	// Same-state transition is accepted silently.
	if err := m.Transition(AuthRequired); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("observer called %d times, want 1", len(got))
	}
	if got[0].Profile != "wa_main" || got[0].From != Offline || got[0].To != AuthRequired {
		t.Errorf("change = %+v", got[0])
	}
}

func TestForceBypassesTable(t *testing.T) {
	var got []Change
	m := NewMachine("p", func(c Change) { got = append(got, c) })
	m.Force(LoggedOut)
	if m.Current() != LoggedOut {
		t.Errorf("state = %s, want LOGGED_OUT", m.Current())
	}
	if len(got) != 1 || got[0].To != LoggedOut {
		t.Errorf("changes = %+v", got)
	}
}

func TestLabel(t *testing.T) {
	if Online.Label() != "online" || State("weird").Label() != "offline" {
		t.Error("unexpected labels")
	}
}

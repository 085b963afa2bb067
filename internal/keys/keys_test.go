package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Key
	}{
		{"ctrl+q", Key{Code: tcell.KeyCtrlQ}},
		{"Ctrl+A", Key{Code: tcell.KeyCtrlA}},
		{"alt+left", Key{Code: tcell.KeyLeft, Mod: tcell.ModAlt}},
		{"pgup", Key{Code: tcell.KeyPgUp}},
		{"enter", Key{Code: tcell.KeyEnter}},
		{"x", Key{Code: tcell.KeyRune, Rune: 'x'}},
		{"alt+X", Key{Code: tcell.KeyRune, Rune: 'X', Mod: tcell.ModAlt}},
		{"alt+/", Key{Code: tcell.KeyRune, Rune: '/', Mod: tcell.ModAlt}},
		{"space", Key{Code: tcell.KeyRune, Rune: ' '}},
		{"f5", Key{Code: tcell.KeyF5}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "ctrl+", "ctrl+1", "hyper+x", "foo"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

func TestFromEvent(t *testing.T) {
	k := FromEvent(tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone))
	if k != (Key{Code: tcell.KeyRune, Rune: 'a'}) || !k.Printable() {
		t.Errorf("rune key = %+v", k)
	}
	k = FromEvent(tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl))
	if k != (Key{Code: tcell.KeyCtrlQ}) || k.Printable() {
		t.Errorf("ctrl key = %+v", k)
	}
	k = FromEvent(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModAlt))
	if k.Mod != tcell.ModAlt || k.Printable() {
		t.Errorf("alt key = %+v", k)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		k    Key
		want string
	}{
		{Key{Code: tcell.KeyCtrlQ}, "^Q"},
		{Key{Code: tcell.KeyRune, Rune: 'x', Mod: tcell.ModAlt}, "M-x"},
		{Key{Code: tcell.KeyTab}, "Tab"},
		{Key{Code: tcell.KeyRune, Rune: ' '}, "Space"},
	}
	for _, tt := range tests {
		if got := tt.k.Name(); got != tt.want {
			t.Errorf("Name(%+v) = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestDefaultsHaveNoConflicts(t *testing.T) {
	m := Default()
	for _, b := range Bindings {
		if len(m.Keys(b.Action)) == 0 {
			t.Errorf("action %s lost its default keys", b.Action)
		}
	}
	if a, ok := m.Action(Key{Code: tcell.KeyCtrlQ}); !ok || a != Quit {
		t.Errorf("ctrl+q -> %q, %v", a, ok)
	}
	if a, _ := m.Action(Key{Code: tcell.KeyBackspace2}); a != Backspace {
		t.Errorf("backspace2 -> %q", a)
	}
}

func TestResolveOverrides(t *testing.T) {
	m := Resolve(map[string]string{
		Quit:       "ctrl+w",
		SendMsg:    "bogus-key",
		ToggleTop:  "none",
		"not_real": "ctrl+b",
	}, zap.NewNop())

	if a, _ := m.Action(Key{Code: tcell.KeyCtrlW}); a != Quit {
		t.Errorf("override not applied: ctrl+w -> %q", a)
	}
	if _, ok := m.Action(Key{Code: tcell.KeyCtrlQ}); ok {
		t.Error("old quit key still bound")
	}
	if a, _ := m.Action(Key{Code: tcell.KeyEnter}); a != SendMsg {
		t.Error("invalid override should keep the default")
	}
	if len(m.Keys(ToggleTop)) != 0 {
		t.Error("none should unbind")
	}
	if _, ok := m.Action(Key{Code: tcell.KeyCtrlB}); ok {
		t.Error("unknown action must not be bound")
	}
}

func TestHints(t *testing.T) {
	m := Default()
	short := m.Hints(false)
	all := m.Hints(true)
	if len(short) == 0 || len(all) <= len(short) {
		t.Fatalf("hints: short=%d all=%d", len(short), len(all))
	}
	if short[0].Key != "Enter" || short[0].Description != "Send" {
		t.Errorf("first hint = %+v", short[0])
	}
}

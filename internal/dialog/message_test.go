package dialog

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/keys"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		key   keys.Key
		state State
		yes   bool
	}{
		{"y", keys.Key{Code: tcell.KeyRune, Rune: 'y'}, Selected, true},
		{"enter", keys.Key{Code: tcell.KeyEnter}, Selected, true},
		{"n", keys.Key{Code: tcell.KeyRune, Rune: 'N'}, Cancelled, false},
		{"esc", keys.Key{Code: tcell.KeyEscape}, Cancelled, false},
		{"other", keys.Key{Code: tcell.KeyRune, Rune: 'x'}, Active, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfirm("Delete?")
			c.HandleKey(tt.key)
			if c.State() != tt.state || c.Result() != tt.yes {
				t.Errorf("state=%v result=%v, want %v %v", c.State(), c.Result(), tt.state, tt.yes)
			}
		})
	}
}

func TestInputEditing(t *testing.T) {
	in := NewInput("Find", "helo")
	steps := []keys.Key{
		{Code: tcell.KeyLeft},
		{Code: tcell.KeyRune, Rune: 'l'},
		{Code: tcell.KeyEnd},
		{Code: tcell.KeyRune, Rune: '!'},
	}
	for _, k := range steps {
		in.HandleKey(k)
	}
	if in.Text() != "hello!" || in.Cursor() != 6 {
		t.Fatalf("Text() = %q cursor %d", in.Text(), in.Cursor())
	}
	in.HandleKey(keys.Key{Code: tcell.KeyBackspace2})
	in.HandleKey(keys.Key{Code: tcell.KeyHome})
	in.HandleKey(keys.Key{Code: tcell.KeyDelete})
	if in.Text() != "ello" {
		t.Errorf("Text() = %q, want %q", in.Text(), "ello")
	}
	if _, ok := in.Result(); ok {
		t.Error("Result() before Enter should be empty")
	}
	in.HandleKey(keys.Key{Code: tcell.KeyEnter})
	if got, ok := in.Result(); !ok || got != "ello" {
		t.Errorf("Result() = %q, %v", got, ok)
	}
}

func TestInputKillLine(t *testing.T) {
	in := NewInput("x", "abcdef")
	in.HandleKey(keys.Key{Code: tcell.KeyLeft})
	in.HandleKey(keys.Key{Code: tcell.KeyLeft})
	in.HandleKey(keys.Key{Code: tcell.KeyCtrlK})
	if in.Text() != "abcd" {
		t.Errorf("after ^K Text() = %q", in.Text())
	}
	in.HandleKey(keys.Key{Code: tcell.KeyLeft})
	in.HandleKey(keys.Key{Code: tcell.KeyCtrlU})
	if in.Text() != "d" || in.Cursor() != 0 {
		t.Errorf("after ^U Text() = %q cursor %d", in.Text(), in.Cursor())
	}
}

func TestTextScroll(t *testing.T) {
	v := NewText("Info", "1\n2\n3\n4\n5\n6")
	v.HandleKey(keys.Key{Code: tcell.KeyEnd}, 4)
	if v.Offset() != 2 {
		t.Errorf("End offset = %d, want 2", v.Offset())
	}
	v.HandleKey(keys.Key{Code: tcell.KeyDown}, 4)
	if v.Offset() != 2 {
		t.Errorf("offset past end = %d, want 2", v.Offset())
	}
	v.HandleKey(keys.Key{Code: tcell.KeyPgUp}, 4)
	if v.Offset() != 0 {
		t.Errorf("PgUp offset = %d, want 0", v.Offset())
	}
	v.HandleKey(keys.Key{Code: tcell.KeyRune, Rune: 'q'}, 4)
	if !v.State().Done() {
		t.Error("q should close the view")
	}
}

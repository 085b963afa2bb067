package dialog

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/keys"
)

// Confirm is a yes/no question.
type Confirm struct {
	Text  string
	state State
	yes   bool
}

// NewConfirm creates an active confirmation.
func NewConfirm(text string) *Confirm { return &Confirm{Text: text} }

// State returns the dialog state.
func (c *Confirm) State() State { return c.state }

// Result reports whether the user answered yes.
func (c *Confirm) Result() bool { return c.state == Selected && c.yes }

// HandleKey applies one keystroke: y or Enter accept, n or Esc decline.
func (c *Confirm) HandleKey(k keys.Key) bool {
	if c.state.Done() {
		return false
	}
	switch {
	case k.Code == tcell.KeyEnter, k.Code == tcell.KeyRune && (k.Rune == 'y' || k.Rune == 'Y'):
		c.state, c.yes = Selected, true
	case k.Code == tcell.KeyEscape, k.Code == tcell.KeyCtrlC, k.Code == tcell.KeyRune && (k.Rune == 'n' || k.Rune == 'N'):
		c.state = Cancelled
	default:
		return false
	}
	return true
}

// Input is a single-line text prompt.
type Input struct {
	Title string
	buf   []rune
	pos   int
	state State
}

// NewInput creates an active prompt holding initial text.
func NewInput(title, initial string) *Input {
	buf := []rune(initial)
	return &Input{Title: title, buf: buf, pos: len(buf)}
}

// State returns the dialog state.
func (in *Input) State() State { return in.state }

// Text returns the current text.
func (in *Input) Text() string { return string(in.buf) }

// Cursor returns the cursor position in runes.
func (in *Input) Cursor() int { return in.pos }

// Result returns the entered text once accepted.
func (in *Input) Result() (string, bool) {
	if in.state != Selected {
		return "", false
	}
	return string(in.buf), true
}

// HandleKey applies one keystroke.
func (in *Input) HandleKey(k keys.Key) bool {
	if in.state.Done() {
		return false
	}
	switch k.Code {
	case tcell.KeyEnter:
		in.state = Selected
	case tcell.KeyEscape, tcell.KeyCtrlC:
		in.state = Cancelled
	case tcell.KeyLeft, tcell.KeyCtrlB:
		in.pos = max(in.pos-1, 0)
	case tcell.KeyRight, tcell.KeyCtrlF:
		in.pos = min(in.pos+1, len(in.buf))
	case tcell.KeyHome, tcell.KeyCtrlA:
		in.pos = 0
	case tcell.KeyEnd, tcell.KeyCtrlE:
		in.pos = len(in.buf)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if in.pos > 0 {
			in.buf = append(in.buf[:in.pos-1], in.buf[in.pos:]...)
			in.pos--
		}
	case tcell.KeyDelete, tcell.KeyCtrlD:
		if in.pos < len(in.buf) {
			in.buf = append(in.buf[:in.pos], in.buf[in.pos+1:]...)
		}
	case tcell.KeyCtrlU:
		in.buf = in.buf[in.pos:]
		in.pos = 0
	case tcell.KeyCtrlK:
		in.buf = in.buf[:in.pos]
	default:
		if k.Code != tcell.KeyRune || k.Mod != 0 {
			return false
		}
		in.buf = append(in.buf[:in.pos], append([]rune{k.Rune}, in.buf[in.pos:]...)...)
		in.pos++
	}
	return true
}

// Text is a scrollable read-only view.
type Text struct {
	Title  string
	Lines  []string
	offset int
	state  State
}

// NewText creates an active text view.
func NewText(title, text string) *Text {
	return &Text{Title: title, Lines: strings.Split(text, "\n")}
}

// State returns the dialog state.
func (t *Text) State() State { return t.state }

// Offset returns the first line shown.
func (t *Text) Offset() int { return t.offset }

// HandleKey scrolls or closes the view. height is the number of visible rows.
func (t *Text) HandleKey(k keys.Key, height int) bool {
	if t.state.Done() {
		return false
	}
	last := max(len(t.Lines)-max(height, 1), 0)
	switch k.Code {
	case tcell.KeyUp:
		t.offset = max(t.offset-1, 0)
	case tcell.KeyDown:
		t.offset = min(t.offset+1, last)
	case tcell.KeyPgUp:
		t.offset = max(t.offset-height, 0)
	case tcell.KeyPgDn:
		t.offset = min(t.offset+height, last)
	case tcell.KeyHome:
		t.offset = 0
	case tcell.KeyEnd:
		t.offset = last
	case tcell.KeyEnter, tcell.KeyEscape, tcell.KeyCtrlC:
		t.state = Selected
	default:
		if k.Code == tcell.KeyRune && k.Rune == 'q' {
			t.state = Selected
			return true
		}
		return false
	}
	return true
}

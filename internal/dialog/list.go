// Package dialog holds the state machines behind the modal dialogs: a
// filterable list used by the chat, contact, emoji and file pickers, plus
// confirm, input and text views. Rendering lives in internal/tui.
package dialog

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/keys"
	"golang.org/x/text/cases"
)

// State is the lifecycle of a dialog.
type State int

const (
	Active State = iota
	Selected
	Cancelled
)

// Done reports whether the dialog has finished.
func (s State) Done() bool { return s != Active }

// Item is one selectable entry. Key identifies the entry across refreshes.
type Item[T any] struct {
	Key    string
	Label  string
	Detail string
	Value  T
}

// List is a filterable selection list.
//
// Typing narrows the visible items to those whose label or detail contains
// the filter, ignoring case. After every change the highlighted entry stays
// on the previous selection if it is still visible, otherwise it moves to
// the first visible item.
type List[T any] struct {
	Title string

	items   []Item[T]
	folded  []string
	filter  []rune
	visible []int
	cursor  int
	state   State
	fold    cases.Caser
}

// NewList creates an active list over items.
func NewList[T any](title string, items []Item[T]) *List[T] {
	l := &List[T]{Title: title, fold: cases.Fold()}
	l.SetItems(items)
	return l
}

// SetItems replaces the entries, keeping the filter and the highlighted key.
func (l *List[T]) SetItems(items []Item[T]) {
	prev, hadPrev := l.current()
	l.items = items
	l.folded = make([]string, len(items))
	for i, it := range items {
		l.folded[i] = l.fold.String(it.Label + "\x00" + it.Detail)
	}
	l.refilter(prev.Key, hadPrev)
}

func (l *List[T]) current() (Item[T], bool) {
	if l.cursor < 0 || l.cursor >= len(l.visible) {
		return Item[T]{}, false
	}
	return l.items[l.visible[l.cursor]], true
}

func (l *List[T]) refilter(prevKey string, hadPrev bool) {
	needle := l.fold.String(string(l.filter))
	l.visible = l.visible[:0]
	l.cursor = 0
	for i, f := range l.folded {
		if needle != "" && !strings.Contains(f, needle) {
			continue
		}
		if hadPrev && l.items[i].Key == prevKey {
			l.cursor = len(l.visible)
		}
		l.visible = append(l.visible, i)
	}
}

// Filter returns the current filter text.
func (l *List[T]) Filter() string { return string(l.filter) }

// SetFilter replaces the filter text.
func (l *List[T]) SetFilter(s string) {
	prev, ok := l.current()
	l.filter = []rune(s)
	l.refilter(prev.Key, ok)
}

// Visible returns the entries matching the filter.
func (l *List[T]) Visible() []Item[T] {
	out := make([]Item[T], len(l.visible))
	for i, idx := range l.visible {
		out[i] = l.items[idx]
	}
	return out
}

// Cursor returns the index of the highlighted entry within Visible, or -1
// when nothing matches.
func (l *List[T]) Cursor() int {
	if len(l.visible) == 0 {
		return -1
	}
	return l.cursor
}

// Highlighted returns the highlighted entry.
func (l *List[T]) Highlighted() (Item[T], bool) { return l.current() }

// State returns the dialog state.
func (l *List[T]) State() State { return l.state }

// Result returns the chosen value once the list is Selected.
func (l *List[T]) Result() (T, bool) {
	if l.state != Selected {
		var zero T
		return zero, false
	}
	it, ok := l.current()
	return it.Value, ok
}

// Move shifts the highlight by delta, clamped to the visible entries.
func (l *List[T]) Move(delta int) {
	if len(l.visible) == 0 {
		return
	}
	l.cursor = min(max(l.cursor+delta, 0), len(l.visible)-1)
}

// Accept selects the highlighted entry. It does nothing when nothing matches.
func (l *List[T]) Accept() {
	if _, ok := l.current(); ok {
		l.state = Selected
	}
}

// Cancel closes the list without a result.
func (l *List[T]) Cancel() { l.state = Cancelled }

// Reopen returns a finished list to the active state, e.g. after entering
// a directory in the file picker.
func (l *List[T]) Reopen() { l.state = Active }

// Window returns the first visible index to draw so the highlight fits in
// height rows.
func (l *List[T]) Window(height int) int {
	if height <= 0 || len(l.visible) <= height {
		return 0
	}
	return min(max(l.cursor-height/2, 0), len(l.visible)-height)
}

// HandleKey applies one keystroke. page is the number of rows a page moves.
// It reports whether the key was used.
func (l *List[T]) HandleKey(k keys.Key, page int) bool {
	if l.state.Done() {
		return false
	}
	switch k.Code {
	case tcell.KeyEnter:
		l.Accept()
	case tcell.KeyEscape, tcell.KeyCtrlC:
		l.Cancel()
	case tcell.KeyUp, tcell.KeyCtrlP:
		l.Move(-1)
	case tcell.KeyDown, tcell.KeyCtrlN:
		l.Move(1)
	case tcell.KeyPgUp:
		l.Move(-max(page, 1))
	case tcell.KeyPgDn:
		l.Move(max(page, 1))
	case tcell.KeyHome:
		l.Move(-len(l.visible))
	case tcell.KeyEnd:
		l.Move(len(l.visible))
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(l.filter) == 0 {
			return true
		}
		l.SetFilter(string(l.filter[:len(l.filter)-1]))
	case tcell.KeyCtrlU:
		l.SetFilter("")
	default:
		if !k.Printable() {
			return false
		}
		l.SetFilter(string(append(l.filter, k.Rune)))
	}
	return true
}

package dialog

import (
	"slices"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/keys"
)

func fruit() []Item[int] {
	return []Item[int]{
		{Key: "a", Label: "Apple", Value: 1},
		{Key: "b", Label: "Banana", Detail: "yellow", Value: 2},
		{Key: "c", Label: "Cherry", Value: 3},
		{Key: "d", Label: "Date", Value: 4},
	}
}

func labels[T any](items []Item[T]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func typeText(l *List[int], s string) {
	for _, r := range s {
		l.HandleKey(keys.Key{Code: tcell.KeyRune, Rune: r}, 10)
	}
}

func TestListFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{"empty shows all", "", []string{"Apple", "Banana", "Cherry", "Date"}},
		{"case insensitive", "AN", []string{"Banana"}},
		{"matches detail", "yel", []string{"Banana"}},
		{"substring", "e", []string{"Apple", "Banana", "Cherry", "Date"}},
		{"no match", "zz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewList("fruit", fruit())
			l.SetFilter(tt.filter)
			if got := labels(l.Visible()); !slices.Equal(got, tt.want) {
				t.Errorf("Visible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListSelectionFollowsFilter(t *testing.T) {
	l := NewList("fruit", fruit())
	l.Move(2) // Cherry
	typeText(l, "e")
	if it, _ := l.Highlighted(); it.Label != "Cherry" {
		t.Errorf("after filter highlighted %q, want Cherry kept", it.Label)
	}
	typeText(l, "r")
	if it, _ := l.Highlighted(); it.Label != "Cherry" {
		t.Errorf("after narrowing highlighted %q, want Cherry", it.Label)
	}

	l.SetFilter("")
	l.Move(-10) // Apple
	typeText(l, "ch")
	if it, _ := l.Highlighted(); it.Label != "Cherry" || l.Cursor() != 0 {
		t.Errorf("hidden selection should fall back to first, got %q at %d", it.Label, l.Cursor())
	}
}

func TestListBackspaceAndClear(t *testing.T) {
	l := NewList("fruit", fruit())
	typeText(l, "ban")
	l.HandleKey(keys.Key{Code: tcell.KeyBackspace2}, 10)
	if l.Filter() != "ba" {
		t.Errorf("Filter() = %q, want %q", l.Filter(), "ba")
	}
	l.HandleKey(keys.Key{Code: tcell.KeyCtrlU}, 10)
	if l.Filter() != "" || len(l.Visible()) != 4 {
		t.Errorf("after clear filter=%q visible=%d", l.Filter(), len(l.Visible()))
	}
	if !l.HandleKey(keys.Key{Code: tcell.KeyBackspace}, 10) {
		t.Error("backspace on empty filter should be consumed")
	}
}

func TestListAcceptAndCancel(t *testing.T) {
	l := NewList("fruit", fruit())
	l.HandleKey(keys.Key{Code: tcell.KeyDown}, 10)
	l.HandleKey(keys.Key{Code: tcell.KeyEnter}, 10)
	if v, ok := l.Result(); !ok || v != 2 {
		t.Errorf("Result() = %d, %v, want 2, true", v, ok)
	}
	if l.HandleKey(keys.Key{Code: tcell.KeyDown}, 10) {
		t.Error("finished list should ignore keys")
	}

	empty := NewList("fruit", fruit())
	empty.SetFilter("zz")
	empty.Accept()
	if empty.State() != Active {
		t.Errorf("accept with nothing visible changed state to %v", empty.State())
	}
	if empty.Cursor() != -1 {
		t.Errorf("Cursor() = %d, want -1", empty.Cursor())
	}

	cancelled := NewList("fruit", fruit())
	cancelled.HandleKey(keys.Key{Code: tcell.KeyEscape}, 10)
	if _, ok := cancelled.Result(); ok || cancelled.State() != Cancelled {
		t.Errorf("state = %v, want Cancelled without result", cancelled.State())
	}
}

func TestListNavigationClamps(t *testing.T) {
	l := NewList("fruit", fruit())
	tests := []struct {
		key  tcell.Key
		want int
	}{
		{tcell.KeyUp, 0},
		{tcell.KeyPgDn, 3},
		{tcell.KeyDown, 3},
		{tcell.KeyHome, 0},
		{tcell.KeyEnd, 3},
		{tcell.KeyCtrlP, 2},
	}
	for _, tt := range tests {
		l.HandleKey(keys.Key{Code: tt.key}, 10)
		if l.Cursor() != tt.want {
			t.Errorf("after %v Cursor() = %d, want %d", tt.key, l.Cursor(), tt.want)
		}
	}
}

func TestListSetItemsKeepsHighlight(t *testing.T) {
	l := NewList("fruit", fruit())
	l.Move(1)
	items := append([]Item[int]{{Key: "0", Label: "Apricot"}}, fruit()...)
	l.SetItems(items)
	if it, _ := l.Highlighted(); it.Key != "b" {
		t.Errorf("highlighted %q after refresh, want b", it.Key)
	}
}

func TestListWindow(t *testing.T) {
	items := make([]Item[int], 20)
	for i := range items {
		items[i] = Item[int]{Key: string(rune('a' + i)), Label: string(rune('a' + i))}
	}
	l := NewList("letters", items)
	tests := []struct {
		cursor, height, want int
	}{
		{0, 5, 0},
		{10, 5, 8},
		{19, 5, 15},
		{5, 30, 0},
	}
	for _, tt := range tests {
		l.Move(-100)
		l.Move(tt.cursor)
		if got := l.Window(tt.height); got != tt.want {
			t.Errorf("Window(%d) at %d = %d, want %d", tt.height, tt.cursor, got, tt.want)
		}
	}
}

package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// sanitize removes codepoints that break cell alignment in terminals: skin
// tone modifiers, zero width joiners and variation selectors. Control
// characters other than newline become spaces.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case problematic(r):
		case r == '\n':
			b.WriteRune(r)
		case unicode.IsControl(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func problematic(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}

// plainEmoji replaces each pictograph with "*" when emoji rendering is
// off.
func plainEmoji(s string) string {
	var b strings.Builder
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var cw int
		cluster, rest, cw, state = uniseg.FirstGraphemeClusterInString(rest, state)
		r, _ := utf8.DecodeRuneInString(cluster)
		if cw == 2 && (unicode.Is(unicode.So, r) || r >= 0x1F000) {
			b.WriteString("*")
			continue
		}
		b.WriteString(cluster)
	}
	return b.String()
}

// width is the number of cells s occupies.
func width(s string) int { return uniseg.StringWidth(s) }

// truncate cuts s to at most w cells, ending in "…" when shortened.
func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= w {
		return s
	}
	var b strings.Builder
	used := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var cw int
		cluster, rest, cw, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+cw > w-1 {
			break
		}
		b.WriteString(cluster)
		used += cw
	}
	b.WriteString("…")
	return b.String()
}

// cursorColumn returns the cell column of rune offset pos in s.
func cursorColumn(s string, pos int) int {
	rs := []rune(s)
	pos = min(max(pos, 0), len(rs))
	return uniseg.StringWidth(string(rs[:pos]))
}

// scrollEntry returns the slice of s to draw in w cells so the cursor at
// rune offset pos stays visible, plus the cursor column within it.
func scrollEntry(s string, pos, w int) (string, int) {
	rs := []rune(s)
	pos = min(max(pos, 0), len(rs))
	if w <= 1 {
		return "", 0
	}
	start := 0
	for uniseg.StringWidth(string(rs[start:pos])) > w-1 {
		start++
	}
	visible := rs[start:]
	for len(visible) > 0 && uniseg.StringWidth(string(visible)) > w {
		visible = visible[:len(visible)-1]
	}
	return string(visible), uniseg.StringWidth(string(rs[start:pos]))
}

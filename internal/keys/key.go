package keys

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// Key is a physical key combination. Only the Alt modifier is kept; Ctrl
// combinations are distinct tcell key codes.
type Key struct {
	Code tcell.Key
	Rune rune
	Mod  tcell.ModMask
}

// FromEvent converts a tcell key event.
func FromEvent(ev *tcell.EventKey) Key {
	k := Key{Code: ev.Key(), Mod: ev.Modifiers() & tcell.ModAlt}
	if k.Code != tcell.KeyRune {
		return k
	}
	r := unicode.ToLower(ev.Rune())
	if ev.Modifiers()&tcell.ModCtrl != 0 && r >= 'a' && r <= 'z' {
		// Some terminals report ctrl combinations as a modified rune.
		k.Code = tcell.KeyCtrlA + tcell.Key(r-'a')
		return k
	}
	k.Rune = ev.Rune()
	return k
}

// Printable reports whether the key inserts text when not bound.
func (k Key) Printable() bool {
	return k.Code == tcell.KeyRune && k.Mod == 0 && unicode.IsPrint(k.Rune)
}

// Name renders the key for help text, e.g. "^Q", "M-x", "PgUp".
func (k Key) Name() string {
	prefix := ""
	if k.Mod&tcell.ModAlt != 0 {
		prefix = "M-"
	}
	if k.Code == tcell.KeyRune {
		if k.Rune == ' ' {
			return prefix + "Space"
		}
		return prefix + string(k.Rune)
	}
	if k.Code >= tcell.KeyCtrlA && k.Code <= tcell.KeyCtrlZ && !namedControl(k.Code) {
		return prefix + "^" + string(rune('A'+int(k.Code-tcell.KeyCtrlA)))
	}
	if name, ok := tcell.KeyNames[k.Code]; ok {
		return prefix + name
	}
	return prefix + fmt.Sprintf("Key[%d]", k.Code)
}

// namedControl lists control codes better known by their own names.
func namedControl(c tcell.Key) bool {
	switch c {
	case tcell.KeyTab, tcell.KeyEnter, tcell.KeyBackspace:
		return true
	}
	return false
}

var specialNames = map[string]tcell.Key{
	"enter":      tcell.KeyEnter,
	"return":     tcell.KeyEnter,
	"tab":        tcell.KeyTab,
	"backtab":    tcell.KeyBacktab,
	"esc":        tcell.KeyEscape,
	"escape":     tcell.KeyEscape,
	"backspace":  tcell.KeyBackspace,
	"backspace2": tcell.KeyBackspace2,
	"delete":     tcell.KeyDelete,
	"insert":     tcell.KeyInsert,
	"up":         tcell.KeyUp,
	"down":       tcell.KeyDown,
	"left":       tcell.KeyLeft,
	"right":      tcell.KeyRight,
	"home":       tcell.KeyHome,
	"end":        tcell.KeyEnd,
	"pgup":       tcell.KeyPgUp,
	"pgdn":       tcell.KeyPgDn,
	"pageup":     tcell.KeyPgUp,
	"pagedown":   tcell.KeyPgDn,
}

func init() {
	for i := 1; i <= 12; i++ {
		specialNames[fmt.Sprintf("f%d", i)] = tcell.KeyF1 + tcell.Key(i-1)
	}
}

// Parse reads a key description such as "ctrl+q", "alt+left", "pgup", "x"
// or "space".
func Parse(s string) (Key, error) {
	s = strings.TrimSpace(s)
	name := strings.ToLower(s)
	if name == "" {
		return Key{}, fmt.Errorf("empty key name")
	}
	var k Key
	if rest, ok := strings.CutPrefix(name, "alt+"); ok {
		k.Mod = tcell.ModAlt
		name = rest
		s = s[len("alt+"):]
	}
	if rest, ok := strings.CutPrefix(name, "ctrl+"); ok {
		if len(rest) != 1 || rest[0] < 'a' || rest[0] > 'z' {
			return Key{}, fmt.Errorf("unknown key %q", s)
		}
		k.Code = tcell.KeyCtrlA + tcell.Key(rest[0]-'a')
		return k, nil
	}
	if code, ok := specialNames[name]; ok {
		k.Code = code
		return k, nil
	}
	if name == "space" {
		return Key{Code: tcell.KeyRune, Rune: ' ', Mod: k.Mod}, nil
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return Key{Code: tcell.KeyRune, Rune: r, Mod: k.Mod}, nil
	}
	return Key{}, fmt.Errorf("unknown key %q", s)
}

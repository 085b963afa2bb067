package keys

import (
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Action names understood by the chat model.
const (
	Quit                   = "quit"
	Cancel                 = "cancel"
	NextChat               = "next_chat"
	PrevChat               = "prev_chat"
	UnreadChat             = "unread_chat"
	NextPage               = "next_page"
	PrevPage               = "prev_page"
	Up                     = "up"
	Down                   = "down"
	Left                   = "left"
	Right                  = "right"
	Home                   = "home"
	End                    = "end"
	Backspace              = "backspace"
	Delete                 = "delete"
	DeleteLineAfterCursor  = "delete_line_after_cursor"
	DeleteLineBeforeCursor = "delete_line_before_cursor"
	BeginLine              = "begin_line"
	EndLine                = "end_line"
	BackwardWord           = "backward_word"
	ForwardWord            = "forward_word"
	BackwardKillWord       = "backward_kill_word"
	KillWord               = "kill_word"
	Linebreak              = "linebreak"
	SendMsg                = "send_msg"
	Cut                    = "cut"
	Copy                   = "copy"
	Paste                  = "paste"
	Clear                  = "clear"
	ToggleEmoji            = "toggle_emoji"
	ToggleHelp             = "toggle_help"
	ToggleList             = "toggle_list"
	ToggleTop              = "toggle_top"
	SelectEmoji            = "select_emoji"
	SelectContact          = "select_contact"
	GotoChat               = "goto_chat"
	ForwardMsg             = "forward_msg"
	Transfer               = "transfer"
	DeleteMsg              = "delete_msg"
	DeleteChat             = "delete_chat"
	EditMsg                = "edit_msg"
	Reply                  = "reply"
	Open                   = "open"
	Save                   = "save"
	React                  = "react"
	Find                   = "find"
	FindNext               = "find_next"
	MuteChat               = "mute_chat"
	DecreaseListWidth      = "decrease_list_width"
	IncreaseListWidth      = "increase_list_width"
)

// Binding is the default key set and help text of one action.
type Binding struct {
	Action      string
	Defaults    string
	Description string
	// Hint marks actions shown in the one-line help bar.
	Hint bool
}

// Bindings lists every action in help order.
var Bindings = []Binding{
	{SendMsg, "enter", "Send", true},
	{NextChat, "tab", "NextChat", true},
	{PrevChat, "backtab", "PrevChat", true},
	{UnreadChat, "ctrl+f", "Unread", true},
	{PrevPage, "pgup", "Older", false},
	{NextPage, "pgdn", "Newer", false},
	{Up, "up", "Up", false},
	{Down, "down", "Down", false},
	{Left, "left", "Left", false},
	{Right, "right", "Right", false},
	{Home, "home", "Home", false},
	{End, "end", "End", false},
	{Backspace, "backspace,backspace2", "Backspace", false},
	{Delete, "delete", "Delete", false},
	{DeleteLineAfterCursor, "ctrl+k", "KillLine", false},
	{DeleteLineBeforeCursor, "ctrl+u", "KillToStart", false},
	{BeginLine, "ctrl+a", "LineStart", false},
	{EndLine, "ctrl+e", "LineEnd", false},
	{BackwardWord, "alt+left", "WordLeft", false},
	{ForwardWord, "alt+right", "WordRight", false},
	{BackwardKillWord, "alt+backspace2,alt+backspace", "KillWordLeft", false},
	{KillWord, "alt+delete", "KillWord", false},
	{Linebreak, "alt+enter", "Newline", false},
	{Cut, "ctrl+x", "Cut", false},
	{Copy, "ctrl+c", "Copy", false},
	{Paste, "ctrl+v", "Paste", false},
	{Clear, "alt+x", "Clear", false},
	{ToggleEmoji, "ctrl+y", "Emoji", false},
	{ToggleHelp, "ctrl+g", "Help", true},
	{ToggleList, "ctrl+l", "List", false},
	{ToggleTop, "ctrl+p", "Top", false},
	{SelectEmoji, "ctrl+s", "AddEmoji", true},
	{SelectContact, "ctrl+n", "NewChat", true},
	{GotoChat, "ctrl+o", "GotoChat", true},
	{ForwardMsg, "alt+w", "Forward", false},
	{Transfer, "ctrl+t", "SendFile", true},
	{DeleteMsg, "ctrl+d", "DelMsg", false},
	{DeleteChat, "alt+d", "DelChat", false},
	{EditMsg, "ctrl+z", "Edit", false},
	{Reply, "ctrl+r", "Reply", true},
	{Open, "alt+o", "Open", false},
	{Save, "alt+s", "Save", false},
	{React, "alt+e", "React", false},
	{Find, "alt+/", "Find", false},
	{FindNext, "alt+?", "FindNext", false},
	{MuteChat, "alt+m", "Mute", false},
	{DecreaseListWidth, "alt+,", "ListNarrow", false},
	{IncreaseListWidth, "alt+.", "ListWide", false},
	{Cancel, "esc", "Cancel", true},
	{Quit, "ctrl+q", "Quit", true},
}

// Map resolves keys to action names and back.
type Map struct {
	byKey    map[Key]string
	byAction map[string][]Key
}

// Default returns the map with no overrides.
func Default() *Map {
	return Resolve(nil, zap.NewNop())
}

// Resolve builds the map from the defaults plus overrides of the form
// action -> "key[,key...]". "none" unbinds an action. Unknown action names
// and unparsable keys are logged and the default is kept.
func Resolve(overrides map[string]string, logger *zap.Logger) *Map {
	m := &Map{
		byKey:    make(map[Key]string),
		byAction: make(map[string][]Key),
	}
	for name := range overrides {
		if !Known(name) {
			logger.Warn("unknown action in key config", zap.String("action", name))
		}
	}
	for _, b := range Bindings {
		spec := b.Defaults
		if o, ok := overrides[b.Action]; ok {
			if _, err := parseList(o); err != nil {
				logger.Warn("invalid key in config, keeping default",
					zap.String("action", b.Action), zap.String("keys", o), zap.Error(err))
			} else {
				spec = o
			}
		}
		ks, _ := parseList(spec)
		for _, k := range ks {
			if prev, taken := m.byKey[k]; taken {
				logger.Warn("key bound twice, keeping first",
					zap.String("key", k.Name()), zap.String("action", prev), zap.String("ignored", b.Action))
				continue
			}
			m.byKey[k] = b.Action
			m.byAction[b.Action] = append(m.byAction[b.Action], k)
		}
	}
	return m
}

func parseList(spec string) ([]Key, error) {
	if strings.EqualFold(strings.TrimSpace(spec), "none") {
		return nil, nil
	}
	var out []Key
	for part := range strings.SplitSeq(spec, ",") {
		k, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// Known reports whether name is an action.
func Known(name string) bool {
	return slices.ContainsFunc(Bindings, func(b Binding) bool { return b.Action == name })
}

// Action returns the action bound to k.
func (m *Map) Action(k Key) (string, bool) {
	a, ok := m.byKey[k]
	return a, ok
}

// Keys returns the keys bound to action.
func (m *Map) Keys(action string) []Key {
	return m.byAction[action]
}

// Label renders the first key of action for help text, or "" if unbound.
func (m *Map) Label(action string) string {
	ks := m.byAction[action]
	if len(ks) == 0 {
		return ""
	}
	return ks[0].Name()
}

// Hint is one entry of the help bar.
type Hint struct {
	Key         string
	Description string
}

// Hints returns the bound actions for the help view. With all unset, only
// actions flagged for the one-line bar are included.
func (m *Map) Hints(all bool) []Hint {
	var out []Hint
	for _, b := range Bindings {
		if !all && !b.Hint {
			continue
		}
		if label := m.Label(b.Action); label != "" {
			out = append(out, Hint{Key: label, Description: b.Description})
		}
	}
	return out
}

// Package core holds the shared chat state of every connected profile and
// turns protocol events and key presses into state changes.
//
// All state sits behind one mutex. Model methods lock it themselves and may
// be called from any goroutine. Code that already holds the lock, such as
// renderers and dialogs, works through the *Locked value returned by
// Model.Lock, which is the only way to reach the pre-locked accessors.
// Requests to protocols made while locked are queued and sent after Unlock.
package core

import (
	"cmp"

	"github.com/matheus3301/mchat/internal/protocol"
)

// Region is a set of screen areas that need redrawing.
type Region uint8

const (
	RegionList Region = 1 << iota
	RegionHistory
	RegionStatus
	RegionEntry
	RegionHelp
	RegionTop

	RegionAll = RegionList | RegionHistory | RegionStatus | RegionEntry | RegionHelp | RegionTop
)

// Surface is told which regions changed after every state change.
type Surface interface {
	SetDirty(Region)
}

// MessageStore is the synchronous side of the message cache.
type MessageStore interface {
	LookupMessage(profileID, chatID, msgID string) (protocol.ChatMessage, bool)
	DeleteMessage(profileID, chatID, msgID string) error
	DeleteChat(profileID, chatID string) error
}

// Prompter runs modal dialogs. Its methods are called without the core lock
// held and block until the user is done.
type Prompter interface {
	SelectChat(title string) (ChatKey, bool)
	SelectContact(title, profileID string) (string, bool)
	SelectEmoji() (string, bool)
	SelectFile(dir string) (string, bool)
	Confirm(text string) bool
	Input(title, initial string) (string, bool)
	ShowText(title, text string)
}

// ChatKey identifies a chat across profiles.
type ChatKey struct {
	ProfileID string
	ChatID    string
}

// Compare orders keys by profile then chat id.
func (k ChatKey) Compare(o ChatKey) int {
	return cmp.Or(cmp.Compare(k.ProfileID, o.ProfileID), cmp.Compare(k.ChatID, o.ChatID))
}

// Less reports whether k sorts before o.
func (k ChatKey) Less(o ChatKey) bool { return k.Compare(o) < 0 }

// FlashLevel is the severity of a status line message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashError
)

// Flash is a transient status line message.
type Flash struct {
	Text  string
	Level FlashLevel
}

package protocol

import "github.com/matheus3301/mchat/internal/status"

// Event is one inbound notification. Every event carries the id of the
// profile that produced it.
type Event interface {
	Profile() string
	isEvent()
}

// Source identifies the producing profile. Embedded in every event.
type Source struct {
	ProfileID string
}

// Profile returns the producing profile id.
func (s Source) Profile() string { return s.ProfileID }

func (Source) isEvent() {}

// NewMessages delivers live messages, or new versions of known ones after an
// edit, reaction or read change.
type NewMessages struct {
	Source
	ChatID   string
	Messages []ChatMessage
}

// MessagesFetched answers RequestMessages. FromID echoes the request's
// BeforeID. Complete means no messages older than the batch exist. Err is
// set when the history could not be read; the batch is then empty and says
// nothing about completeness.
type MessagesFetched struct {
	Source
	ChatID   string
	FromID   string
	Messages []ChatMessage
	Complete bool
	Err      string
}

// MessageFetched answers GetMessage. Found is false when the message is
// unknown to the backend.
type MessageFetched struct {
	Source
	ChatID  string
	Message ChatMessage
	Found   bool
}

// ContactsFetched replaces or extends the contact list.
type ContactsFetched struct {
	Source
	Contacts []ContactInfo
}

// ChatsFetched carries chat metadata, for new chats or changed flags.
type ChatsFetched struct {
	Source
	Chats []ChatInfo
}

// StatusChanged reports a contact's presence.
type StatusChanged struct {
	Source
	UserID   string
	Online   bool
	LastSeen int64 // unix milliseconds, zero if unknown
}

// TypingChanged reports whether UserID is composing in ChatID.
type TypingChanged struct {
	Source
	ChatID string
	UserID string
	Typing bool
}

// LoginStateChanged reports the account's connection state.
type LoginStateChanged struct {
	Source
	State  status.State
	Detail string
}

// MessageDeleted reports a message removed remotely or by request.
type MessageDeleted struct {
	Source
	ChatID    string
	MessageID string
}

// MessagesRead reports outgoing messages read by the recipient.
type MessagesRead struct {
	Source
	ChatID string
	IDs    []string
}

// FileStatusChanged reports upload or download progress of an attachment.
type FileStatusChanged struct {
	Source
	ChatID    string
	MessageID string
	File      FileInfo
	Open      bool
}

// SendResult reports the outcome of SendMessage. Err is empty on success.
type SendResult struct {
	Source
	ChatID    string
	ClientID  string
	MessageID string
	Err       string
}

// ChatDeleted reports a chat removed by request.
type ChatDeleted struct {
	Source
	ChatID string
}

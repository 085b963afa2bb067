package store

import "github.com/matheus3301/mchat/internal/protocol"

// Chat is a cached chat row.
type Chat struct {
	ProfileID     string
	ChatID        string
	Name          string
	IsGroup       bool
	IsUnread      bool
	IsMuted       bool
	IsHidden      bool
	LastMessageAt int64
}

// Contact is a cached contact row.
type Contact struct {
	ProfileID string
	ContactID string
	Name      string
	Phone     string
	Alias     string
	IsStarred bool
	IsSelf    bool
}

// Message is a cached message row. Raw holds the backend's encoded message
// so attachments can be downloaded later.
type Message struct {
	ProfileID string
	ChatID    string
	MsgID     string
	SenderID  string
	Body      string
	QuotedID  string
	FromMe    bool
	IsRead    bool
	IsEdited  bool
	Timestamp int64
	File      *protocol.FileInfo
	Reactions protocol.Reactions
	Raw       []byte
}

// OutboxEntry is a pending outgoing text message.
type OutboxEntry struct {
	ID           int64
	ProfileID    string
	ClientMsgID  string
	ChatID       string
	Body         string
	QuotedID     string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	ServerMsgID  string
}

// ProfileStats summarizes the cache content of one profile.
type ProfileStats struct {
	ProfileID string
	Chats     int
	Contacts  int
	Messages  int
	Pending   int
}

package bus

import "time"

// Event kinds published by the chat model.
const (
	KindMessage = "notify.message"
	KindUnread  = "notify.unread"
	KindOpen    = "notify.open"
)

// Event is one notification published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessagePayload describes an incoming message worth alerting about.
type MessagePayload struct {
	Profile  string
	ChatID   string
	ChatName string
	Sender   string
	Text     string
}

// UnreadPayload carries the number of chats with unread messages.
type UnreadPayload struct {
	Chats int
}

// OpenPayload asks for a downloaded attachment to be opened externally.
type OpenPayload struct {
	Path string
}

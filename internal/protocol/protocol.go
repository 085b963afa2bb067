// Package protocol defines the contract between the chat model and the
// messaging backends. Every call is asynchronous: results arrive later as
// Events passed to the Handler given to Login.
package protocol

// Handler receives events from a protocol. It must be safe to call from any
// goroutine, and becomes a no-op once the receiver has shut down.
type Handler func(Event)

// Features advertises optional capabilities of a protocol.
type Features struct {
	EditMessage   bool
	DeleteMessage bool
	DeleteChat    bool
	Reactions     bool
	SendFile      bool
	Typing        bool
	Mute          bool
}

// Protocol is one connected account.
type Protocol interface {
	// ProfileID is the unique id of the account, e.g. "whatsapp_main".
	ProfileID() string
	// ProfileDisplayName is a short human label for the account.
	ProfileDisplayName() string
	Features() Features
	// Login starts connecting and delivers all further events to h.
	Login(h Handler)
	// Logout disconnects. No events are delivered after it returns.
	Logout()
	// Request enqueues an outbound request.
	Request(r Request)
}

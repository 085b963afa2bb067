package protocol

// Request is one outbound operation. The concrete types below are the only
// implementations.
type Request interface {
	isRequest()
}

// RequestMessages asks for up to Limit messages strictly older than BeforeID.
// An empty BeforeID means the newest messages. Answered by MessagesFetched.
type RequestMessages struct {
	ChatID   string
	BeforeID string
	Limit    int
}

// GetMessage asks for a single message, typically a quoted one that is not
// loaded. Answered by MessageFetched.
type GetMessage struct {
	ChatID    string
	MessageID string
}

// RequestContacts asks for the full contact list. Answered by ContactsFetched.
type RequestContacts struct{}

// RequestChats asks for the metadata of all known chats. Answered by ChatsFetched.
type RequestChats struct{}

// RequestChatUpdate asks for the metadata of one chat.
type RequestChatUpdate struct {
	ChatID string
}

// SendMessage sends text, a file, or both. ClientID is echoed in SendResult.
type SendMessage struct {
	ChatID   string
	ClientID string
	Text     string
	QuotedID string
	FilePath string
}

// EditMessage replaces the text of an outgoing message.
type EditMessage struct {
	ChatID    string
	MessageID string
	Text      string
}

// MarkRead reports messages as read by the user.
type MarkRead struct {
	ChatID string
	IDs    []string
}

// DownloadFile fetches the attachment of a message into Dir.
type DownloadFile struct {
	ChatID    string
	MessageID string
	Dir       string
	Open      bool
}

// SetTyping announces whether the user is composing in ChatID.
type SetTyping struct {
	ChatID string
	Typing bool
}

// DeleteMessage removes a message for everyone where supported.
type DeleteMessage struct {
	ChatID    string
	MessageID string
}

// DeleteChat removes a chat.
type DeleteChat struct {
	ChatID string
}

// SendReaction sets the user's reaction on a message. An empty Emoji clears it.
type SendReaction struct {
	ChatID    string
	MessageID string
	SenderID  string
	Emoji     string
}

// SetMuted mutes or unmutes a chat.
type SetMuted struct {
	ChatID string
	Muted  bool
}

func (RequestMessages) isRequest()   {}
func (GetMessage) isRequest()        {}
func (RequestContacts) isRequest()   {}
func (RequestChats) isRequest()      {}
func (RequestChatUpdate) isRequest() {}
func (SendMessage) isRequest()       {}
func (EditMessage) isRequest()       {}
func (MarkRead) isRequest()          {}
func (DownloadFile) isRequest()      {}
func (SetTyping) isRequest()         {}
func (DeleteMessage) isRequest()     {}
func (DeleteChat) isRequest()        {}
func (SendReaction) isRequest()      {}
func (SetMuted) isRequest()          {}

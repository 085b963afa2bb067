package core

import (
	"slices"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
)

// chatState is everything known about one chat.
type chatState struct {
	key  ChatKey
	info protocol.ChatInfo

	// ids is sorted by (timestamp, id) and always matches msgs.
	ids  []string
	msgs map[string]protocol.ChatMessage
	// quoted holds messages fetched only to render a quote.
	quoted        map[string]protocol.ChatMessage
	quotedPending map[string]bool

	// cursor is the pagination stack; cursor[0] is the "" sentinel.
	cursor    []string
	fetching  bool
	fetchFrom string
	complete  bool
	retryAt   time.Time

	readSent map[string]bool
	typing   map[string]time.Time

	entry    []rune
	pos      int
	selected string
	replyTo  string
	editing  string

	localTyping bool
	lastInput   time.Time

	version uint64
}

func newChatState(key ChatKey) *chatState {
	return &chatState{
		key:           key,
		info:          protocol.ChatInfo{ID: key.ChatID},
		msgs:          make(map[string]protocol.ChatMessage),
		quoted:        make(map[string]protocol.ChatMessage),
		quotedPending: make(map[string]bool),
		readSent:      make(map[string]bool),
		typing:        make(map[string]time.Time),
	}
}

func (c *chatState) bound() string {
	if len(c.cursor) == 0 {
		return ""
	}
	return c.cursor[len(c.cursor)-1]
}

func (c *chatState) indexOf(id string) int {
	m, ok := c.msgs[id]
	if !ok {
		return -1
	}
	i, found := slices.BinarySearchFunc(c.ids, m, c.cmpID)
	if !found {
		return -1
	}
	return i
}

func (c *chatState) cmpID(id string, m protocol.ChatMessage) int {
	o := c.msgs[id]
	switch {
	case o.Before(m):
		return -1
	case m.Before(o):
		return 1
	default:
		return 0
	}
}

// put inserts or replaces a message, keeping ids and msgs in lockstep.
// It reports whether the message is new.
func (c *chatState) put(m protocol.ChatMessage) bool {
	if c.readSent[m.ID] {
		m.IsRead = true
	}
	if old, ok := c.msgs[m.ID]; ok {
		if old.Timestamp == m.Timestamp {
			if old.File != nil && m.File == nil {
				m.File = old.File
			}
			c.msgs[m.ID] = m
			c.version++
			return false
		}
		sent := c.readSent[m.ID]
		c.remove(m.ID)
		if sent {
			c.readSent[m.ID] = true
		}
	}
	i, _ := slices.BinarySearchFunc(c.ids, m, c.cmpID)
	c.msgs[m.ID] = m
	c.ids = slices.Insert(c.ids, i, m.ID)
	delete(c.quoted, m.ID)
	c.version++
	return true
}

// remove deletes a message and moves any cursor pointing at it to the next
// newer message, which bounds the same window.
func (c *chatState) remove(id string) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	next := ""
	if i+1 < len(c.ids) {
		next = c.ids[i+1]
	}
	for j := 1; j < len(c.cursor); j++ {
		if c.cursor[j] == id {
			c.cursor[j] = next
		}
	}
	c.ids = slices.Delete(c.ids, i, i+1)
	delete(c.msgs, id)
	delete(c.readSent, id)
	if c.selected == id {
		c.selected = ""
	}
	if c.replyTo == id {
		c.replyTo = ""
	}
	c.version++
	return true
}

func (c *chatState) hasUnread() bool {
	for _, m := range c.msgs {
		if !m.IsOutgoing && !m.IsRead {
			return true
		}
	}
	return false
}

// window returns the last h ids strictly older than the current bound.
func (c *chatState) window(h int) []string {
	end := len(c.ids)
	if b := c.bound(); b != "" {
		end = c.indexOf(b)
		if end < 0 {
			return nil
		}
	}
	start := max(0, end-h)
	return c.ids[start:end]
}

type presence struct {
	online   bool
	lastSeen int64
}

type profileState struct {
	state  status.State
	detail string
}

// session is the aggregate of all chat state, keyed by ChatKey.
type session struct {
	chats     map[ChatKey]*chatState
	order     []ChatKey
	sortDirty bool

	current    ChatKey
	hasCurrent bool

	contacts        map[string]map[string]protocol.ContactInfo
	contactsVersion int64
	presence        map[ChatKey]presence
	profiles        map[string]*profileState

	viewHeight int
	helpCap    int
	helpOffset int

	termActive bool
	listDialog bool
	msgDialog  bool

	showEmoji bool
	showHelp  bool
	showList  bool
	showTop   bool
	listWidth int

	flash      Flash
	flashUntil time.Time
	clipboard  string
	findQuery  string

	running           bool
	unreadPublished   int
	lastStatusRefresh time.Time
}

func newSession() session {
	return session{
		chats:           make(map[ChatKey]*chatState),
		contacts:        make(map[string]map[string]protocol.ContactInfo),
		presence:        make(map[ChatKey]presence),
		profiles:        make(map[string]*profileState),
		viewHeight:      20,
		termActive:      true,
		running:         true,
		unreadPublished: -1,
	}
}

func (s *session) chat(key ChatKey) *chatState {
	return s.chats[key]
}

// ensureChat returns the chat for key, creating it on first sighting.
func (s *session) ensureChat(key ChatKey) (*chatState, bool) {
	if c, ok := s.chats[key]; ok {
		return c, false
	}
	c := newChatState(key)
	s.chats[key] = c
	s.sortDirty = true
	return c, true
}

func (s *session) currentChat() *chatState {
	if !s.hasCurrent {
		return nil
	}
	return s.chats[s.current]
}

package core

import (
	"cmp"
	"maps"
	"slices"

	"github.com/matheus3301/mchat/internal/protocol"
)

// sortChats rebuilds the display order if anything it depends on changed.
func (m *Model) sortChats(s *session) {
	if !s.sortDirty {
		return
	}
	s.sortDirty = false
	order := make([]ChatKey, 0, len(s.chats))
	for _, key := range slices.SortedFunc(maps.Keys(s.chats), ChatKey.Compare) {
		if !s.chats[key].info.IsHidden {
			order = append(order, key)
		}
	}
	rank := func(c *chatState) int {
		if m.cfg.UI.UnreadFirst && c.info.IsUnread && !(c.info.IsMuted && m.cfg.UI.MutedIgnoreUnread) {
			return 0
		}
		return 1
	}
	slices.SortStableFunc(order, func(a, b ChatKey) int {
		ca, cb := s.chats[a], s.chats[b]
		return cmp.Or(
			cmp.Compare(rank(ca), rank(cb)),
			cmp.Compare(cb.info.LastMessageTime, ca.info.LastMessageTime),
			a.Compare(b),
		)
	})
	s.order = order
}

func (l *Locked) fetchLimit() int {
	return max(1, l.m.s.viewHeight/3)
}

// fetch asks for messages older than from. Only the newest outstanding
// request of a chat is tracked.
func (l *Locked) fetch(c *chatState, from string) {
	c.fetching = true
	c.fetchFrom = from
	l.request(c.key.ProfileID, protocol.RequestMessages{
		ChatID: c.key.ChatID, BeforeID: from, Limit: l.fetchLimit(),
	})
}

// SelectChat focuses key, resetting its pagination and requesting its
// newest messages.
func (l *Locked) SelectChat(key ChatKey) {
	s := l.st()
	if s.hasCurrent && s.current == key {
		return
	}
	if prev := s.currentChat(); prev != nil {
		l.stopTyping(prev)
	}
	c, created := s.ensureChat(key)
	if created {
		l.request(key.ProfileID, protocol.RequestChatUpdate{ChatID: key.ChatID})
	}
	s.current = key
	s.hasCurrent = true
	c.cursor = []string{""}
	c.selected = ""
	l.fetch(c, "")
	l.dirty |= RegionAll
}

// stepChat moves focus delta positions through the display order.
func (l *Locked) stepChat(delta int) {
	order := l.Chats()
	if len(order) == 0 {
		return
	}
	s := l.st()
	i := slices.Index(order, s.current)
	if i < 0 || !s.hasCurrent {
		l.SelectChat(order[0])
		return
	}
	n := len(order)
	l.SelectChat(order[((i+delta)%n+n)%n])
}

// nextUnread focuses the first unread chat after the current one.
func (l *Locked) nextUnread() {
	order := l.Chats()
	s := l.st()
	start := slices.Index(order, s.current) + 1
	for i := range order {
		key := order[(start+i)%len(order)]
		if key == s.current {
			continue
		}
		if s.chats[key].info.IsUnread {
			l.SelectChat(key)
			return
		}
	}
}

// pageBack narrows the window to messages older than the oldest one shown.
func (l *Locked) pageBack() {
	s := l.st()
	c := s.currentChat()
	if c == nil {
		return
	}
	win := c.window(s.viewHeight)
	if len(win) == 0 {
		return
	}
	oldest := win[0]
	if oldest == c.ids[0] && c.complete {
		return
	}
	c.cursor = append(c.cursor, oldest)
	c.selected = ""
	l.fetch(c, oldest)
	l.dirty |= RegionHistory | RegionStatus
}

// pageForward widens the window back toward the present. The sentinel is
// never popped.
func (l *Locked) pageForward() {
	s := l.st()
	c := s.currentChat()
	if c == nil || len(c.cursor) <= 1 {
		return
	}
	c.cursor = c.cursor[:len(c.cursor)-1]
	c.selected = ""
	l.fetch(c, c.bound())
	l.dirty |= RegionHistory | RegionStatus
}

// removeChat forgets a chat. Focus moves to the first remaining chat.
func (l *Locked) removeChat(key ChatKey) {
	s := l.st()
	if _, ok := s.chats[key]; !ok {
		return
	}
	delete(s.chats, key)
	s.sortDirty = true
	l.dirty |= RegionAll
	if s.hasCurrent && s.current == key {
		s.hasCurrent = false
		s.current = ChatKey{}
		if order := l.Chats(); len(order) > 0 {
			l.SelectChat(order[0])
		}
	}
}

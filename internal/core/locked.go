package core

import (
	"maps"
	"slices"
	"strings"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"go.uber.org/zap"
)

// Locked is proof that the model lock is held. It collects the requests,
// notifications and redraws produced while locked and delivers them once the
// lock is released.
type Locked struct {
	m        *Model
	released bool

	dirty   Region
	ops     []func()
	reads   map[ChatKey][]string
	readSeq []ChatKey
	events  []bus.Event
}

// Unlock releases the lock, then sends queued requests, publishes queued
// notifications and marks dirty regions on the surface.
func (l *Locked) Unlock() {
	l.st()
	if l.dirty&RegionList != 0 {
		l.publishUnread()
	}
	l.released = true
	m := l.m
	surface := m.surface
	m.mu.Unlock()

	for _, key := range l.readSeq {
		m.send(key.ProfileID, protocol.MarkRead{ChatID: key.ChatID, IDs: l.reads[key]})
	}
	for _, op := range l.ops {
		op()
	}
	if m.bus != nil {
		for _, ev := range l.events {
			m.bus.Publish(ev)
		}
	}
	if surface != nil && l.dirty != 0 {
		surface.SetDirty(l.dirty)
	}
}

func (l *Locked) st() *session {
	if l.released {
		panic("core: Locked used after Unlock")
	}
	return &l.m.s
}

// MarkDirty schedules regions for redraw.
func (l *Locked) MarkDirty(r Region) {
	l.st()
	l.dirty |= r
}

func (l *Locked) request(profileID string, r protocol.Request) {
	l.st()
	m := l.m
	l.ops = append(l.ops, func() { m.send(profileID, r) })
}

func (l *Locked) queueRead(key ChatKey, id string) {
	if l.reads == nil {
		l.reads = make(map[ChatKey][]string)
	}
	if _, ok := l.reads[key]; !ok {
		l.readSeq = append(l.readSeq, key)
	}
	l.reads[key] = append(l.reads[key], id)
}

func (l *Locked) publish(kind string, payload any) {
	l.events = append(l.events, bus.Event{Kind: kind, Payload: payload})
}

func (l *Locked) publishUnread() {
	s := &l.m.s
	n := l.UnreadTotal()
	if n != s.unreadPublished {
		s.unreadPublished = n
		l.publish(bus.KindUnread, bus.UnreadPayload{Chats: n})
	}
}

func (l *Locked) features(profileID string) protocol.Features {
	reg, _ := l.m.lookup(profileID)
	return reg.features
}

// flash shows text on the status line for the level's duration.
func (l *Locked) flash(level FlashLevel, text string) {
	s := l.st()
	s.flash = Flash{Text: text, Level: level}
	s.flashUntil = l.m.now().Add(flashDurations[level])
	l.dirty |= RegionStatus
}

// Chats returns the visible chats in display order.
func (l *Locked) Chats() []ChatKey {
	s := l.st()
	l.m.sortChats(s)
	return slices.Clone(s.order)
}

// CurrentChat returns the focused chat.
func (l *Locked) CurrentChat() (ChatKey, bool) {
	s := l.st()
	return s.current, s.hasCurrent
}

// ChatInfo returns the metadata of a chat.
func (l *Locked) ChatInfo(key ChatKey) (protocol.ChatInfo, bool) {
	c := l.st().chat(key)
	if c == nil {
		return protocol.ChatInfo{}, false
	}
	return c.info, true
}

// ChatName is the display name of a chat: its own name, then the contact
// name, then the raw id.
func (l *Locked) ChatName(key ChatKey) string {
	s := l.st()
	if c := s.chat(key); c != nil && c.info.Name != "" {
		return c.info.Name
	}
	if ct, ok := s.contacts[key.ProfileID][key.ChatID]; ok {
		return ct.DisplayName()
	}
	return key.ChatID
}

// ContactName is the display name of a user in a profile.
func (l *Locked) ContactName(profileID, userID string) string {
	s := l.st()
	if ct, ok := s.contacts[profileID][userID]; ok {
		return ct.DisplayName()
	}
	if i := strings.IndexByte(userID, '@'); i > 0 {
		return userID[:i]
	}
	return userID
}

// Contacts returns the contacts of a profile sorted by display name.
func (l *Locked) Contacts(profileID string) []protocol.ContactInfo {
	s := l.st()
	out := slices.Collect(maps.Values(s.contacts[profileID]))
	slices.SortFunc(out, func(a, b protocol.ContactInfo) int {
		return strings.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName()))
	})
	return out
}

// ContactsVersion changes whenever any contact list changes.
func (l *Locked) ContactsVersion() int64 {
	return l.st().contactsVersion
}

// MessageVec returns the ids of the loaded messages, oldest first.
func (l *Locked) MessageVec(key ChatKey) []string {
	c := l.st().chat(key)
	if c == nil {
		return nil
	}
	return slices.Clone(c.ids)
}

// MessageMap returns the loaded messages by id.
func (l *Locked) MessageMap(key ChatKey) map[string]protocol.ChatMessage {
	c := l.st().chat(key)
	if c == nil {
		return nil
	}
	return maps.Clone(c.msgs)
}

// Message returns one loaded message.
func (l *Locked) Message(key ChatKey, id string) (protocol.ChatMessage, bool) {
	c := l.st().chat(key)
	if c == nil {
		return protocol.ChatMessage{}, false
	}
	msg, ok := c.msgs[id]
	return msg, ok
}

// MessagesVersion changes whenever any message of the chat changes.
func (l *Locked) MessagesVersion(key ChatKey) uint64 {
	if c := l.st().chat(key); c != nil {
		return c.version
	}
	return 0
}

// HistoryWindow returns the messages shown for key, oldest first.
func (l *Locked) HistoryWindow(key ChatKey) []protocol.ChatMessage {
	s := l.st()
	c := s.chat(key)
	if c == nil {
		return nil
	}
	ids := c.window(s.viewHeight)
	out := make([]protocol.ChatMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.msgs[id])
	}
	return out
}

// RecentHistory returns up to n messages of key ending at the current page,
// oldest first. The renderer measures them to decide the view height.
func (l *Locked) RecentHistory(key ChatKey, n int) []protocol.ChatMessage {
	c := l.st().chat(key)
	if c == nil {
		return nil
	}
	ids := c.window(n)
	out := make([]protocol.ChatMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.msgs[id])
	}
	return out
}

// SelectedMessage returns the id of the selected message, or "".
func (l *Locked) SelectedMessage(key ChatKey) string {
	if c := l.st().chat(key); c != nil {
		return c.selected
	}
	return ""
}

// ReplyTo returns the id of the message being replied to, or "".
func (l *Locked) ReplyTo(key ChatKey) string {
	if c := l.st().chat(key); c != nil {
		return c.replyTo
	}
	return ""
}

// Editing returns the id of the message being edited, or "".
func (l *Locked) Editing(key ChatKey) string {
	if c := l.st().chat(key); c != nil {
		return c.editing
	}
	return ""
}

// Entry returns the draft text of a chat.
func (l *Locked) Entry(key ChatKey) string {
	if c := l.st().chat(key); c != nil {
		return string(c.entry)
	}
	return ""
}

// EntryCursor returns the cursor offset in runes within the draft.
func (l *Locked) EntryCursor(key ChatKey) int {
	if c := l.st().chat(key); c != nil {
		return c.pos
	}
	return 0
}

// LowerBound returns the current pagination bound; "" means none.
func (l *Locked) LowerBound(key ChatKey) string {
	if c := l.st().chat(key); c != nil {
		return c.bound()
	}
	return ""
}

// CursorDepth returns the size of the pagination stack.
func (l *Locked) CursorDepth(key ChatKey) int {
	if c := l.st().chat(key); c != nil {
		return len(c.cursor)
	}
	return 0
}

// Fetching reports whether a history request is outstanding.
func (l *Locked) Fetching(key ChatKey) bool {
	if c := l.st().chat(key); c != nil {
		return c.fetching
	}
	return false
}

// HistoryComplete reports whether no older messages exist.
func (l *Locked) HistoryComplete(key ChatKey) bool {
	if c := l.st().chat(key); c != nil {
		return c.complete
	}
	return false
}

// Typing returns the display names of users typing in key.
func (l *Locked) Typing(key ChatKey) []string {
	c := l.st().chat(key)
	if c == nil {
		return nil
	}
	var out []string
	for _, user := range slices.Sorted(maps.Keys(c.typing)) {
		out = append(out, l.ContactName(key.ProfileID, user))
	}
	return out
}

// Presence returns the last known presence of a direct chat's peer.
func (l *Locked) Presence(key ChatKey) (online bool, lastSeen int64, ok bool) {
	p, ok := l.st().presence[key]
	return p.online, p.lastSeen, ok
}

// ProfileState returns the login state of a profile.
func (l *Locked) ProfileState(profileID string) (status.State, string) {
	if p, ok := l.st().profiles[profileID]; ok {
		return p.state, p.detail
	}
	return status.Offline, ""
}

// ProfileName returns the display name of a profile.
func (l *Locked) ProfileName(profileID string) string {
	l.st()
	if reg, ok := l.m.lookup(profileID); ok && reg.name != "" {
		return reg.name
	}
	return profileID
}

// ProfileIDs returns the registered profiles in registration order.
func (l *Locked) ProfileIDs() []string {
	l.st()
	return l.m.profileIDs()
}

// Features returns the capabilities of a profile's protocol.
func (l *Locked) Features(profileID string) protocol.Features {
	l.st()
	return l.features(profileID)
}

// Flash returns the active status line message.
func (l *Locked) Flash() (Flash, bool) {
	s := l.st()
	return s.flash, s.flash.Text != ""
}

// UnreadTotal counts chats with unread messages that are not muted.
func (l *Locked) UnreadTotal() int {
	s := l.st()
	n := 0
	for _, c := range s.chats {
		if c.info.IsUnread && !c.info.IsHidden && !(c.info.IsMuted && l.m.cfg.UI.MutedIgnoreUnread) {
			n++
		}
	}
	return n
}

// EmojiEnabled reports whether emoji are rendered as glyphs.
func (l *Locked) EmojiEnabled() bool { return l.st().showEmoji }

// HelpVisible reports whether the help bar is shown.
func (l *Locked) HelpVisible() bool { return l.st().showHelp }

// ListVisible reports whether the chat list is shown.
func (l *Locked) ListVisible() bool { return l.st().showList }

// TopVisible reports whether the top bar is shown.
func (l *Locked) TopVisible() bool { return l.st().showTop }

// ListWidth is the chat list width in cells.
func (l *Locked) ListWidth() int { return l.st().listWidth }

// ListDialogActive reports whether a list dialog is open.
func (l *Locked) ListDialogActive() bool { return l.st().listDialog }

// MessageDialogActive reports whether a message dialog is open.
func (l *Locked) MessageDialogActive() bool { return l.st().msgDialog }

// HelpOffset is the index of the first hint shown in the help bar.
func (l *Locked) HelpOffset() int { return l.st().helpOffset }

// SetHelpCapacity records how many hints fit in the help bar.
func (l *Locked) SetHelpCapacity(n int) { l.st().helpCap = n }

// TerminalActive reports whether the terminal has focus.
func (l *Locked) TerminalActive() bool { return l.st().termActive }

// ViewHeight returns the history height in messages.
func (l *Locked) ViewHeight() int { return l.st().viewHeight }

// SetViewHeight records how many messages fit in the history view, as
// measured by the renderer.
func (l *Locked) SetViewHeight(h int) {
	s := l.st()
	h = max(1, h)
	if s.viewHeight != h {
		s.viewHeight = h
		l.dirty |= RegionHistory
	}
}

// FetchCachedMessageLocked resolves a message that may not be loaded, such
// as a quoted one. On a miss it asks the protocol for it and returns false;
// the caller renders a placeholder until the fill arrives.
func (l *Locked) FetchCachedMessageLocked(key ChatKey, id string) (protocol.ChatMessage, bool) {
	c := l.st().chat(key)
	if c == nil || id == "" {
		return protocol.ChatMessage{}, false
	}
	if msg, ok := c.msgs[id]; ok {
		return msg, true
	}
	if msg, ok := c.quoted[id]; ok {
		return msg, true
	}
	if l.m.store != nil {
		if msg, ok := l.m.store.LookupMessage(key.ProfileID, key.ChatID, id); ok {
			c.quoted[id] = msg
			return msg, true
		}
	}
	if !c.quotedPending[id] {
		c.quotedPending[id] = true
		l.m.logger.Warn("referenced message not cached",
			zap.String("profile", key.ProfileID), zap.String("chat", key.ChatID), zap.String("msg_id", id))
		l.request(key.ProfileID, protocol.GetMessage{ChatID: key.ChatID, MessageID: id})
	}
	return protocol.ChatMessage{}, false
}

// DownloadAttachmentLocked starts downloading the file of a message unless a
// download is already running or done. open asks for the file to be opened
// once it arrives.
func (l *Locked) DownloadAttachmentLocked(key ChatKey, id string, open bool) {
	s := l.st()
	c := s.chat(key)
	if c == nil {
		return
	}
	msg, ok := c.msgs[id]
	if !ok || msg.File == nil {
		return
	}
	switch msg.File.Status {
	case protocol.FileDownloading:
		return
	case protocol.FileDownloaded:
		if open {
			l.publish(bus.KindOpen, bus.OpenPayload{Path: msg.File.Path})
		}
		return
	}
	f := *msg.File
	f.Status = protocol.FileDownloading
	c.msgs[id] = msg.WithFile(f)
	c.version++
	l.dirty |= RegionHistory
	l.request(key.ProfileID, protocol.DownloadFile{
		ChatID: key.ChatID, MessageID: id, Dir: l.m.cfg.UI.DownloadDir, Open: open,
	})
}

// MarkReadLocked marks a rendered message as read. Each incoming message
// produces at most one MarkRead request, sent after Unlock and batched per
// chat.
func (l *Locked) MarkReadLocked(key ChatKey, id string) {
	s := l.st()
	c := s.chat(key)
	if c == nil {
		return
	}
	msg, ok := c.msgs[id]
	if !ok || msg.IsOutgoing || msg.IsRead || c.readSent[id] {
		return
	}
	if !s.termActive && !l.m.cfg.UI.MarkReadWhenInactive {
		return
	}
	c.readSent[id] = true
	msg.IsRead = true
	c.msgs[id] = msg
	c.version++
	l.queueRead(key, id)
	if c.info.IsUnread && !c.hasUnread() {
		c.info.IsUnread = false
		s.sortDirty = true
		l.dirty |= RegionList
	}
	l.dirty |= RegionHistory
}

package core

import (
	"time"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"go.uber.org/zap"
)

const (
	remoteTypingTTL   = 10 * time.Second
	historyRetryDelay = 5 * time.Second
)

// MessageHandler applies a protocol event. Safe from any goroutine; a no-op
// once Shutdown has begun.
func (m *Model) MessageHandler(ev protocol.Event) {
	if m.stopping.Load() {
		return
	}
	l := m.Lock()
	defer l.Unlock()
	if m.stopping.Load() {
		return
	}
	l.handle(ev)
}

func (l *Locked) handle(ev protocol.Event) {
	profile := ev.Profile()
	key := func(chatID string) ChatKey { return ChatKey{ProfileID: profile, ChatID: chatID} }

	switch e := ev.(type) {
	case protocol.NewMessages:
		l.onNewMessages(key(e.ChatID), e.Messages)
	case protocol.MessagesFetched:
		l.onMessagesFetched(key(e.ChatID), e)
	case protocol.MessageFetched:
		l.onMessageFetched(key(e.ChatID), e)
	case protocol.ContactsFetched:
		l.onContacts(profile, e.Contacts)
	case protocol.ChatsFetched:
		l.onChats(profile, e.Chats)
	case protocol.StatusChanged:
		l.onStatus(key(e.UserID), e)
	case protocol.TypingChanged:
		l.onTyping(key(e.ChatID), e)
	case protocol.LoginStateChanged:
		l.onLoginState(profile, e)
	case protocol.MessageDeleted:
		l.onMessageDeleted(key(e.ChatID), e.MessageID)
	case protocol.MessagesRead:
		l.onMessagesRead(key(e.ChatID), e.IDs)
	case protocol.FileStatusChanged:
		l.onFileStatus(key(e.ChatID), e)
	case protocol.SendResult:
		if e.Err != "" {
			l.flash(FlashError, "send failed: "+e.Err)
		}
	case protocol.ChatDeleted:
		l.removeChat(key(e.ChatID))
	default:
		l.m.logger.Warn("unhandled protocol event", zap.String("profile", profile))
	}
}

func (l *Locked) dirtyIfCurrent(key ChatKey, r Region) {
	s := l.st()
	if s.hasCurrent && s.current == key {
		l.dirty |= r
	}
}

func (l *Locked) onNewMessages(key ChatKey, msgs []protocol.ChatMessage) {
	s := l.st()
	c, created := s.ensureChat(key)
	if created {
		l.request(key.ProfileID, protocol.RequestChatUpdate{ChatID: key.ChatID})
	}
	isCurrent := s.hasCurrent && s.current == key
	for _, msg := range msgs {
		isNew := c.put(msg)
		if msg.Timestamp > c.info.LastMessageTime {
			c.info.LastMessageTime = msg.Timestamp
			s.sortDirty = true
		}
		if c.quotedPending[msg.ID] {
			delete(c.quotedPending, msg.ID)
		}
		if msg.IsOutgoing || c.msgs[msg.ID].IsRead {
			continue
		}
		if !c.info.IsUnread {
			c.info.IsUnread = true
			s.sortDirty = true
		}
		if isNew && !c.info.IsMuted && (!isCurrent || !s.termActive) {
			l.publish(bus.KindMessage, bus.MessagePayload{
				Profile:  key.ProfileID,
				ChatID:   key.ChatID,
				ChatName: l.ChatName(key),
				Sender:   l.ContactName(key.ProfileID, msg.SenderID),
				Text:     msg.Text,
			})
		}
		delete(c.typing, msg.SenderID)
	}
	l.dirty |= RegionList
	l.dirtyIfCurrent(key, RegionHistory|RegionStatus)
}

func (l *Locked) onMessagesFetched(key ChatKey, e protocol.MessagesFetched) {
	if e.Err != "" {
		l.onFetchFailed(key, e)
		return
	}
	s := l.st()
	c, _ := s.ensureChat(key)
	oldest := ""
	if len(c.ids) > 0 {
		oldest = c.ids[0]
	}
	for _, msg := range e.Messages {
		c.put(msg)
		if msg.Timestamp > c.info.LastMessageTime {
			c.info.LastMessageTime = msg.Timestamp
			s.sortDirty = true
		}
		delete(c.quotedPending, msg.ID)
	}
	if (e.Complete || len(e.Messages) == 0) && (e.FromID == "" || e.FromID == oldest) {
		c.complete = true
		// Nothing exists before the page just opened; go back to the one
		// that still shows messages.
		if len(e.Messages) == 0 && e.FromID != "" && len(c.cursor) > 1 && c.bound() == e.FromID {
			c.cursor = c.cursor[:len(c.cursor)-1]
			c.selected = ""
		}
	}
	if c.fetching && c.fetchFrom == e.FromID {
		c.fetching = false
	} else {
		l.m.logger.Debug("stale history response merged",
			zap.String("chat", key.ChatID), zap.String("from", e.FromID))
	}
	l.dirty |= RegionList
	l.dirtyIfCurrent(key, RegionHistory|RegionStatus)
}

// onFetchFailed ends the pending request without touching completeness.
// A page opened by that request and still empty is closed again, and lazy
// fill waits before asking once more.
func (l *Locked) onFetchFailed(key ChatKey, e protocol.MessagesFetched) {
	c := l.st().chat(key)
	if c == nil || !c.fetching || c.fetchFrom != e.FromID {
		return
	}
	c.fetching = false
	c.retryAt = l.m.now().Add(historyRetryDelay)
	if len(c.cursor) > 1 && c.bound() == e.FromID && (len(c.ids) == 0 || c.ids[0] == e.FromID) {
		c.cursor = c.cursor[:len(c.cursor)-1]
		c.selected = ""
	}
	if s := l.st(); s.hasCurrent && s.current == key {
		l.flash(FlashError, "history unavailable: "+e.Err)
	}
	l.dirtyIfCurrent(key, RegionHistory|RegionStatus)
}

func (l *Locked) onMessageFetched(key ChatKey, e protocol.MessageFetched) {
	c := l.st().chat(key)
	if c == nil {
		return
	}
	delete(c.quotedPending, e.Message.ID)
	if !e.Found {
		c.quoted[e.Message.ID] = protocol.ChatMessage{ID: e.Message.ID}
		l.m.logger.Warn("referenced message not found", zap.String("chat", key.ChatID), zap.String("msg_id", e.Message.ID))
	} else if _, loaded := c.msgs[e.Message.ID]; !loaded {
		c.quoted[e.Message.ID] = e.Message
	}
	c.version++
	l.dirtyIfCurrent(key, RegionHistory)
}

func (l *Locked) onContacts(profileID string, contacts []protocol.ContactInfo) {
	s := l.st()
	byID := s.contacts[profileID]
	if byID == nil {
		byID = make(map[string]protocol.ContactInfo, len(contacts))
		s.contacts[profileID] = byID
	}
	for _, ct := range contacts {
		byID[ct.ID] = ct
	}
	s.contactsVersion++
	l.dirty |= RegionList | RegionHistory | RegionStatus
}

func (l *Locked) onChats(profileID string, chats []protocol.ChatInfo) {
	s := l.st()
	for _, info := range chats {
		c, _ := s.ensureChat(ChatKey{ProfileID: profileID, ChatID: info.ID})
		last := max(c.info.LastMessageTime, info.LastMessageTime)
		if info.Name == "" {
			info.Name = c.info.Name
		}
		c.info = info
		c.info.LastMessageTime = last
	}
	s.sortDirty = true
	l.dirty |= RegionList | RegionStatus
}

func (l *Locked) onStatus(key ChatKey, e protocol.StatusChanged) {
	l.st().presence[key] = presence{online: e.Online, lastSeen: e.LastSeen}
	l.dirtyIfCurrent(key, RegionStatus)
}

func (l *Locked) onTyping(key ChatKey, e protocol.TypingChanged) {
	c := l.st().chat(key)
	if c == nil {
		return
	}
	if e.Typing {
		c.typing[e.UserID] = l.m.now().Add(remoteTypingTTL)
	} else {
		delete(c.typing, e.UserID)
	}
	l.dirtyIfCurrent(key, RegionStatus)
	l.dirty |= RegionList
}

func (l *Locked) onLoginState(profileID string, e protocol.LoginStateChanged) {
	s := l.st()
	p, ok := s.profiles[profileID]
	if !ok {
		p = &profileState{state: status.Offline}
		s.profiles[profileID] = p
	}
	prev := p.state
	p.state, p.detail = e.State, e.Detail
	if e.State == status.Online && prev != status.Online {
		l.request(profileID, protocol.RequestContacts{})
		l.request(profileID, protocol.RequestChats{})
	}
	switch e.State {
	case status.Error:
		l.flash(FlashError, l.ProfileName(profileID)+": "+e.Detail)
	case status.LoggedOut:
		l.flash(FlashWarn, l.ProfileName(profileID)+" logged out")
	case status.AuthRequired:
		l.flash(FlashWarn, l.ProfileName(profileID)+" needs authentication, run mchat --setup")
	}
	l.dirty |= RegionTop | RegionStatus | RegionList
}

func (l *Locked) onMessageDeleted(key ChatKey, id string) {
	c := l.st().chat(key)
	if c == nil {
		return
	}
	if c.remove(id) {
		l.dirty |= RegionList
		l.dirtyIfCurrent(key, RegionHistory)
	}
}

func (l *Locked) onMessagesRead(key ChatKey, ids []string) {
	s := l.st()
	c := s.chat(key)
	if c == nil {
		return
	}
	changed := false
	for _, id := range ids {
		msg, ok := c.msgs[id]
		if !ok || msg.IsRead {
			continue
		}
		msg.IsRead = true
		c.msgs[id] = msg
		if !msg.IsOutgoing {
			c.readSent[id] = true
		}
		changed = true
	}
	if !changed {
		return
	}
	c.version++
	if c.info.IsUnread && !c.hasUnread() {
		c.info.IsUnread = false
		s.sortDirty = true
	}
	l.dirty |= RegionList
	l.dirtyIfCurrent(key, RegionHistory)
}

func (l *Locked) onFileStatus(key ChatKey, e protocol.FileStatusChanged) {
	c := l.st().chat(key)
	if c == nil {
		return
	}
	if msg, ok := c.msgs[e.MessageID]; ok {
		c.msgs[e.MessageID] = msg.WithFile(e.File)
		c.version++
		l.dirtyIfCurrent(key, RegionHistory)
	}
	switch {
	case e.File.Status.Failed():
		l.flash(FlashError, e.File.Name+": "+e.File.Status.String())
	case e.File.Status == protocol.FileDownloaded:
		if e.Open {
			l.publish(bus.KindOpen, bus.OpenPayload{Path: e.File.Path})
		} else {
			l.flash(FlashInfo, "saved "+e.File.Path)
		}
	}
}

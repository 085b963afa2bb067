package wa

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/mchat/internal/cache"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/matheus3301/mchat/internal/store"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// handleEvent is the whatsmeow event handler. It drives the login state
// machine, keeps the cache current and forwards protocol events.
func (c *Client) handleEvent(raw any) {
	switch evt := raw.(type) {
	case *events.Message:
		c.handleMessage(evt)
	case *events.Receipt:
		c.handleReceipt(evt)
	case *events.ChatPresence:
		c.emit(protocol.TypingChanged{
			Source: c.src(),
			ChatID: evt.Chat.ToNonAD().String(),
			UserID: evt.Sender.ToNonAD().String(),
			Typing: evt.State == types.ChatPresenceComposing,
		})
	case *events.Presence:
		var lastSeen int64
		if !evt.LastSeen.IsZero() {
			lastSeen = evt.LastSeen.UnixMilli()
		}
		c.emit(protocol.StatusChanged{
			Source:   c.src(),
			UserID:   evt.From.ToNonAD().String(),
			Online:   !evt.Unavailable,
			LastSeen: lastSeen,
		})
	case *events.Connected:
		c.logger.Info("WhatsApp connected")
		if cur := c.machine.Current(); cur != status.Connecting && cur != status.Reconnecting {
			_ = c.machine.Transition(status.Connecting)
		}
		_ = c.machine.Transition(status.Online)
	case *events.Disconnected:
		c.logger.Warn("WhatsApp disconnected")
		_ = c.machine.Transition(status.Reconnecting)
	case *events.LoggedOut:
		reason := evt.Reason.String()
		c.logger.Warn("WhatsApp logged out", zap.String("reason", reason))
		c.mu.Lock()
		c.detail = reason
		c.mu.Unlock()
		c.machine.Force(status.LoggedOut)
	case *events.HistorySync:
		c.handleHistorySync(evt)
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	p := ParseMessage(evt)
	switch p.Kind {
	case KindMessage:
		if err := c.cache.IngestMessage(c.profileID, p.Record); err != nil {
			c.logger.Error("ingest message failed", zap.Error(err), zap.String("msg_id", p.Record.Message.ID))
		}
		c.emit(protocol.NewMessages{Source: c.src(), ChatID: p.ChatID, Messages: []protocol.ChatMessage{p.Record.Message}})
	case KindEdit:
		m, ok := c.cache.LookupMessage(c.profileID, p.ChatID, p.TargetID)
		if !ok {
			c.logger.Debug("edit of uncached message", zap.String("msg_id", p.TargetID))
			return
		}
		m.Text = p.Text
		m.IsEdited = true
		c.update(p.ChatID, m)
	case KindRevoke:
		if err := c.cache.DeleteMessage(c.profileID, p.ChatID, p.TargetID); err != nil {
			c.logger.Warn("cache delete failed", zap.Error(err))
		}
		c.emit(protocol.MessageDeleted{Source: c.src(), ChatID: p.ChatID, MessageID: p.TargetID})
	case KindReaction:
		c.handleReaction(p, evt.Info.IsFromMe)
	default:
		c.logger.Debug("ignored message", zap.String("id", evt.Info.ID), zap.String("type", detectMessageType(evt.Message)))
	}
}

func (c *Client) handleReaction(p ParsedMessage, fromMe bool) {
	m, ok := c.cache.LookupMessage(c.profileID, p.ChatID, p.TargetID)
	if !ok {
		return
	}
	previous := ""
	if fromMe {
		previous = m.Reactions.Own
	} else {
		previous = c.reactions.swap(p.TargetID, p.SenderID, p.Text)
	}
	m.Reactions = m.Reactions.With(previous, p.Text, fromMe)
	c.update(p.ChatID, m)
}

func (c *Client) handleReceipt(evt *events.Receipt) {
	if evt.Type != types.ReceiptTypeRead && evt.Type != types.ReceiptTypeReadSelf {
		return
	}
	chatID := evt.Chat.ToNonAD().String()
	ids := make([]string, len(evt.MessageIDs))
	for i, id := range evt.MessageIDs {
		ids[i] = string(id)
	}
	if err := c.db.MarkMessagesRead(c.profileID, chatID, ids); err != nil {
		c.logger.Warn("cache read state failed", zap.Error(err))
	}
	c.emit(protocol.MessagesRead{Source: c.src(), ChatID: chatID, IDs: ids})
}

// handleHistorySync ingests a history batch and reports the chats it names.
// The newest UnreadCount incoming messages of a conversation stay unread.
func (c *Client) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}
	now := time.Now()
	var (
		records []cache.Record
		chats   []protocol.ChatInfo
	)
	for _, conv := range data.GetConversations() {
		chatID := conv.GetID()
		unread := int(conv.GetUnreadCount())
		var msgs []cache.Record
		for _, hm := range conv.GetMessages() {
			wm := hm.GetMessage()
			if wm == nil || wm.GetMessage() == nil {
				continue
			}
			parsed, err := c.conn.ParseWebMessage(chatID, wm)
			if err != nil {
				c.logger.Debug("history message skipped", zap.Error(err), zap.String("chat", chatID))
				continue
			}
			p := ParseMessage(parsed)
			if p.Kind != KindMessage {
				continue
			}
			if p.Record.Message.IsOutgoing {
				p.Record.Message.IsRead = wm.GetStatus() == waWeb.WebMessageInfo_READ
			}
			msgs = append(msgs, p.Record)
		}
		slices.SortFunc(msgs, func(a, b cache.Record) int {
			return cmp.Compare(b.Message.Timestamp, a.Message.Timestamp)
		})
		seen := 0
		for i := range msgs {
			if msgs[i].Message.IsOutgoing {
				continue
			}
			msgs[i].Message.IsRead = seen >= unread
			seen++
		}
		records = append(records, msgs...)

		info := protocol.ChatInfo{
			ID:              chatID,
			Name:            conv.GetName(),
			IsGroup:         strings.HasSuffix(chatID, "@"+types.GroupServer),
			IsUnread:        unread > 0,
			IsMuted:         conv.GetMuteEndTime() > uint64(now.Unix()),
			LastMessageTime: int64(conv.GetConversationTimestamp()) * 1000,
		}
		if len(msgs) > 0 {
			info.LastMessageTime = max(info.LastMessageTime, msgs[0].Message.Timestamp)
		}
		chats = append(chats, info)
	}

	if len(records) > 0 {
		if err := c.cache.IngestHistoryBatch(c.profileID, records); err != nil {
			c.logger.Error("ingest history failed", zap.Error(err))
		}
	}
	for _, ch := range chats {
		if err := c.db.UpsertChat(&store.Chat{
			ProfileID: c.profileID, ChatID: ch.ID, Name: ch.Name, IsGroup: ch.IsGroup,
			IsUnread: ch.IsUnread, IsMuted: ch.IsMuted, LastMessageAt: ch.LastMessageTime,
		}); err != nil {
			c.logger.Warn("cache chat failed", zap.Error(err), zap.String("chat", ch.ID))
		}
	}
	if len(chats) > 0 {
		c.emit(protocol.ChatsFetched{Source: c.src(), Chats: chats})
	}
}

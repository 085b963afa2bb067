package wa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/matheus3301/mchat/internal/cache"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

func (c *Client) serve(ctx context.Context, r protocol.Request) {
	switch r := r.(type) {
	case protocol.RequestMessages:
		c.requestMessages(r)
	case protocol.GetMessage:
		m, ok := c.cache.LookupMessage(c.profileID, r.ChatID, r.MessageID)
		c.emit(protocol.MessageFetched{Source: c.src(), ChatID: r.ChatID, Message: m, Found: ok})
	case protocol.RequestContacts:
		c.requestContacts(ctx)
	case protocol.RequestChats:
		c.requestChats()
	case protocol.RequestChatUpdate:
		c.requestChatUpdate(ctx, r.ChatID)
	case protocol.SendMessage:
		c.sendMessage(ctx, r)
	case protocol.EditMessage:
		c.editMessage(ctx, r)
	case protocol.MarkRead:
		c.markRead(ctx, r)
	case protocol.DownloadFile:
		c.download(ctx, r)
	case protocol.SetTyping:
		if err := c.conn.SetTyping(ctx, r.ChatID, r.Typing); err != nil {
			c.logger.Debug("chat presence failed", zap.Error(err))
		}
	case protocol.DeleteMessage:
		c.deleteMessage(ctx, r)
	case protocol.DeleteChat:
		// Chats are only removed locally; the model has already dropped
		// the cached rows.
		c.logger.Debug("chat deleted locally", zap.String("chat", r.ChatID))
	case protocol.SendReaction:
		c.sendReaction(ctx, r)
	case protocol.SetMuted:
		if err := c.db.SetChatMuted(c.profileID, r.ChatID, r.Muted); err != nil {
			c.logger.Error("mute failed", zap.Error(err), zap.String("chat", r.ChatID))
			return
		}
		c.emitChat(r.ChatID)
	default:
		c.logger.Warn("unsupported request", zap.String("type", fmt.Sprintf("%T", r)))
	}
}

func (c *Client) requestMessages(r protocol.RequestMessages) {
	c.cache.Fetch(c.profileID, r.ChatID, r.BeforeID, r.Limit, func(msgs []protocol.ChatMessage, complete bool, err error) {
		if err != nil {
			c.logger.Error("history fetch failed", zap.Error(err), zap.String("chat", r.ChatID))
			c.emit(protocol.MessagesFetched{Source: c.src(), ChatID: r.ChatID, FromID: r.BeforeID, Err: err.Error()})
			return
		}
		c.emit(protocol.MessagesFetched{
			Source:   c.src(),
			ChatID:   r.ChatID,
			FromID:   r.BeforeID,
			Messages: msgs,
			Complete: complete,
		})
	})
}

func (c *Client) requestContacts(ctx context.Context) {
	contacts, err := c.conn.Contacts(ctx)
	if err != nil {
		c.logger.Warn("contacts from device failed, using cache", zap.Error(err))
		rows, err := c.db.ListContacts(c.profileID)
		if err != nil {
			c.logger.Error("list cached contacts failed", zap.Error(err))
			return
		}
		for _, row := range rows {
			contacts = append(contacts, protocol.ContactInfo{
				ID: row.ContactID, Name: row.Name, Phone: row.Phone,
				Alias: row.Alias, IsStarred: row.IsStarred, IsSelf: row.IsSelf,
			})
		}
	} else {
		rows := make([]store.Contact, 0, len(contacts))
		for _, ci := range contacts {
			rows = append(rows, store.Contact{
				ProfileID: c.profileID, ContactID: ci.ID, Name: ci.Name, Phone: ci.Phone,
				Alias: ci.Alias, IsStarred: ci.IsStarred, IsSelf: ci.IsSelf,
			})
		}
		if err := c.db.BulkUpsertContacts(rows); err != nil {
			c.logger.Warn("cache contacts failed", zap.Error(err))
		}
	}
	c.emit(protocol.ContactsFetched{Source: c.src(), Contacts: contacts})
}

func chatInfo(ch store.Chat) protocol.ChatInfo {
	return protocol.ChatInfo{
		ID:              ch.ChatID,
		Name:            ch.Name,
		IsGroup:         ch.IsGroup,
		IsUnread:        ch.IsUnread,
		IsMuted:         ch.IsMuted,
		IsHidden:        ch.IsHidden,
		LastMessageTime: ch.LastMessageAt,
	}
}

func (c *Client) requestChats() {
	rows, err := c.db.ListChats(c.profileID)
	if err != nil {
		c.logger.Error("list chats failed", zap.Error(err))
		return
	}
	chats := make([]protocol.ChatInfo, 0, len(rows))
	for _, ch := range rows {
		chats = append(chats, chatInfo(ch))
	}
	c.emit(protocol.ChatsFetched{Source: c.src(), Chats: chats})
}

// emitChat reports the cached metadata of one chat.
func (c *Client) emitChat(chatID string) *store.Chat {
	ch, err := c.db.GetChat(c.profileID, chatID)
	if err != nil {
		c.logger.Error("get chat failed", zap.Error(err), zap.String("chat", chatID))
		return nil
	}
	if ch == nil {
		return nil
	}
	c.emit(protocol.ChatsFetched{Source: c.src(), Chats: []protocol.ChatInfo{chatInfo(*ch)}})
	return ch
}

func (c *Client) requestChatUpdate(ctx context.Context, chatID string) {
	ch := c.emitChat(chatID)
	if ch == nil || ch.IsGroup {
		return
	}
	if err := c.conn.SubscribePresence(ctx, chatID); err != nil {
		c.logger.Debug("presence subscription failed", zap.Error(err), zap.String("chat", chatID))
	}
}

func (c *Client) sendMessage(ctx context.Context, r protocol.SendMessage) {
	if r.FilePath != "" {
		c.sendFile(ctx, r)
		return
	}
	if _, err := c.outbox.Enqueue(r); err != nil {
		c.emit(protocol.SendResult{Source: c.src(), ChatID: r.ChatID, ClientID: r.ClientID, Err: err.Error()})
	}
}

func (c *Client) sendFile(ctx context.Context, r protocol.SendMessage) {
	result := protocol.SendResult{Source: c.src(), ChatID: r.ChatID, ClientID: r.ClientID}
	data, err := os.ReadFile(r.FilePath)
	if err != nil {
		result.Err = fmt.Sprintf("read %s: %v", filepath.Base(r.FilePath), err)
		c.emit(result)
		return
	}
	mime := mimetype.Detect(data).String()
	name := filepath.Base(r.FilePath)

	up, err := c.conn.Upload(ctx, data, mediaType(mime))
	if err != nil {
		c.logger.Error("upload failed", zap.Error(err), zap.String("file", name))
		result.Err = "upload failed: " + err.Error()
		c.emit(result)
		return
	}
	msg := mediaMessage(up, mime, name, r.Text)
	id, ts, err := c.conn.Send(ctx, r.ChatID, msg)
	if err != nil {
		result.Err = err.Error()
		c.emit(result)
		return
	}

	cm := protocol.ChatMessage{
		ID:        id,
		Timestamp: timestamp(ts),
		Text:      r.Text,
		QuotedID:  r.QuotedID,
		File: &protocol.FileInfo{
			Name: name, MimeType: mime, Size: int64(len(data)),
			Path: r.FilePath, Status: protocol.FileUploaded,
		},
		IsOutgoing: true,
	}
	raw, _ := proto.Marshal(msg)
	if err := c.cache.IngestMessage(c.profileID, cache.Record{ChatID: r.ChatID, Message: cm, Raw: raw}); err != nil {
		c.logger.Warn("cache sent file failed", zap.Error(err))
	}
	result.MessageID = id
	c.emit(result)
	c.emit(protocol.NewMessages{Source: c.src(), ChatID: r.ChatID, Messages: []protocol.ChatMessage{cm}})
}

// update stores a new version of a known message and reports it.
func (c *Client) update(chatID string, m protocol.ChatMessage) {
	if err := c.db.UpsertMessage(cache.FromChatMessage(c.profileID, cache.Record{ChatID: chatID, Message: m})); err != nil {
		c.logger.Warn("cache update failed", zap.Error(err), zap.String("msg_id", m.ID))
	}
	c.emit(protocol.NewMessages{Source: c.src(), ChatID: chatID, Messages: []protocol.ChatMessage{m}})
}

func (c *Client) editMessage(ctx context.Context, r protocol.EditMessage) {
	if _, err := c.conn.Edit(ctx, r.ChatID, r.MessageID, r.Text); err != nil {
		c.emit(protocol.SendResult{Source: c.src(), ChatID: r.ChatID, Err: "edit failed: " + err.Error()})
		return
	}
	m, ok := c.cache.LookupMessage(c.profileID, r.ChatID, r.MessageID)
	if !ok {
		return
	}
	m.Text = r.Text
	m.IsEdited = true
	c.update(r.ChatID, m)
}

// markRead sends one receipt per sender; group receipts must name the
// participant.
func (c *Client) markRead(ctx context.Context, r protocol.MarkRead) {
	bySender := make(map[string][]string)
	var order []string
	for _, id := range r.IDs {
		sender := ""
		if m, ok := c.cache.LookupMessage(c.profileID, r.ChatID, id); ok {
			sender = m.SenderID
		}
		if _, seen := bySender[sender]; !seen {
			order = append(order, sender)
		}
		bySender[sender] = append(bySender[sender], id)
	}
	for _, sender := range order {
		if err := c.conn.MarkRead(ctx, r.ChatID, sender, bySender[sender]); err != nil {
			c.logger.Warn("read receipt failed", zap.Error(err), zap.String("chat", r.ChatID))
		}
	}
	if err := c.db.MarkMessagesRead(c.profileID, r.ChatID, r.IDs); err != nil {
		c.logger.Warn("cache read state failed", zap.Error(err))
	}
}

func (c *Client) download(ctx context.Context, r protocol.DownloadFile) {
	ev := protocol.FileStatusChanged{Source: c.src(), ChatID: r.ChatID, MessageID: r.MessageID, Open: r.Open}
	m, ok := c.cache.LookupMessage(c.profileID, r.ChatID, r.MessageID)
	if !ok || m.File == nil {
		c.logger.Warn("download of unknown attachment", zap.String("msg_id", r.MessageID))
		ev.File = protocol.FileInfo{Status: protocol.FileDownloadFailed}
		c.emit(ev)
		return
	}
	info := *m.File

	path, err := c.fetchMedia(ctx, r, info.Name)
	if err != nil {
		c.logger.Error("download failed", zap.Error(err), zap.String("msg_id", r.MessageID))
		info.Status = protocol.FileDownloadFailed
		ev.File = info
		c.emit(ev)
		return
	}
	info.Path = path
	info.Status = protocol.FileDownloaded
	if err := c.db.UpdateMessageFile(c.profileID, r.ChatID, r.MessageID, info); err != nil {
		c.logger.Warn("cache file state failed", zap.Error(err))
	}
	ev.File = info
	c.emit(ev)
}

func (c *Client) fetchMedia(ctx context.Context, r protocol.DownloadFile, name string) (string, error) {
	raw, err := c.cache.Raw(c.profileID, r.ChatID, r.MessageID)
	if err != nil {
		return "", fmt.Errorf("load message: %w", err)
	}
	if raw == nil {
		return "", fmt.Errorf("message %s has no stored media keys", r.MessageID)
	}
	msg, err := decodeRaw(raw)
	if err != nil {
		return "", err
	}
	dl := media(msg)
	if dl == nil {
		return "", fmt.Errorf("message %s has no media", r.MessageID)
	}
	data, err := c.conn.Download(ctx, dl)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	dir := r.Dir
	if dir == "" {
		dir = c.downloadDir
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (c *Client) deleteMessage(ctx context.Context, r protocol.DeleteMessage) {
	sender := ""
	if m, ok := c.cache.LookupMessage(c.profileID, r.ChatID, r.MessageID); ok {
		sender = m.SenderID
	}
	if err := c.conn.Revoke(ctx, r.ChatID, sender, r.MessageID); err != nil {
		c.emit(protocol.SendResult{Source: c.src(), ChatID: r.ChatID, Err: "delete failed: " + err.Error()})
		return
	}
	c.emit(protocol.MessageDeleted{Source: c.src(), ChatID: r.ChatID, MessageID: r.MessageID})
}

func (c *Client) sendReaction(ctx context.Context, r protocol.SendReaction) {
	if err := c.conn.React(ctx, r.ChatID, r.SenderID, r.MessageID, r.Emoji); err != nil {
		c.emit(protocol.SendResult{Source: c.src(), ChatID: r.ChatID, Err: "reaction failed: " + err.Error()})
		return
	}
	m, ok := c.cache.LookupMessage(c.profileID, r.ChatID, r.MessageID)
	if !ok {
		return
	}
	m.Reactions = m.Reactions.With(m.Reactions.Own, r.Emoji, true)
	c.update(r.ChatID, m)
}

// Package loopback is an in-process protocol with seeded history that echoes
// every sent message back. It backs demo profiles and end-to-end tests.
package loopback

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// SelfID is the user id of the local account.
const SelfID = "me@loopback"

type chat struct {
	info protocol.ChatInfo
	msgs []protocol.ChatMessage
}

// Option customizes a Protocol.
type Option func(*Protocol)

// WithReplyDelay sets how long the echo reply takes. Zero disables echoes.
func WithReplyDelay(d time.Duration) Option {
	return func(p *Protocol) { p.replyDelay = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// WithoutSeed starts with no chats or contacts.
func WithoutSeed() Option {
	return func(p *Protocol) { p.seed = false }
}

// Protocol is a loopback account.
type Protocol struct {
	profileID  string
	name       string
	logger     *zap.Logger
	replyDelay time.Duration
	now        func() time.Time
	seed       bool
	machine    *status.Machine

	mu       sync.Mutex
	handler  protocol.Handler
	queue    []protocol.Request
	chats    map[string]*chat
	contacts []protocol.ContactInfo

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a loopback protocol for profileID.
func New(profileID, name string, logger *zap.Logger, opts ...Option) *Protocol {
	p := &Protocol{
		profileID:  profileID,
		name:       name,
		logger:     logger,
		replyDelay: 1500 * time.Millisecond,
		now:        time.Now,
		seed:       true,
		chats:      make(map[string]*chat),
		wake:       make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	p.machine = status.NewMachine(profileID, func(c status.Change) {
		p.emit(protocol.LoginStateChanged{Source: p.src(), State: c.To})
	})
	if p.seed {
		p.seedData()
	}
	return p
}

func (p *Protocol) ProfileID() string          { return p.profileID }
func (p *Protocol) ProfileDisplayName() string { return p.name }

func (p *Protocol) Features() protocol.Features {
	return protocol.Features{
		EditMessage: true, DeleteMessage: true, DeleteChat: true,
		Reactions: true, SendFile: true, Typing: true, Mute: true,
	}
}

func (p *Protocol) src() protocol.Source { return protocol.Source{ProfileID: p.profileID} }

// emit delivers ev unless logged out.
func (p *Protocol) emit(ev protocol.Event) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// Login starts the request worker and goes online.
func (p *Protocol) Login(h protocol.Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()

	var ctx context.Context
	ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})
	go p.loop(ctx)

	_ = p.machine.Transition(status.Connecting)
	_ = p.machine.Transition(status.Online)
	p.logger.Info("loopback online", zap.String("profile", p.profileID))
}

// Logout stops the worker. No events are delivered afterwards.
func (p *Protocol) Logout() {
	p.mu.Lock()
	p.handler = nil
	p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		<-p.done
		p.cancel = nil
	}
	p.machine.Force(status.Offline)
}

// Request queues r for the worker. It never blocks.
func (p *Protocol) Request(r protocol.Request) {
	p.mu.Lock()
	p.queue = append(p.queue, r)
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Protocol) loop(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
		case <-ctx.Done():
			return
		}
		for {
			p.mu.Lock()
			if len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			r := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			p.serve(ctx, r)
		}
	}
}

func (p *Protocol) serve(ctx context.Context, r protocol.Request) {
	switch r := r.(type) {
	case protocol.RequestMessages:
		p.emit(p.history(r))
	case protocol.GetMessage:
		msg, ok := p.find(r.ChatID, r.MessageID)
		if !ok {
			msg = protocol.ChatMessage{ID: r.MessageID}
		}
		p.emit(protocol.MessageFetched{Source: p.src(), ChatID: r.ChatID, Message: msg, Found: ok})
	case protocol.RequestContacts:
		p.mu.Lock()
		contacts := slices.Clone(p.contacts)
		p.mu.Unlock()
		p.emit(protocol.ContactsFetched{Source: p.src(), Contacts: contacts})
	case protocol.RequestChats:
		p.emit(protocol.ChatsFetched{Source: p.src(), Chats: p.chatInfos("")})
	case protocol.RequestChatUpdate:
		if infos := p.chatInfos(r.ChatID); len(infos) > 0 {
			p.emit(protocol.ChatsFetched{Source: p.src(), Chats: infos})
		}
	case protocol.SendMessage:
		p.send(ctx, r)
	case protocol.EditMessage:
		p.update(r.ChatID, r.MessageID, func(m *protocol.ChatMessage) {
			m.Text, m.IsEdited = r.Text, true
		})
	case protocol.MarkRead:
		p.markRead(r)
	case protocol.DownloadFile:
		p.download(r)
	case protocol.SetTyping:
		p.logger.Debug("typing", zap.String("chat", r.ChatID), zap.Bool("typing", r.Typing))
	case protocol.DeleteMessage:
		if p.remove(r.ChatID, r.MessageID) {
			p.emit(protocol.MessageDeleted{Source: p.src(), ChatID: r.ChatID, MessageID: r.MessageID})
		}
	case protocol.DeleteChat:
		p.mu.Lock()
		delete(p.chats, r.ChatID)
		p.mu.Unlock()
		p.emit(protocol.ChatDeleted{Source: p.src(), ChatID: r.ChatID})
	case protocol.SendReaction:
		p.update(r.ChatID, r.MessageID, func(m *protocol.ChatMessage) {
			m.Reactions = m.Reactions.With(m.Reactions.Own, r.Emoji, true)
		})
	case protocol.SetMuted:
		p.mu.Lock()
		if c, ok := p.chats[r.ChatID]; ok {
			c.info.IsMuted = r.Muted
		}
		p.mu.Unlock()
	default:
		p.logger.Warn("unsupported request", zap.String("type", fmt.Sprintf("%T", r)))
	}
}

// history answers a page request: up to Limit messages strictly older than
// BeforeID, oldest first.
func (p *Protocol) history(r protocol.RequestMessages) protocol.MessagesFetched {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev := protocol.MessagesFetched{Source: p.src(), ChatID: r.ChatID, FromID: r.BeforeID, Complete: true}
	c, ok := p.chats[r.ChatID]
	if !ok {
		return ev
	}
	end := len(c.msgs)
	if r.BeforeID != "" {
		end = slices.IndexFunc(c.msgs, func(m protocol.ChatMessage) bool { return m.ID == r.BeforeID })
		if end < 0 {
			return ev
		}
	}
	start := max(0, end-r.Limit)
	ev.Messages = slices.Clone(c.msgs[start:end])
	ev.Complete = start == 0
	return ev
}

func (p *Protocol) find(chatID, msgID string) (protocol.ChatMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.chats[chatID]; ok {
		for _, m := range c.msgs {
			if m.ID == msgID {
				return m, true
			}
		}
	}
	return protocol.ChatMessage{}, false
}

func (p *Protocol) chatInfos(only string) []protocol.ChatInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []protocol.ChatInfo
	for id, c := range p.chats {
		if only == "" || id == only {
			out = append(out, c.info)
		}
	}
	slices.SortFunc(out, func(a, b protocol.ChatInfo) int { return cmp.Compare(b.LastMessageTime, a.LastMessageTime) })
	return out
}

// add appends a message and returns a copy of it.
func (p *Protocol) add(chatID string, m protocol.ChatMessage) protocol.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.chats[chatID]
	if !ok {
		c = &chat{info: protocol.ChatInfo{ID: chatID, Name: chatID}}
		p.chats[chatID] = c
	}
	c.msgs = append(c.msgs, m)
	c.info.LastMessageTime = max(c.info.LastMessageTime, m.Timestamp)
	if !m.IsOutgoing && !m.IsRead {
		c.info.IsUnread = true
	}
	return m
}

func (p *Protocol) update(chatID, msgID string, fn func(*protocol.ChatMessage)) {
	p.mu.Lock()
	c, ok := p.chats[chatID]
	var updated *protocol.ChatMessage
	if ok {
		for i := range c.msgs {
			if c.msgs[i].ID == msgID {
				fn(&c.msgs[i])
				m := c.msgs[i]
				updated = &m
			}
		}
	}
	p.mu.Unlock()
	if updated != nil {
		p.emit(protocol.NewMessages{Source: p.src(), ChatID: chatID, Messages: []protocol.ChatMessage{*updated}})
	}
}

func (p *Protocol) remove(chatID, msgID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.chats[chatID]
	if !ok {
		return false
	}
	n := len(c.msgs)
	c.msgs = slices.DeleteFunc(c.msgs, func(m protocol.ChatMessage) bool { return m.ID == msgID })
	return len(c.msgs) != n
}

func (p *Protocol) newID(ts time.Time) string {
	return ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String()
}

func (p *Protocol) send(ctx context.Context, r protocol.SendMessage) {
	now := p.now()
	msg := protocol.ChatMessage{
		ID:         p.newID(now),
		SenderID:   SelfID,
		Timestamp:  now.UnixMilli(),
		Text:       r.Text,
		QuotedID:   r.QuotedID,
		IsOutgoing: true,
	}
	if r.FilePath != "" {
		info, err := os.Stat(r.FilePath)
		if err != nil {
			p.emit(protocol.SendResult{Source: p.src(), ChatID: r.ChatID, ClientID: r.ClientID, Err: err.Error()})
			return
		}
		mime := "application/octet-stream"
		if mt, err := mimetype.DetectFile(r.FilePath); err == nil {
			mime = mt.String()
		}
		msg.File = &protocol.FileInfo{
			Name: filepath.Base(r.FilePath), MimeType: mime, Size: info.Size(),
			Path: r.FilePath, Status: protocol.FileUploaded,
		}
	}
	msg = p.add(r.ChatID, msg)
	p.emit(protocol.SendResult{Source: p.src(), ChatID: r.ChatID, ClientID: r.ClientID, MessageID: msg.ID})
	p.emit(protocol.NewMessages{Source: p.src(), ChatID: r.ChatID, Messages: []protocol.ChatMessage{msg}})

	if p.replyDelay > 0 {
		go p.echo(ctx, r.ChatID, msg)
	}
}

// echo answers an outgoing message from the chat's peer.
func (p *Protocol) echo(ctx context.Context, chatID string, orig protocol.ChatMessage) {
	peer := chatID
	p.emit(protocol.TypingChanged{Source: p.src(), ChatID: chatID, UserID: peer, Typing: true})
	select {
	case <-time.After(p.replyDelay):
	case <-ctx.Done():
		return
	}
	p.emit(protocol.TypingChanged{Source: p.src(), ChatID: chatID, UserID: peer, Typing: false})

	text := "echo: " + orig.Text
	if orig.File != nil {
		text = "echo: got " + orig.File.Name
	}
	now := p.now()
	reply := p.add(chatID, protocol.ChatMessage{
		ID:        p.newID(now),
		SenderID:  peer,
		Timestamp: now.UnixMilli(),
		Text:      text,
		QuotedID:  orig.ID,
	})
	p.emit(protocol.NewMessages{Source: p.src(), ChatID: chatID, Messages: []protocol.ChatMessage{reply}})
}

func (p *Protocol) markRead(r protocol.MarkRead) {
	p.mu.Lock()
	c, ok := p.chats[r.ChatID]
	if ok {
		for i := range c.msgs {
			if slices.Contains(r.IDs, c.msgs[i].ID) {
				c.msgs[i].IsRead = true
			}
		}
		c.info.IsUnread = slices.ContainsFunc(c.msgs, func(m protocol.ChatMessage) bool {
			return !m.IsOutgoing && !m.IsRead
		})
	}
	p.mu.Unlock()
	if ok {
		p.emit(protocol.MessagesRead{Source: p.src(), ChatID: r.ChatID, IDs: r.IDs})
	}
}

// download copies the attachment into Dir, or reports it in place when Dir
// is empty.
func (p *Protocol) download(r protocol.DownloadFile) {
	msg, ok := p.find(r.ChatID, r.MessageID)
	if !ok || msg.File == nil {
		return
	}
	f := *msg.File
	if r.Dir != "" && f.Path != "" {
		dst := filepath.Join(r.Dir, f.Name)
		if err := copyFile(f.Path, dst); err != nil {
			p.logger.Error("download failed", zap.Error(err), zap.String("msg_id", r.MessageID))
			f.Status = protocol.FileDownloadFailed
			p.emit(protocol.FileStatusChanged{Source: p.src(), ChatID: r.ChatID, MessageID: r.MessageID, File: f})
			return
		}
		f.Path = dst
	}
	f.Status = protocol.FileDownloaded
	p.update(r.ChatID, r.MessageID, func(m *protocol.ChatMessage) { *m = m.WithFile(f) })
	p.emit(protocol.FileStatusChanged{Source: p.src(), ChatID: r.ChatID, MessageID: r.MessageID, File: f, Open: r.Open})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	return out.Close()
}

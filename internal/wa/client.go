// Package wa implements the WhatsApp protocol on top of whatsmeow. History
// is served from the local message cache, which live messages and history
// sync batches keep filled.
package wa

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/mchat/internal/cache"
	"github.com/matheus3301/mchat/internal/outbox"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
)

// Client is one WhatsApp account.
type Client struct {
	profileID string
	name      string
	conn      conn
	cache     *cache.Engine
	db        *store.DB
	outbox    *outbox.Sender
	machine   *status.Machine
	logger    *zap.Logger

	// downloadDir receives attachments when the request names no directory.
	downloadDir string

	mu         sync.Mutex
	handler    protocol.Handler
	queue      []protocol.Request
	detail     string
	registered bool
	reactions  reactionLog

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates the protocol for a paired or unpaired device.
func New(profileID, name string, dev *Device, engine *cache.Engine, db *store.DB, logger *zap.Logger) *Client {
	return newClient(profileID, name, dev, engine, db, logger)
}

func newClient(profileID, name string, cn conn, engine *cache.Engine, db *store.DB, logger *zap.Logger) *Client {
	c := &Client{
		profileID: profileID,
		name:      name,
		conn:      cn,
		cache:     engine,
		db:        db,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
	c.machine = status.NewMachine(profileID, func(ch status.Change) {
		c.mu.Lock()
		detail := c.detail
		c.detail = ""
		c.mu.Unlock()
		c.logger.Info("login state changed", zap.String("from", string(ch.From)), zap.String("to", string(ch.To)))
		c.emit(protocol.LoginStateChanged{Source: c.src(), State: ch.To, Detail: detail})
	})
	c.outbox = outbox.NewSender(db, profileID, c, c.emit, logger.Named("outbox"))
	return c
}

// SetDownloadDir sets the fallback attachment directory. Call before Login.
func (c *Client) SetDownloadDir(dir string) { c.downloadDir = dir }

func (c *Client) ProfileID() string          { return c.profileID }
func (c *Client) ProfileDisplayName() string { return c.name }

// Features reports what the client supports. Mute and chat deletion only
// change the local cache.
func (c *Client) Features() protocol.Features {
	return protocol.Features{
		EditMessage: true, DeleteMessage: true, DeleteChat: true,
		Reactions: true, SendFile: true, Typing: true, Mute: true,
	}
}

func (c *Client) src() protocol.Source { return protocol.Source{ProfileID: c.profileID} }

func (c *Client) emit(ev protocol.Event) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// fail records detail for the next state change and moves to Error.
func (c *Client) fail(detail string) {
	c.mu.Lock()
	c.detail = detail
	c.mu.Unlock()
	c.machine.Force(status.Error)
}

// Login starts the request worker and connects. Unpaired devices stop at
// AuthRequired until the profile is set up again.
func (c *Client) Login(h protocol.Handler) {
	c.mu.Lock()
	c.handler = h
	register := !c.registered
	c.registered = true
	c.mu.Unlock()
	if register {
		c.conn.AddEventHandler(c.handleEvent)
	}

	var ctx context.Context
	ctx, c.cancel = context.WithCancel(context.Background())
	c.done = make(chan struct{})
	c.outbox.Start(ctx)

	if !c.conn.IsLoggedIn() {
		go c.loop(ctx, false)
		_ = c.machine.Transition(status.AuthRequired)
		return
	}
	_ = c.machine.Transition(status.Connecting)
	go c.loop(ctx, true)
}

// Logout disconnects. No events are delivered afterwards.
func (c *Client) Logout() {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
	}
	c.outbox.Stop()
	c.conn.Disconnect()
	c.machine.Force(status.Offline)
}

// Request queues r for the worker.
func (c *Client) Request(r protocol.Request) {
	c.mu.Lock()
	c.queue = append(c.queue, r)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) loop(ctx context.Context, connect bool) {
	defer close(c.done)
	if connect {
		if err := c.conn.Connect(); err != nil {
			c.logger.Error("connect failed", zap.Error(err))
			c.fail(err.Error())
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
		c.mu.Lock()
		batch := c.queue
		c.queue = nil
		c.mu.Unlock()
		for _, r := range batch {
			if ctx.Err() != nil {
				return
			}
			c.serve(ctx, r)
		}
	}
}

// SendText delivers one outbox entry. A reply quotes the cached message when
// it is known.
func (c *Client) SendText(ctx context.Context, chatID, text, quotedID string) (string, int64, error) {
	var q *quote
	if quotedID != "" {
		q = &quote{ID: quotedID}
		if m, ok := c.cache.LookupMessage(c.profileID, chatID, quotedID); ok {
			q.SenderID, q.Text = m.SenderID, m.Text
		}
		if q.SenderID == "" {
			q.SenderID = c.conn.SelfID()
		}
	}
	id, ts, err := c.conn.Send(ctx, chatID, textMessage(text, q))
	if err != nil {
		return "", 0, err
	}
	return id, timestamp(ts), nil
}

func timestamp(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}

// reactionLog remembers the current reaction of each sender per message so
// a changed reaction replaces the previous one in the counts.
type reactionLog struct {
	mu sync.Mutex
	m  map[string]map[string]string
}

// swap records emoji as sender's reaction on msgID and returns the previous one.
func (r *reactionLog) swap(msgID, sender, emoji string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]map[string]string)
	}
	bySender := r.m[msgID]
	if bySender == nil {
		bySender = make(map[string]string)
		r.m[msgID] = bySender
	}
	previous := bySender[sender]
	if emoji == "" {
		delete(bySender, sender)
	} else {
		bySender[sender] = emoji
	}
	return previous
}

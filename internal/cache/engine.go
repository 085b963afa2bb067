// Package cache answers history requests from the local message cache and
// ingests messages received by the protocols.
package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
)

// FetchFunc receives the result of Fetch: messages in chronological order
// and whether nothing older exists.
type FetchFunc func(msgs []protocol.ChatMessage, complete bool, err error)

// Record is one message to ingest together with the backend's raw payload.
type Record struct {
	ChatID  string
	Message protocol.ChatMessage
	Raw     []byte
}

// Engine serializes cache reads on its own goroutine so protocol workers
// and the UI never wait on SQLite.
type Engine struct {
	db     *store.DB
	logger *zap.Logger
	jobs   chan func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new cache engine.
func NewEngine(db *store.DB, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		logger: logger,
		jobs:   make(chan func(), 256),
	}
}

// Start runs the worker goroutine until Stop or ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		for {
			select {
			case job := <-e.jobs:
				job()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the worker and waits for the running job to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Fetch queues a read of up to limit messages older than beforeID. fn runs
// on the engine goroutine.
func (e *Engine) Fetch(profileID, chatID, beforeID string, limit int, fn FetchFunc) {
	e.jobs <- func() {
		rows, err := e.db.ListMessages(profileID, chatID, beforeID, limit)
		if err != nil {
			e.logger.Error("cache fetch failed", zap.Error(err),
				zap.String("profile", profileID), zap.String("chat", chatID))
			fn(nil, false, fmt.Errorf("list messages: %w", err))
			return
		}
		msgs := make([]protocol.ChatMessage, 0, len(rows))
		for _, r := range slices.Backward(rows) {
			msgs = append(msgs, ToChatMessage(r))
		}
		fn(msgs, len(rows) < limit, nil)
	}
}

// IngestMessage stores a single message and touches its chat.
func (e *Engine) IngestMessage(profileID string, r Record) error {
	if err := e.db.TouchChat(profileID, r.ChatID, r.Message.Timestamp, !r.Message.IsOutgoing && !r.Message.IsRead); err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if err := e.db.UpsertMessage(FromChatMessage(profileID, r)); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// IngestHistoryBatch stores a batch of history messages in one transaction.
func (e *Engine) IngestHistoryBatch(profileID string, records []Record) error {
	batch := make([]*store.Message, 0, len(records))
	for _, r := range records {
		batch = append(batch, FromChatMessage(profileID, r))
	}
	if err := e.db.IngestBatch(batch); err != nil {
		return err
	}
	e.logger.Info("history batch ingested", zap.String("profile", profileID), zap.Int("messages", len(batch)))
	return nil
}

// LookupMessage returns a cached message.
func (e *Engine) LookupMessage(profileID, chatID, msgID string) (protocol.ChatMessage, bool) {
	m, err := e.db.GetMessage(profileID, chatID, msgID)
	if err != nil {
		e.logger.Warn("cache lookup failed", zap.Error(err), zap.String("msg_id", msgID))
		return protocol.ChatMessage{}, false
	}
	if m == nil {
		return protocol.ChatMessage{}, false
	}
	return ToChatMessage(*m), true
}

// Raw returns the backend payload stored with a message, or nil.
func (e *Engine) Raw(profileID, chatID, msgID string) ([]byte, error) {
	m, err := e.db.GetMessage(profileID, chatID, msgID)
	if err != nil || m == nil {
		return nil, err
	}
	return m.Raw, nil
}

// DeleteMessage removes a message from the cache.
func (e *Engine) DeleteMessage(profileID, chatID, msgID string) error {
	return e.db.DeleteMessage(profileID, chatID, msgID)
}

// DeleteChat removes a chat and its messages from the cache.
func (e *Engine) DeleteChat(profileID, chatID string) error {
	return e.db.DeleteChat(profileID, chatID)
}

// ToChatMessage converts a cached row.
func ToChatMessage(m store.Message) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:         m.MsgID,
		SenderID:   m.SenderID,
		Timestamp:  m.Timestamp,
		Text:       m.Body,
		QuotedID:   m.QuotedID,
		File:       m.File,
		Reactions:  m.Reactions,
		IsOutgoing: m.FromMe,
		IsRead:     m.IsRead,
		IsEdited:   m.IsEdited,
	}
}

// FromChatMessage builds the cache row for a record.
func FromChatMessage(profileID string, r Record) *store.Message {
	m := r.Message
	return &store.Message{
		ProfileID: profileID,
		ChatID:    r.ChatID,
		MsgID:     m.ID,
		SenderID:  m.SenderID,
		Body:      m.Text,
		QuotedID:  m.QuotedID,
		FromMe:    m.IsOutgoing,
		IsRead:    m.IsRead,
		IsEdited:  m.IsEdited,
		Timestamp: m.Timestamp,
		File:      m.File,
		Reactions: m.Reactions,
		Raw:       r.Raw,
	}
}

// Package outbox persists outgoing text messages and drains them through a
// protocol connection.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
)

// ErrEmpty is returned when queuing a message with no text.
var ErrEmpty = errors.New("empty message")

// TextSender delivers one text message and returns the id and timestamp
// (unix ms) the server assigned to it.
type TextSender interface {
	SendText(ctx context.Context, chatID, text, quotedID string) (serverMsgID string, ts int64, err error)
}

// Sender drains the outbox of one profile.
type Sender struct {
	db        *store.DB
	profileID string
	sender    TextSender
	emit      func(protocol.Event)
	logger    *zap.Logger
	kick      chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSender creates a new outbox sender. emit receives a SendResult for every
// entry and a NewMessages event for every delivered one.
func NewSender(db *store.DB, profileID string, sender TextSender, emit func(protocol.Event), logger *zap.Logger) *Sender {
	return &Sender{
		db:        db,
		profileID: profileID,
		sender:    sender,
		emit:      emit,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
}

// Enqueue persists a send request and wakes the sender. It returns the client
// id assigned to the entry.
func (s *Sender) Enqueue(req protocol.SendMessage) (string, error) {
	if req.Text == "" {
		return "", ErrEmpty
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	err := s.db.QueueOutbox(&store.OutboxEntry{
		ProfileID:   s.profileID,
		ClientMsgID: clientID,
		ChatID:      req.ChatID,
		Body:        req.Text,
		QuotedID:    req.QuotedID,
	})
	if err != nil {
		return "", fmt.Errorf("queue outbox: %w", err)
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
	return clientID, nil
}

// Start requeues entries interrupted by a previous run and begins draining.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.ResetStaleSending(s.profileID); err != nil {
		s.logger.Error("failed to reset stale outbox entries", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for it to exit.
func (s *Sender) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.kick:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox(s.profileID)
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		serverMsgID, ts, err := s.sender.SendText(ctx, entry.ChatID, entry.Body, entry.QuotedID)
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.emit(protocol.SendResult{
				Source:   protocol.Source{ProfileID: s.profileID},
				ChatID:   entry.ChatID,
				ClientID: entry.ClientMsgID,
				Err:      err.Error(),
			})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}

		msg := protocol.ChatMessage{
			ID:         serverMsgID,
			Timestamp:  ts,
			Text:       entry.Body,
			QuotedID:   entry.QuotedID,
			IsOutgoing: true,
			IsRead:     false,
		}
		if err := s.db.TouchChat(s.profileID, entry.ChatID, ts, false); err != nil {
			s.logger.Warn("failed to touch chat", zap.Error(err))
		}
		if err := s.db.UpsertMessage(&store.Message{
			ProfileID: s.profileID, ChatID: entry.ChatID, MsgID: serverMsgID,
			Body: entry.Body, QuotedID: entry.QuotedID, FromMe: true, Timestamp: ts,
		}); err != nil {
			s.logger.Warn("failed to cache sent message", zap.Error(err))
		}

		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		src := protocol.Source{ProfileID: s.profileID}
		s.emit(protocol.SendResult{Source: src, ChatID: entry.ChatID, ClientID: entry.ClientMsgID, MessageID: serverMsgID})
		s.emit(protocol.NewMessages{Source: src, ChatID: entry.ChatID, Messages: []protocol.ChatMessage{msg}})
	}
}

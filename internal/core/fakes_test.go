package core

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/mchat/internal/config"
	"github.com/matheus3301/mchat/internal/protocol"
	"go.uber.org/zap"
)

// fakeProtocol records requests and whether the model lock was free when
// each one arrived.
type fakeProtocol struct {
	id       string
	features protocol.Features
	model    *Model

	mu          sync.Mutex
	requests    []protocol.Request
	lockedCalls int
	handler     protocol.Handler
	loggedOut   bool
}

func (f *fakeProtocol) ProfileID() string           { return f.id }
func (f *fakeProtocol) ProfileDisplayName() string  { return "Fake " + f.id }
func (f *fakeProtocol) Features() protocol.Features { return f.features }

func (f *fakeProtocol) Login(h protocol.Handler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeProtocol) Logout() {
	f.mu.Lock()
	f.loggedOut = true
	f.mu.Unlock()
}

func (f *fakeProtocol) Request(r protocol.Request) {
	if f.model != nil {
		if f.model.mu.TryLock() {
			f.model.mu.Unlock()
		} else {
			f.mu.Lock()
			f.lockedCalls++
			f.mu.Unlock()
		}
	}
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()
}

func (f *fakeProtocol) take() []protocol.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.requests
	f.requests = nil
	return out
}

// requestsOf filters the recorded requests by type.
func requestsOf[T protocol.Request](f *fakeProtocol) []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []T
	for _, r := range f.requests {
		if t, ok := r.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSurface struct {
	mu    sync.Mutex
	dirty Region
}

func (s *fakeSurface) SetDirty(r Region) {
	s.mu.Lock()
	s.dirty |= r
	s.mu.Unlock()
}

func (s *fakeSurface) take() Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.dirty
	s.dirty = 0
	return r
}

type fakeStore struct {
	msgs    map[string]protocol.ChatMessage
	deleted []string
}

func (s *fakeStore) LookupMessage(_, _, id string) (protocol.ChatMessage, bool) {
	m, ok := s.msgs[id]
	return m, ok
}

func (s *fakeStore) DeleteMessage(_, _, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) DeleteChat(_, chatID string) error {
	s.deleted = append(s.deleted, "chat:"+chatID)
	return nil
}

type testEnv struct {
	m       *Model
	p       *fakeProtocol
	clock   *fakeClock
	surface *fakeSurface
	store   *fakeStore
}

func allFeatures() protocol.Features {
	return protocol.Features{
		EditMessage: true, DeleteMessage: true, DeleteChat: true,
		Reactions: true, SendFile: true, Typing: true, Mute: true,
	}
}

func newEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	st := &fakeStore{msgs: make(map[string]protocol.ChatMessage)}
	m := New(Options{Config: cfg, Store: st, Logger: zap.NewNop(), Now: clock.Now})
	p := &fakeProtocol{id: "p", features: allFeatures(), model: m}
	if !m.AddProtocol(p) {
		t.Fatal("AddProtocol failed")
	}
	surface := &fakeSurface{}
	m.SetSurface(surface)
	m.Start()
	return &testEnv{m: m, p: p, clock: clock, surface: surface, store: st}
}

func key(chatID string) ChatKey { return ChatKey{ProfileID: "p", ChatID: chatID} }

func src() protocol.Source { return protocol.Source{ProfileID: "p"} }

// msgs builds n incoming messages with ids m<from>..; timestamps follow ids.
func msgs(from, n int) []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, protocol.ChatMessage{
			ID: fmt.Sprintf("m%02d", i), SenderID: "s", Timestamp: int64(i) * 1000, Text: fmt.Sprintf("text %d", i), IsRead: true,
		})
	}
	return out
}

func (e *testEnv) chats(ci ...protocol.ChatInfo) {
	e.m.MessageHandler(protocol.ChatsFetched{Source: src(), Chats: ci})
}

func (e *testEnv) locked(fn func(l *Locked)) {
	e.m.WithLock(fn)
}

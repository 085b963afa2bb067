package core

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/config"
	"github.com/matheus3301/mchat/internal/keys"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"go.uber.org/zap"
)

// Options configures a Model.
type Options struct {
	Config *config.Config
	Keys   *keys.Map
	// Store may be nil when the cache is disabled.
	Store MessageStore
	// Bus may be nil; notifications are then dropped.
	Bus    *bus.Bus
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type registered struct {
	p        protocol.Protocol
	name     string
	features protocol.Features
}

// Model is the shared chat state of all profiles.
type Model struct {
	mu sync.Mutex
	s  session

	regMu     sync.RWMutex
	protocols map[string]registered
	regOrder  []string

	started  atomic.Bool
	stopping atomic.Bool

	cfg    *config.Config
	keys   *keys.Map
	store  MessageStore
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time

	// surface and prompter are set once before Start.
	surface  Surface
	prompter Prompter
}

// New creates a model with no protocols.
func New(opts Options) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	km := opts.Keys
	if km == nil {
		km = keys.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Model{
		s:         newSession(),
		protocols: make(map[string]registered),
		cfg:       cfg,
		keys:      km,
		store:     opts.Store,
		bus:       opts.Bus,
		logger:    logger,
		now:       now,
	}
	m.s.showEmoji = cfg.UI.ShowEmoji
	m.s.showHelp = cfg.UI.ShowHelp
	m.s.showList = cfg.UI.ShowList
	m.s.showTop = cfg.UI.ShowTop
	m.s.listWidth = cfg.UI.ListWidth
	m.s.lastStatusRefresh = now()
	return m
}

// Config returns the configuration the model was built with.
func (m *Model) Config() *config.Config { return m.cfg }

// Keys returns the resolved key map.
func (m *Model) Keys() *keys.Map { return m.keys }

// SetSurface sets the redraw target. Call before Start.
func (m *Model) SetSurface(s Surface) { m.surface = s }

// SetPrompter sets the dialog runner. Call before Start.
func (m *Model) SetPrompter(p Prompter) { m.prompter = p }

// AddProtocol registers p. Protocols can only be added before Start.
func (m *Model) AddProtocol(p protocol.Protocol) bool {
	if m.started.Load() {
		m.logger.Warn("protocol added after start ignored", zap.String("profile", p.ProfileID()))
		return false
	}
	m.regMu.Lock()
	id := p.ProfileID()
	if _, dup := m.protocols[id]; dup {
		m.regMu.Unlock()
		m.logger.Warn("duplicate profile ignored", zap.String("profile", id))
		return false
	}
	m.protocols[id] = registered{p: p, name: p.ProfileDisplayName(), features: p.Features()}
	m.regOrder = append(m.regOrder, id)
	m.regMu.Unlock()

	m.mu.Lock()
	m.s.profiles[id] = &profileState{state: status.Offline}
	m.mu.Unlock()
	return true
}

// GetProtocols returns the registered protocols in registration order.
func (m *Model) GetProtocols() []protocol.Protocol {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	out := make([]protocol.Protocol, 0, len(m.regOrder))
	for _, id := range m.regOrder {
		out = append(out, m.protocols[id].p)
	}
	return out
}

func (m *Model) lookup(profileID string) (registered, bool) {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	r, ok := m.protocols[profileID]
	return r, ok
}

func (m *Model) profileIDs() []string {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	return slices.Clone(m.regOrder)
}

// send hands r to the protocol of profileID. Never called with mu held.
func (m *Model) send(profileID string, r protocol.Request) {
	reg, ok := m.lookup(profileID)
	if !ok {
		m.logger.Warn("request for unknown profile", zap.String("profile", profileID))
		return
	}
	reg.p.Request(r)
}

// Start logs in every protocol with MessageHandler as the callback.
func (m *Model) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	for _, p := range m.GetProtocols() {
		m.logger.Info("logging in", zap.String("profile", p.ProfileID()))
		p.Login(m.MessageHandler)
	}
}

// Shutdown stops accepting events and logs out every protocol.
func (m *Model) Shutdown() {
	if !m.stopping.CompareAndSwap(false, true) {
		return
	}
	m.mu.Lock()
	m.s.running = false
	var typing []ChatKey
	for key, c := range m.s.chats {
		if c.localTyping {
			c.localTyping = false
			typing = append(typing, key)
		}
	}
	m.mu.Unlock()

	for _, key := range typing {
		if reg, ok := m.lookup(key.ProfileID); ok && reg.features.Typing {
			reg.p.Request(protocol.SetTyping{ChatID: key.ChatID, Typing: false})
		}
	}
	for _, p := range m.GetProtocols() {
		p.Logout()
	}
	m.logger.Info("model shut down")
}

// Running reports whether the UI should keep going.
func (m *Model) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.running
}

// Lock acquires the model lock. The returned value must be released with
// Unlock exactly once.
func (m *Model) Lock() *Locked {
	m.mu.Lock()
	return &Locked{m: m}
}

// WithLock runs fn with the lock held.
func (m *Model) WithLock(fn func(*Locked)) {
	l := m.Lock()
	defer l.Unlock()
	fn(l)
}

// SetTerminalActive records whether the terminal has focus.
func (m *Model) SetTerminalActive(active bool) {
	m.WithLock(func(l *Locked) {
		l.m.s.termActive = active
		l.dirty |= RegionHistory | RegionStatus
	})
}

// SetListDialogActive records whether a list dialog is open.
func (m *Model) SetListDialogActive(active bool) {
	m.WithLock(func(l *Locked) {
		l.m.s.listDialog = active
		l.dirty |= RegionAll
	})
}

// SetMessageDialogActive records whether a message dialog is open.
func (m *Model) SetMessageDialogActive(active bool) {
	m.WithLock(func(l *Locked) {
		l.m.s.msgDialog = active
		l.dirty |= RegionAll
	})
}

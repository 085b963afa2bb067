// Package notify turns bus events into terminal bells, desktop notifications,
// window titles and external file openers.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/config"
	"go.uber.org/zap"
)

const commandTimeout = 10 * time.Second

// Terminal is the part of the screen the notifier drives.
type Terminal interface {
	Beep() error
	SetTitle(title string)
}

// Runner starts an external command and waits for it.
type Runner func(ctx context.Context, name string, args ...string) error

// Notifier consumes notify.* events from the bus.
type Notifier struct {
	cfg    config.Notify
	bus    *bus.Bus
	logger *zap.Logger
	run    Runner

	mu     sync.Mutex
	term   Terminal
	unread int

	wg sync.WaitGroup
}

// New creates a notifier. The terminal is attached later with SetTerminal
// once the screen exists.
func New(cfg config.Notify, b *bus.Bus, logger *zap.Logger) *Notifier {
	return &Notifier{cfg: cfg, bus: b, logger: logger, run: execRunner}
}

// SetTerminal attaches the screen. A nil terminal disables bells and titles.
func (n *Notifier) SetTerminal(t Terminal) {
	n.mu.Lock()
	n.term = t
	unread := n.unread
	n.mu.Unlock()
	if t != nil && n.cfg.TerminalTitle {
		t.SetTitle(Title(unread))
	}
}

// Run handles events until ctx is cancelled, then waits for running
// commands.
func (n *Notifier) Run(ctx context.Context) {
	ch, unsub := n.bus.Subscribe("notify.", 64)
	defer unsub()
	defer n.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			n.Handle(ctx, evt)
		}
	}
}

// Handle applies one event.
func (n *Notifier) Handle(ctx context.Context, evt bus.Event) {
	switch p := evt.Payload.(type) {
	case bus.MessagePayload:
		n.onMessage(ctx, p)
	case bus.UnreadPayload:
		n.onUnread(p.Chats)
	case bus.OpenPayload:
		n.onOpen(ctx, p.Path)
	default:
		n.logger.Debug("ignoring event", zap.String("kind", evt.Kind))
	}
}

func (n *Notifier) terminal() Terminal {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.term
}

func (n *Notifier) onMessage(ctx context.Context, p bus.MessagePayload) {
	if t := n.terminal(); n.cfg.Bell && t != nil {
		if err := t.Beep(); err != nil {
			n.logger.Debug("bell failed", zap.Error(err))
		}
	}
	if n.cfg.Command == "" {
		return
	}
	title := p.ChatName
	if p.Sender != "" && p.Sender != p.ChatName {
		title = p.Sender + " @ " + p.ChatName
	}
	n.spawn(ctx, n.cfg.Command, title, p.Text)
}

func (n *Notifier) onUnread(chats int) {
	n.mu.Lock()
	n.unread = chats
	t := n.term
	n.mu.Unlock()
	if t != nil && n.cfg.TerminalTitle {
		t.SetTitle(Title(chats))
	}
}

func (n *Notifier) onOpen(ctx context.Context, path string) {
	if n.cfg.OpenCommand == "" || path == "" {
		return
	}
	n.spawn(ctx, n.cfg.OpenCommand, path)
}

// spawn runs command with args appended, in the background.
func (n *Notifier) spawn(ctx context.Context, command string, args ...string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return
	}
	argv := append(parts[1:len(parts):len(parts)], args...)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commandTimeout)
		defer cancel()
		if err := n.run(cctx, parts[0], argv...); err != nil {
			n.logger.Warn("notify command failed", zap.String("command", parts[0]), zap.Error(err))
		}
	}()
}

// Title is the terminal title for an unread chat count.
func Title(unread int) string {
	if unread <= 0 {
		return "mchat"
	}
	return "mchat (" + strconv.Itoa(unread) + ")"
}

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s timed out", name)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %s: %w", name, msg, err)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

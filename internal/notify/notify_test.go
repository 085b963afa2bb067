package notify

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/config"
	"go.uber.org/zap"
)

type fakeTerminal struct {
	mu     sync.Mutex
	beeps  int
	titles []string
}

func (f *fakeTerminal) Beep() error {
	f.mu.Lock()
	f.beeps++
	f.mu.Unlock()
	return nil
}

func (f *fakeTerminal) SetTitle(s string) {
	f.mu.Lock()
	f.titles = append(f.titles, s)
	f.mu.Unlock()
}

type call struct {
	name string
	args []string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, call{name, args})
	r.mu.Unlock()
	return nil
}

func newNotifier(cfg config.Notify) (*Notifier, *fakeTerminal, *recorder) {
	n := New(cfg, bus.New(), zap.NewNop())
	rec := &recorder{}
	n.run = rec.run
	term := &fakeTerminal{}
	n.SetTerminal(term)
	return n, term, rec
}

func TestTitle(t *testing.T) {
	tests := []struct {
		unread int
		want   string
	}{
		{0, "mchat"},
		{-1, "mchat"},
		{3, "mchat (3)"},
	}
	for _, tt := range tests {
		if got := Title(tt.unread); got != tt.want {
			t.Errorf("Title(%d) = %q, want %q", tt.unread, got, tt.want)
		}
	}
}

func TestMessageRingsAndRunsCommand(t *testing.T) {
	n, term, rec := newNotifier(config.Notify{Bell: true, Command: "notify-send -a mchat"})
	n.Handle(context.Background(), bus.Event{Kind: bus.KindMessage, Payload: bus.MessagePayload{
		ChatName: "Family", Sender: "Ann", Text: "dinner?",
	}})
	n.wg.Wait()

	if term.beeps != 1 {
		t.Errorf("beeps = %d, want 1", term.beeps)
	}
	want := call{"notify-send", []string{"-a", "mchat", "Ann @ Family", "dinner?"}}
	if len(rec.calls) != 1 || rec.calls[0].name != want.name || !slices.Equal(rec.calls[0].args, want.args) {
		t.Errorf("calls = %+v, want %+v", rec.calls, want)
	}
}

func TestMessageWithoutBellOrCommand(t *testing.T) {
	n, term, rec := newNotifier(config.Notify{})
	n.Handle(context.Background(), bus.Event{Kind: bus.KindMessage, Payload: bus.MessagePayload{ChatName: "x"}})
	n.wg.Wait()
	if term.beeps != 0 || len(rec.calls) != 0 {
		t.Errorf("beeps=%d calls=%d, want none", term.beeps, len(rec.calls))
	}
}

func TestUnreadUpdatesTitle(t *testing.T) {
	n, term, _ := newNotifier(config.Notify{TerminalTitle: true})
	n.Handle(context.Background(), bus.Event{Kind: bus.KindUnread, Payload: bus.UnreadPayload{Chats: 2}})
	n.Handle(context.Background(), bus.Event{Kind: bus.KindUnread, Payload: bus.UnreadPayload{Chats: 0}})
	if want := []string{"mchat", "mchat (2)", "mchat"}; !slices.Equal(term.titles, want) {
		t.Errorf("titles = %v, want %v", term.titles, want)
	}
}

func TestOpenRunsOpener(t *testing.T) {
	n, _, rec := newNotifier(config.Notify{OpenCommand: "xdg-open"})
	n.Handle(context.Background(), bus.Event{Kind: bus.KindOpen, Payload: bus.OpenPayload{Path: "/tmp/a.pdf"}})
	n.Handle(context.Background(), bus.Event{Kind: bus.KindOpen, Payload: bus.OpenPayload{}})
	n.wg.Wait()
	if len(rec.calls) != 1 || rec.calls[0].name != "xdg-open" || !slices.Equal(rec.calls[0].args, []string{"/tmp/a.pdf"}) {
		t.Errorf("calls = %+v", rec.calls)
	}
}

func TestRunConsumesBus(t *testing.T) {
	n, term, _ := newNotifier(config.Notify{TerminalTitle: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		n.bus.Publish(bus.Event{Kind: bus.KindUnread, Payload: bus.UnreadPayload{Chats: 5}})
		term.mu.Lock()
		got := slices.Contains(term.titles, "mchat (5)")
		term.mu.Unlock()
		if got {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("title never updated from the bus")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

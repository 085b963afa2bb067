package loopback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"go.uber.org/zap"
)

type sink struct {
	ch chan protocol.Event
}

func newSink() *sink { return &sink{ch: make(chan protocol.Event, 64)} }

func (s *sink) handle(ev protocol.Event) { s.ch <- ev }

// next returns the next event of type T, skipping others.
func next[T protocol.Event](t *testing.T, s *sink) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.ch:
			if v, ok := ev.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timeout waiting for %T", zero)
			return zero
		}
	}
}

func start(t *testing.T, opts ...Option) (*Protocol, *sink) {
	t.Helper()
	p := New("loopback_test", "Test", zap.NewNop(), opts...)
	s := newSink()
	p.Login(s.handle)
	t.Cleanup(p.Logout)
	return p, s
}

func TestLoginGoesOnline(t *testing.T) {
	_, s := start(t)
	if ev := next[protocol.LoginStateChanged](t, s); ev.State != status.Connecting {
		t.Errorf("first state = %s", ev.State)
	}
	if ev := next[protocol.LoginStateChanged](t, s); ev.State != status.Online {
		t.Errorf("second state = %s", ev.State)
	}
}

func TestHistoryPaging(t *testing.T) {
	p, s := start(t)
	p.Request(protocol.RequestMessages{ChatID: "alice@loopback", Limit: 25})
	first := next[protocol.MessagesFetched](t, s)
	if len(first.Messages) != 25 || first.Complete {
		t.Fatalf("first page: %d messages, complete=%v", len(first.Messages), first.Complete)
	}
	for i := 1; i < len(first.Messages); i++ {
		if !first.Messages[i-1].Before(first.Messages[i]) {
			t.Fatal("page not in chronological order")
		}
	}

	oldest := first.Messages[0].ID
	p.Request(protocol.RequestMessages{ChatID: "alice@loopback", BeforeID: oldest, Limit: 50})
	second := next[protocol.MessagesFetched](t, s)
	if second.FromID != oldest || len(second.Messages) != 35 || !second.Complete {
		t.Errorf("second page: from=%q %d messages complete=%v", second.FromID, len(second.Messages), second.Complete)
	}

	p.Request(protocol.RequestMessages{ChatID: "nobody", Limit: 5})
	if ev := next[protocol.MessagesFetched](t, s); len(ev.Messages) != 0 || !ev.Complete {
		t.Errorf("unknown chat = %+v", ev)
	}
}

func TestSendEchoes(t *testing.T) {
	p, s := start(t, WithReplyDelay(10*time.Millisecond))
	p.Request(protocol.SendMessage{ChatID: "bob@loopback", ClientID: "c1", Text: "ping"})

	res := next[protocol.SendResult](t, s)
	if res.ClientID != "c1" || res.MessageID == "" || res.Err != "" {
		t.Fatalf("result = %+v", res)
	}
	if ev := next[protocol.TypingChanged](t, s); !ev.Typing {
		t.Error("expected typing start")
	}
	var reply protocol.ChatMessage
	for reply.ID == "" {
		ev := next[protocol.NewMessages](t, s)
		if m := ev.Messages[0]; !m.IsOutgoing {
			reply = m
		}
	}
	if reply.Text != "echo: ping" || reply.QuotedID != res.MessageID {
		t.Errorf("reply = %+v", reply)
	}
}

func TestMarkReadClearsUnread(t *testing.T) {
	p, s := start(t, WithReplyDelay(0))
	p.Request(protocol.RequestMessages{ChatID: "bob@loopback", Limit: 20})
	page := next[protocol.MessagesFetched](t, s)
	var ids []string
	for _, m := range page.Messages {
		if !m.IsOutgoing && !m.IsRead {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		t.Fatal("seed has no unread messages")
	}
	p.Request(protocol.MarkRead{ChatID: "bob@loopback", IDs: ids})
	if ev := next[protocol.MessagesRead](t, s); len(ev.IDs) != len(ids) {
		t.Errorf("read = %+v", ev)
	}
	p.Request(protocol.RequestChatUpdate{ChatID: "bob@loopback"})
	if ev := next[protocol.ChatsFetched](t, s); len(ev.Chats) != 1 || ev.Chats[0].IsUnread {
		t.Errorf("chat = %+v", ev.Chats)
	}
}

func TestSendAndDownloadFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(src, []byte("hello file"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, s := start(t, WithReplyDelay(0), WithoutSeed())
	p.Request(protocol.SendMessage{ChatID: "x", FilePath: src})
	res := next[protocol.SendResult](t, s)
	sent := next[protocol.NewMessages](t, s).Messages[0]
	if sent.File == nil || sent.File.Name != "note.txt" || sent.File.Size != 10 {
		t.Fatalf("file = %+v", sent.File)
	}

	out := filepath.Join(dir, "downloads")
	p.Request(protocol.DownloadFile{ChatID: "x", MessageID: res.MessageID, Dir: out, Open: true})
	ev := next[protocol.FileStatusChanged](t, s)
	if ev.File.Status != protocol.FileDownloaded || !ev.Open {
		t.Fatalf("status = %+v", ev)
	}
	data, err := os.ReadFile(ev.File.Path)
	if err != nil || string(data) != "hello file" {
		t.Errorf("downloaded = %q, %v", data, err)
	}

	p.Request(protocol.SendMessage{ChatID: "x", FilePath: filepath.Join(dir, "missing")})
	if res := next[protocol.SendResult](t, s); res.Err == "" {
		t.Error("expected an error for a missing file")
	}
}

func TestDeleteAndReact(t *testing.T) {
	p, s := start(t, WithReplyDelay(0), WithoutSeed())
	p.Request(protocol.SendMessage{ChatID: "x", Text: "a"})
	id := next[protocol.SendResult](t, s).MessageID

	p.Request(protocol.SendReaction{ChatID: "x", MessageID: id, Emoji: "🎉"})
	var reacted protocol.ChatMessage
	for reacted.Reactions.Empty() {
		reacted = next[protocol.NewMessages](t, s).Messages[0]
	}
	if reacted.Reactions.Own != "🎉" {
		t.Errorf("reactions = %+v", reacted.Reactions)
	}

	p.Request(protocol.DeleteMessage{ChatID: "x", MessageID: id})
	if ev := next[protocol.MessageDeleted](t, s); ev.MessageID != id {
		t.Errorf("deleted = %+v", ev)
	}
	p.Request(protocol.GetMessage{ChatID: "x", MessageID: id})
	if ev := next[protocol.MessageFetched](t, s); ev.Found {
		t.Error("deleted message still found")
	}
}

func TestNoEventsAfterLogout(t *testing.T) {
	p := New("loopback_test", "Test", zap.NewNop())
	s := newSink()
	p.Login(s.handle)
	p.Logout()
	for len(s.ch) > 0 {
		<-s.ch
	}
	p.Request(protocol.RequestChats{})
	time.Sleep(50 * time.Millisecond)
	if len(s.ch) != 0 {
		t.Errorf("got %d events after logout", len(s.ch))
	}
}

package loopback_test

import (
	"testing"
	"time"

	"github.com/matheus3301/mchat/internal/core"
	"github.com/matheus3301/mchat/internal/keys"
	"github.com/matheus3301/mchat/internal/protocol/loopback"
	"go.uber.org/zap"
)

// eventually polls cond while ticking the model, as the UI loop does.
func eventually(t *testing.T, m *core.Model, cond func(l *core.Locked) bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		m.Process()
		ok := false
		m.WithLock(func(l *core.Locked) { ok = cond(l) })
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestModelWithLoopback(t *testing.T) {
	m := core.New(core.Options{Logger: zap.NewNop()})
	p := loopback.New("loopback_demo", "Demo", zap.NewNop(), loopback.WithReplyDelay(20*time.Millisecond))
	m.AddProtocol(p)
	m.Start()
	defer m.Shutdown()

	// Going online pulls the chat list.
	eventually(t, m, func(l *core.Locked) bool { return len(l.Chats()) == 3 })

	alice := core.ChatKey{ProfileID: "loopback_demo", ChatID: "alice@loopback"}
	m.WithLock(func(l *core.Locked) {
		l.SetViewHeight(12)
		l.SelectChat(alice)
	})
	// Lazy fill loads pages until the view is full.
	eventually(t, m, func(l *core.Locked) bool { return len(l.HistoryWindow(alice)) == 12 })

	m.WithLock(func(l *core.Locked) { l.InsertText("hi there") })
	m.RunAction(keys.SendMsg)

	eventually(t, m, func(l *core.Locked) bool {
		win := l.HistoryWindow(alice)
		last := win[len(win)-1]
		return !last.IsOutgoing && last.Text == "echo: hi there"
	})
}

package loopback

import (
	"fmt"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
)

var seedLines = []string{
	"hey, are you around?",
	"yes, what's up",
	"did you see the build failing on main?",
	"looking now",
	"it's the migration test again",
	"I'll push a fix after lunch",
	"thanks!",
	"no worries",
}

// seedData fills a fresh protocol with a few chats of generated history.
func (p *Protocol) seedData() {
	p.contacts = []protocol.ContactInfo{
		{ID: SelfID, Name: "Me", IsSelf: true},
		{ID: "alice@loopback", Name: "Alice", Phone: "+1 555 0100", IsStarred: true},
		{ID: "bob@loopback", Name: "Bob", Phone: "+1 555 0101"},
		{ID: "carol@loopback", Name: "Carol", Alias: "C"},
	}
	base := p.now().Add(-48 * time.Hour)
	seed := func(chatID, name string, group bool, n, unread int, peers ...string) {
		c := &chat{info: protocol.ChatInfo{ID: chatID, Name: name, IsGroup: group}}
		for i := range n {
			ts := base.Add(time.Duration(i) * 7 * time.Minute)
			out := i%3 == 1
			sender := peers[i%len(peers)]
			if out {
				sender = SelfID
			}
			m := protocol.ChatMessage{
				ID:         p.newID(ts),
				SenderID:   sender,
				Timestamp:  ts.UnixMilli(),
				Text:       fmt.Sprintf("%s (%d)", seedLines[i%len(seedLines)], i+1),
				IsOutgoing: out,
				IsRead:     out || i < n-unread,
			}
			c.msgs = append(c.msgs, m)
			c.info.LastMessageTime = m.Timestamp
			if !m.IsOutgoing && !m.IsRead {
				c.info.IsUnread = true
			}
		}
		p.chats[chatID] = c
		base = base.Add(3 * time.Hour)
	}
	seed("alice@loopback", "", false, 60, 0, "alice@loopback")
	seed("bob@loopback", "", false, 9, 2, "bob@loopback")
	seed("team@loopback", "Team", true, 24, 3, "alice@loopback", "bob@loopback", "carol@loopback")
}

package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/matheus3301/mchat/internal/protocol"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, _, err := OpenMigrated(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + outbox)", result.Version)
	}
}

func TestChatUpsertKeepsNewestTime(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertChat(&Chat{ProfileID: "p", ChatID: "a", Name: "Alice", LastMessageAt: 2000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertChat(&Chat{ProfileID: "p", ChatID: "a", LastMessageAt: 1000, IsMuted: true}); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetChat("p", "a")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("chat missing")
	}
	if c.Name != "Alice" {
		t.Errorf("name = %q, empty name should keep Alice", c.Name)
	}
	if c.LastMessageAt != 2000 {
		t.Errorf("LastMessageAt = %d, want 2000", c.LastMessageAt)
	}
	if !c.IsMuted {
		t.Error("IsMuted not updated")
	}

	missing, err := db.GetChat("p", "zzz")
	if err != nil || missing != nil {
		t.Errorf("GetChat(missing) = %v, %v", missing, err)
	}
}

func TestListChatsIsPerProfile(t *testing.T) {
	db := testDB(t)
	for _, c := range []Chat{
		{ProfileID: "p1", ChatID: "old", LastMessageAt: 1},
		{ProfileID: "p1", ChatID: "new", LastMessageAt: 5},
		{ProfileID: "p2", ChatID: "other", LastMessageAt: 9},
	} {
		if err := db.UpsertChat(&c); err != nil {
			t.Fatal(err)
		}
	}
	chats, err := db.ListChats("p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 || chats[0].ChatID != "new" || chats[1].ChatID != "old" {
		t.Errorf("ListChats(p1) = %+v", chats)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	msg := &Message{ProfileID: "p", ChatID: "c", MsgID: "m1", Body: "hello", Timestamp: 1000, Raw: []byte{1, 2}}
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}
	msg.Body = "hello edited"
	msg.IsEdited = true
	msg.Raw = nil
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("p", "c", "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert failed)", len(msgs))
	}
	if msgs[0].Body != "hello edited" || !msgs[0].IsEdited {
		t.Errorf("message = %+v", msgs[0])
	}
	if len(msgs[0].Raw) != 2 {
		t.Error("raw payload should survive an upsert without one")
	}
}

func TestMessageExtrasRoundTrip(t *testing.T) {
	db := testDB(t)
	msg := &Message{
		ProfileID: "p", ChatID: "c", MsgID: "m1", Timestamp: 1,
		File:      &protocol.FileInfo{Name: "a.png", MimeType: "image/png", Size: 3, Status: protocol.FileNotDownloaded},
		Reactions: protocol.Reactions{}.With("", "👍", true),
	}
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateMessageFile("p", "c", "m1", protocol.FileInfo{Name: "a.png", Path: "/tmp/a.png", Status: protocol.FileDownloaded}); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMessage("p", "c", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.File == nil || got.File.Status != protocol.FileDownloaded || got.File.Path != "/tmp/a.png" {
		t.Errorf("file = %+v", got.File)
	}
	if got.Reactions.Own != "👍" || got.Reactions.String() != "👍" {
		t.Errorf("reactions = %+v", got.Reactions)
	}
}

func TestListMessagesKeyset(t *testing.T) {
	db := testDB(t)
	// Two messages share a timestamp so the id breaks the tie.
	for i, ts := range []int64{100, 200, 200, 300, 400} {
		m := &Message{ProfileID: "p", ChatID: "c", MsgID: fmt.Sprintf("m%d", i), Timestamp: ts}
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		before string
		limit  int
		want   []string
	}{
		{"newest", "", 2, []string{"m4", "m3"}},
		{"before m3", "m3", 10, []string{"m2", "m1", "m0"}},
		{"tie", "m2", 10, []string{"m1", "m0"}},
		{"oldest", "m0", 10, nil},
		{"unknown anchor", "zz", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := db.ListMessages("p", "c", tt.before, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, m := range msgs {
				ids = append(ids, m.MsgID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestIngestBatchTouchesChats(t *testing.T) {
	db := testDB(t)
	err := db.IngestBatch([]*Message{
		{ProfileID: "p", ChatID: "c", MsgID: "1", Timestamp: 10},
		{ProfileID: "p", ChatID: "c", MsgID: "2", Timestamp: 30, FromMe: true},
		{ProfileID: "p", ChatID: "d", MsgID: "3", Timestamp: 20, IsRead: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	c, _ := db.GetChat("p", "c")
	if c == nil || c.LastMessageAt != 30 || !c.IsUnread {
		t.Errorf("chat c = %+v", c)
	}
	d, _ := db.GetChat("p", "d")
	if d == nil || d.IsUnread {
		t.Errorf("chat d = %+v", d)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)
	for _, m := range []Message{
		{ProfileID: "p", ChatID: "c", MsgID: "m1", Body: "hello world", Timestamp: 1000},
		{ProfileID: "p", ChatID: "c", MsgID: "m2", Body: "goodbye world", Timestamp: 2000},
		{ProfileID: "p", ChatID: "c", MsgID: "m3", Body: "100% sure", Timestamp: 3000},
	} {
		if err := db.UpsertMessage(&m); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.SearchMessages("p", "hello", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].MsgID != "m1" {
		t.Errorf("results = %+v", results)
	}
	results, err = db.SearchMessages("p", "%", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].MsgID != "m3" {
		t.Errorf("literal %% search = %+v", results)
	}
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	db := testDB(t)
	if err := db.IngestBatch([]*Message{{ProfileID: "p", ChatID: "c", MsgID: "1", Timestamp: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteChat("p", "c"); err != nil {
		t.Fatal(err)
	}
	if c, _ := db.GetChat("p", "c"); c != nil {
		t.Error("chat still present")
	}
	if m, _ := db.GetMessage("p", "c", "1"); m != nil {
		t.Error("message still present")
	}
}

func TestMarkMessagesRead(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertMessage(&Message{ProfileID: "p", ChatID: "c", MsgID: "1", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkMessagesRead("p", "c", []string{"1"}); err != nil {
		t.Fatal(err)
	}
	m, _ := db.GetMessage("p", "c", "1")
	if m == nil || !m.IsRead {
		t.Errorf("message = %+v", m)
	}
	// A later upsert with is_read=0 must not clear the flag.
	if err := db.UpsertMessage(&Message{ProfileID: "p", ChatID: "c", MsgID: "1", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	m, _ = db.GetMessage("p", "c", "1")
	if !m.IsRead {
		t.Error("read flag regressed")
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox(&OutboxEntry{ProfileID: "p", ClientMsgID: "client1", ChatID: "c", Body: "test", QuotedID: "q"}); err != nil {
		t.Fatal(err)
	}
	pending, err := db.PendingOutbox("p")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ClientMsgID != "client1" || pending[0].QuotedID != "q" {
		t.Fatalf("pending = %+v", pending)
	}
	if other, _ := db.PendingOutbox("other"); len(other) != 0 {
		t.Error("outbox leaked across profiles")
	}

	if err := db.MarkOutboxSending("client1"); err != nil {
		t.Fatal(err)
	}
	n, err := db.ResetStaleSending("p")
	if err != nil || n != 1 {
		t.Fatalf("ResetStaleSending = %d, %v", n, err)
	}
	if err := db.MarkOutboxSent("client1", "server1"); err != nil {
		t.Fatal(err)
	}
	pending, _ = db.PendingOutbox("p")
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}
	e, err := db.GetOutbox("client1")
	if err != nil || e == nil || e.Status != "sent" || e.ServerMsgID != "server1" {
		t.Errorf("GetOutbox = %+v, %v", e, err)
	}
}

func TestContactsAndStats(t *testing.T) {
	db := testDB(t)

	if err := db.BulkUpsertContacts([]Contact{
		{ProfileID: "p", ContactID: "j", Name: "John"},
		{ProfileID: "p", ContactID: "k", Phone: "555"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertContact(&Contact{ProfileID: "p", ContactID: "j", Alias: "Johnny"}); err != nil {
		t.Fatal(err)
	}
	contacts, err := db.ListContacts("p")
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 2 || contacts[0].Name != "John" || contacts[0].Alias != "Johnny" {
		t.Errorf("contacts = %+v", contacts)
	}

	if err := db.IngestBatch([]*Message{{ProfileID: "p", ChatID: "c", MsgID: "1", Timestamp: 1}}); err != nil {
		t.Fatal(err)
	}
	stats, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].Chats != 1 || stats[0].Contacts != 2 || stats[0].Messages != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	if _, err := OpenReadOnly(path); err == nil {
		t.Fatal("OpenReadOnly created a missing database")
	}

	db, _, err := OpenMigrated(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertChat(&Chat{ProfileID: "p", ChatID: "c", Name: "C"}); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ro.Close() }()
	if c, err := ro.GetChat("p", "c"); err != nil || c == nil {
		t.Fatalf("GetChat() = %v, %v", c, err)
	}
	if err := ro.UpsertChat(&Chat{ProfileID: "p", ChatID: "d"}); err == nil {
		t.Error("write on read-only cache succeeded")
	}
}

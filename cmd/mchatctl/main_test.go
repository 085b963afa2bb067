package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matheus3301/mchat/internal/profile"
	"github.com/matheus3301/mchat/internal/store"
)

func seedCache(t *testing.T, dir string) {
	t.Helper()
	db, _, err := store.OpenMigrated(profile.CacheDBPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	if err := db.UpsertChat(&store.Chat{ProfileID: "loopback_a", ChatID: "c1", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertContact(&store.Contact{ProfileID: "loopback_a", ContactID: "alice", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	err = db.IngestBatch([]*store.Message{
		{ProfileID: "loopback_a", ChatID: "c1", MsgID: "m1", SenderID: "alice", Body: "hi", Timestamp: 1000},
		{ProfileID: "loopback_a", ChatID: "c1", MsgID: "m2", Body: "hello", FromMe: true, Timestamp: 2000},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func runCtl(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestExportIsChronological(t *testing.T) {
	dir := t.TempDir()
	seedCache(t, dir)

	out, errOut, code := runCtl(t, "--config-dir", dir, "export", "loopback_a", "c1")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasSuffix(lines[0], "Alice: hi") || !strings.HasSuffix(lines[1], "me: hello") {
		t.Errorf("export =\n%s", out)
	}
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	seedCache(t, dir)

	out, _, code := runCtl(t, "--config-dir", dir, "--json", "export", "loopback_a", "c1")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	var msgs []messageJSON
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || !msgs[1].FromMe {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestChatsAndStats(t *testing.T) {
	dir := t.TempDir()
	seedCache(t, dir)

	out, _, code := runCtl(t, "--config-dir", dir, "chats", "loopback_a")
	if code != 0 || !strings.Contains(out, "Alice") || !strings.Contains(out, "c1") {
		t.Errorf("chats exit %d:\n%s", code, out)
	}

	out, _, code = runCtl(t, "--config-dir", dir, "stats")
	if code != 0 || !strings.Contains(out, "loopback_a") {
		t.Errorf("stats exit %d:\n%s", code, out)
	}
}

func TestProfilesList(t *testing.T) {
	dir := t.TempDir()
	out, _, code := runCtl(t, "--config-dir", dir, "profiles", "list")
	if code != 0 || !strings.Contains(out, "No profiles") {
		t.Errorf("empty list exit %d: %q", code, out)
	}

	if _, err := profile.Create(dir, profile.Loopback, "demo"); err != nil {
		t.Fatal(err)
	}
	out, _, _ = runCtl(t, "--config-dir", dir, "--json", "profiles", "list")
	var list []profileJSON
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "loopback_demo" || list[0].Protocol != "loopback" {
		t.Errorf("profiles = %+v", list)
	}
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "usage"},
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"bad profile id", []string{"chats", "nope"}, "invalid profile id"},
		{"missing cache", []string{"stats"}, "no message cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, code := runCtl(t, append([]string{"--config-dir", dir}, tt.args...)...)
			if code == 0 || !strings.Contains(errOut, tt.want) {
				t.Errorf("exit %d, stderr %q, want %q", code, errOut, tt.want)
			}
		})
	}
}

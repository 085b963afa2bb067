package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.UI.UnreadFirst = false
	cfg.UI.ListWidth = 40
	cfg.Keys["quit"] = "ctrl+x"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.UI.UnreadFirst {
		t.Error("UnreadFirst = true, want false")
	}
	if loaded.UI.ListWidth != 40 {
		t.Errorf("ListWidth = %d, want 40", loaded.UI.ListWidth)
	}
	if loaded.Keys["quit"] != "ctrl+x" {
		t.Errorf("Keys[quit] = %q", loaded.Keys["quit"])
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.UI.UnreadFirst || !cfg.UI.MutedIgnoreUnread {
		t.Error("defaults should order unread first and ignore muted unread")
	}
	if cfg.UI.MarkReadWhenInactive {
		t.Error("MarkReadWhenInactive should default to false")
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\nlist_width = 20\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UI.ListWidth != 20 {
		t.Errorf("ListWidth = %d, want 20", cfg.UI.ListWidth)
	}
	if cfg.UI.TypingTimeoutSec != 5 {
		t.Errorf("TypingTimeoutSec = %d, want default 5", cfg.UI.TypingTimeoutSec)
	}
	if cfg.Keys == nil {
		t.Error("Keys map should never be nil")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"narrow list", "[ui]\nlist_width = 2\n", "list_width"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad toml", "[ui\n", "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestResolveDir(t *testing.T) {
	t.Setenv(EnvDir, "/from/env")
	if got := ResolveDir("/from/flag"); got != "/from/flag" {
		t.Errorf("flag precedence: got %q", got)
	}
	if got := ResolveDir(""); got != "/from/env" {
		t.Errorf("env precedence: got %q", got)
	}
	t.Setenv(EnvDir, "")
	if got := ResolveDir(""); !strings.HasSuffix(got, filepath.Join(".config", "mchat")) {
		t.Errorf("default: got %q", got)
	}
}

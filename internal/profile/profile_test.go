package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-phone", false},
		{"valid with underscore", "my_phone", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my phone", true},
		{"slash", "my/phone", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		id       string
		protocol string
		name     string
		wantErr  bool
	}{
		{"whatsapp_main", WhatsApp, "main", false},
		{"loopback_demo_2", Loopback, "demo_2", false},
		{"telegram_main", "", "", true},
		{"whatsapp", "", "", true},
		{"whatsapp_", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			proto, name, err := ParseID(tt.id)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Errorf("ParseID(%q) error = %v, want ErrInvalidID", tt.id, err)
				}
				return
			}
			if err != nil || proto != tt.protocol || name != tt.name {
				t.Errorf("ParseID(%q) = %q, %q, %v", tt.id, proto, name, err)
			}
		})
	}
}

func TestCreateAndList(t *testing.T) {
	dir := t.TempDir()

	p, err := Create(dir, WhatsApp, "main")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.ID != "whatsapp_main" {
		t.Errorf("ID = %q", p.ID)
	}
	if info, err := os.Stat(p.DownloadDir()); err != nil || !info.IsDir() {
		t.Errorf("download dir not created: %v", err)
	}
	if _, err := Create(dir, WhatsApp, "main"); err == nil {
		t.Error("second Create() should fail")
	}
	if _, err := Create(dir, Loopback, "demo"); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(Root(dir), "junk"), 0700); err != nil {
		t.Fatal(err)
	}

	got, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "loopback_demo" || got[1].ID != "whatsapp_main" {
		t.Errorf("List() = %+v", got)
	}
}

func TestListMissingRoot(t *testing.T) {
	got, err := List(filepath.Join(t.TempDir(), "none"))
	if err != nil || len(got) != 0 {
		t.Errorf("List() = %v, %v", got, err)
	}
}

func TestPaths(t *testing.T) {
	p, err := New("/cfg", WhatsApp, "main")
	if err != nil {
		t.Fatal(err)
	}
	if p.SessionDBPath() != "/cfg/profiles/whatsapp_main/session.db" {
		t.Errorf("SessionDBPath = %q", p.SessionDBPath())
	}
	if CacheDBPath("/cfg") != "/cfg/cache.db" {
		t.Errorf("CacheDBPath = %q", CacheDBPath("/cfg"))
	}
}

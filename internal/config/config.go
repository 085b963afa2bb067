package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// EnvDir overrides the default config directory.
const EnvDir = "MCHAT_CONFIG_DIR"

// FileName is the config file inside the config directory.
const FileName = "config.toml"

// Config is the contents of <config-dir>/config.toml.
type Config struct {
	UI     UI                `toml:"ui"`
	Notify Notify            `toml:"notify"`
	Keys   map[string]string `toml:"keys"`
	Log    Log               `toml:"log"`
	Cache  Cache             `toml:"cache"`
}

// UI controls ordering, read marking and layout.
type UI struct {
	UnreadFirst           bool   `toml:"unread_first"`
	MutedIgnoreUnread     bool   `toml:"muted_ignore_unread"`
	MarkReadWhenInactive  bool   `toml:"mark_read_when_inactive"`
	ShowEmoji             bool   `toml:"show_emoji"`
	ShowHelp              bool   `toml:"show_help"`
	ShowList              bool   `toml:"show_list"`
	ShowTop               bool   `toml:"show_top"`
	ListWidth             int    `toml:"list_width"`
	EntryHeight           int    `toml:"entry_height"`
	TypingTimeoutSec      int    `toml:"typing_timeout_sec"`
	StatusRefreshSec      int    `toml:"status_refresh_sec"`
	TimeFormat            string `toml:"time_format"`
	DownloadDir           string `toml:"download_dir"`
	ConfirmDeletion       bool   `toml:"confirm_deletion"`
	ShowOutgoingReadState bool   `toml:"show_outgoing_read_state"`
}

// Notify controls alerts for incoming messages.
type Notify struct {
	Bell          bool   `toml:"bell"`
	Command       string `toml:"command"`
	OpenCommand   string `toml:"open_command"`
	TerminalTitle bool   `toml:"terminal_title"`
}

// Log controls the application log file.
type Log struct {
	Level string `toml:"level"`
}

// Cache controls the local message cache.
type Cache struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		UI: UI{
			UnreadFirst:           true,
			MutedIgnoreUnread:     true,
			MarkReadWhenInactive:  false,
			ShowEmoji:             true,
			ShowHelp:              true,
			ShowList:              true,
			ShowTop:               true,
			ListWidth:             28,
			EntryHeight:           3,
			TypingTimeoutSec:      5,
			StatusRefreshSec:      60,
			TimeFormat:            "15:04",
			ConfirmDeletion:       true,
			ShowOutgoingReadState: true,
		},
		Notify: Notify{
			Bell:          true,
			OpenCommand:   "xdg-open",
			TerminalTitle: true,
		},
		Keys:  map[string]string{},
		Log:   Log{Level: "info"},
		Cache: Cache{Enabled: true},
	}
}

// Load reads path on top of Default. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if cfg.Keys == nil {
		cfg.Keys = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.UI.ListWidth < 8 {
		return fmt.Errorf("ui.list_width must be at least 8, got %d", c.UI.ListWidth)
	}
	if c.UI.EntryHeight < 1 {
		return fmt.Errorf("ui.entry_height must be at least 1, got %d", c.UI.EntryHeight)
	}
	if c.UI.TypingTimeoutSec < 1 {
		return fmt.Errorf("ui.typing_timeout_sec must be positive, got %d", c.UI.TypingTimeoutSec)
	}
	if c.UI.StatusRefreshSec < 1 {
		return fmt.Errorf("ui.status_refresh_sec must be positive, got %d", c.UI.StatusRefreshSec)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Save writes cfg to path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ResolveDir picks the config directory: flag, then $MCHAT_CONFIG_DIR, then
// ~/.config/mchat.
func ResolveDir(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv(EnvDir); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mchat")
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/matheus3301/mchat/internal/config"
	"github.com/matheus3301/mchat/internal/profile"
	"github.com/matheus3301/mchat/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	configDir string
	jsonOut   bool
	stdout    io.Writer
	stderr    io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("mchatctl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configDirFlag := flags.String("config-dir", "", "configuration directory (overrides $"+config.EnvDir+")")
	jsonFlag := flags.Bool("json", false, "output in JSON format")
	flags.Usage = func() { printUsage(stderr) }
	if err := flags.Parse(args); err != nil {
		return 2
	}

	c := &cli{
		configDir: config.ResolveDir(*configDirFlag),
		jsonOut:   *jsonFlag,
		stdout:    stdout,
		stderr:    stderr,
	}
	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch rest[0] {
	case "profiles":
		if len(rest) < 2 || rest[1] != "list" {
			fmt.Fprintln(stderr, "usage: mchatctl profiles list")
			return 1
		}
		err = c.profilesList()
	case "chats":
		if len(rest) < 2 {
			fmt.Fprintln(stderr, "usage: mchatctl chats <profile>")
			return 1
		}
		err = c.chats(rest[1])
	case "export":
		if len(rest) < 3 {
			fmt.Fprintln(stderr, "usage: mchatctl export <profile> <chat>")
			return 1
		}
		err = c.export(rest[1], rest[2])
	case "stats":
		err = c.stats()
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", rest[0])
		printUsage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: mchatctl [--config-dir <dir>] [--json] <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  profiles list            List configured profiles")
	fmt.Fprintln(w, "  chats <profile>          List cached chats of a profile")
	fmt.Fprintln(w, "  export <profile> <chat>  Print the cached history of a chat")
	fmt.Fprintln(w, "  stats                    Count cached rows per profile")
}

// openCache opens the message cache read-only. Reads are safe
// while mchat runs.
func (c *cli) openCache() (*store.DB, error) {
	path := profile.CacheDBPath(c.configDir)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no message cache in %s", c.configDir)
	}
	return store.OpenReadOnly(path)
}

type profileJSON struct {
	ID       string `json:"id"`
	Protocol string `json:"protocol"`
	Name     string `json:"name"`
	Dir      string `json:"dir"`
}

func (c *cli) profilesList() error {
	list, err := profile.List(c.configDir)
	if err != nil {
		return err
	}
	if c.jsonOut {
		out := make([]profileJSON, 0, len(list))
		for _, p := range list {
			out = append(out, profileJSON{ID: p.ID, Protocol: p.Protocol, Name: p.Name, Dir: p.Dir})
		}
		return c.outputJSON(out)
	}
	if len(list) == 0 {
		fmt.Fprintln(c.stdout, "No profiles found. Run mchat --setup.")
		return nil
	}
	for _, p := range list {
		fmt.Fprintf(c.stdout, "%-24s %-10s %s\n", p.ID, p.Protocol, p.Dir)
	}
	return nil
}

type chatJSON struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Group         bool   `json:"group"`
	Unread        bool   `json:"unread"`
	Muted         bool   `json:"muted"`
	LastMessageAt int64  `json:"last_message_at"`
}

func (c *cli) chats(profileID string) error {
	if _, _, err := profile.ParseID(profileID); err != nil {
		return err
	}
	db, err := c.openCache()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	chats, err := db.ListChats(profileID)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if c.jsonOut {
		out := make([]chatJSON, 0, len(chats))
		for _, ch := range chats {
			out = append(out, chatJSON{
				ID: ch.ChatID, Name: ch.Name, Group: ch.IsGroup,
				Unread: ch.IsUnread, Muted: ch.IsMuted, LastMessageAt: ch.LastMessageAt,
			})
		}
		return c.outputJSON(out)
	}
	for _, ch := range chats {
		marks := ""
		if ch.IsUnread {
			marks += "*"
		}
		if ch.IsMuted {
			marks += "m"
		}
		fmt.Fprintf(c.stdout, "%-3s %-30s %-16s %s\n", marks, ch.Name, formatTime(ch.LastMessageAt), ch.ChatID)
	}
	return nil
}

type messageJSON struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	FromMe    bool   `json:"from_me"`
	Text      string `json:"text"`
	QuotedID  string `json:"quoted_id,omitempty"`
	File      string `json:"file,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// exportPage is the keyset page size used to walk a chat's history.
const exportPage = 500

func (c *cli) export(profileID, chatID string) error {
	if _, _, err := profile.ParseID(profileID); err != nil {
		return err
	}
	db, err := c.openCache()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var msgs []store.Message
	before := ""
	for {
		page, err := db.ListMessages(profileID, chatID, before, exportPage)
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		msgs = append(msgs, page...)
		if len(page) < exportPage {
			break
		}
		before = page[len(page)-1].MsgID
	}
	slices.Reverse(msgs)

	names := map[string]string{}
	contacts, err := db.ListContacts(profileID)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	for _, ct := range contacts {
		if ct.Name != "" {
			names[ct.ContactID] = ct.Name
		}
	}
	sender := func(m store.Message) string {
		if m.FromMe {
			return "me"
		}
		if n, ok := names[m.SenderID]; ok {
			return n
		}
		return m.SenderID
	}

	if c.jsonOut {
		out := make([]messageJSON, 0, len(msgs))
		for _, m := range msgs {
			mj := messageJSON{
				ID: m.MsgID, Sender: sender(m), FromMe: m.FromMe, Text: m.Body,
				QuotedID: m.QuotedID, Timestamp: m.Timestamp,
			}
			if m.File != nil {
				mj.File = m.File.Name
			}
			out = append(out, mj)
		}
		return c.outputJSON(out)
	}
	for _, m := range msgs {
		text := m.Body
		if m.File != nil {
			text += " [file: " + m.File.Name + "]"
		}
		fmt.Fprintf(c.stdout, "%s %s: %s\n", formatTime(m.Timestamp), sender(m), text)
	}
	return nil
}

func (c *cli) stats() error {
	db, err := c.openCache()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	stats, err := db.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if c.jsonOut {
		if stats == nil {
			stats = []store.ProfileStats{}
		}
		return c.outputJSON(stats)
	}
	fmt.Fprintf(c.stdout, "%-24s %8s %8s %10s %8s\n", "PROFILE", "CHATS", "CONTACTS", "MESSAGES", "PENDING")
	for _, s := range stats {
		fmt.Fprintf(c.stdout, "%-24s %8d %8d %10d %8d\n", s.ProfileID, s.Chats, s.Contacts, s.Messages, s.Pending)
	}
	return nil
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

func (c *cli) outputJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

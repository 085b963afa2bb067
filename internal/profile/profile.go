package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Protocol names a profile may use.
const (
	WhatsApp = "whatsapp"
	Loopback = "loopback"
)

// Protocols lists every supported protocol name.
var Protocols = []string{WhatsApp, Loopback}

// ErrInvalidID is returned for profile ids that do not follow <protocol>_<name>.
var ErrInvalidID = errors.New("invalid profile id")

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Profile is one account directory under <config-dir>/profiles.
type Profile struct {
	ID       string
	Protocol string
	Name     string
	Dir      string
}

// ValidateName checks that name conforms to profile naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// ParseID splits an id into its protocol and name.
func ParseID(id string) (protocol, name string, err error) {
	protocol, name, ok := strings.Cut(id, "_")
	if !ok || !slices.Contains(Protocols, protocol) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if err := ValidateName(name); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return protocol, name, nil
}

// Root returns the directory holding all profiles.
func Root(configDir string) string {
	return filepath.Join(configDir, "profiles")
}

// New builds the Profile for protocol and name without touching disk.
func New(configDir, protocol, name string) (Profile, error) {
	id := protocol + "_" + name
	if _, _, err := ParseID(id); err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:       id,
		Protocol: protocol,
		Name:     name,
		Dir:      filepath.Join(Root(configDir), id),
	}, nil
}

// Create builds the Profile and its directory tree.
func Create(configDir, protocol, name string) (Profile, error) {
	p, err := New(configDir, protocol, name)
	if err != nil {
		return Profile{}, err
	}
	if _, err := os.Stat(p.Dir); err == nil {
		return Profile{}, fmt.Errorf("profile %s already exists", p.ID)
	}
	if err := os.MkdirAll(p.DownloadDir(), 0700); err != nil {
		return Profile{}, fmt.Errorf("create profile dir: %w", err)
	}
	return p, nil
}

// List returns every valid profile in configDir sorted by id. Directories
// with unrecognised names are skipped.
func List(configDir string) ([]Profile, error) {
	entries, err := os.ReadDir(Root(configDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var out []Profile
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		proto, name, err := ParseID(e.Name())
		if err != nil {
			continue
		}
		p, _ := New(configDir, proto, name)
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Profile) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// SessionDBPath is the protocol library's own credential store.
func (p Profile) SessionDBPath() string {
	return filepath.Join(p.Dir, "session.db")
}

// DownloadDir is where attachments of this profile are saved.
func (p Profile) DownloadDir() string {
	return filepath.Join(p.Dir, "downloads")
}

// CacheDBPath returns the shared message cache path inside configDir.
func CacheDBPath(configDir string) string {
	return filepath.Join(configDir, "cache.db")
}

package dialog

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matheus3301/mchat/internal/core"
)

// ChatItems lists the visible chats in display order. The profile name is
// shown as detail when more than one profile is registered.
func ChatItems(l *core.Locked) []Item[core.ChatKey] {
	multi := len(l.ProfileIDs()) > 1
	keys := l.Chats()
	items := make([]Item[core.ChatKey], 0, len(keys))
	for _, key := range keys {
		it := Item[core.ChatKey]{
			Key:   key.ProfileID + "\x00" + key.ChatID,
			Label: l.ChatName(key),
			Value: key,
		}
		if multi {
			it.Detail = l.ProfileName(key.ProfileID)
		}
		items = append(items, it)
	}
	return items
}

// ContactItems lists the contacts of a profile, self excluded.
func ContactItems(l *core.Locked, profileID string) []Item[string] {
	contacts := l.Contacts(profileID)
	items := make([]Item[string], 0, len(contacts))
	for _, c := range contacts {
		if c.IsSelf {
			continue
		}
		items = append(items, Item[string]{Key: c.ID, Label: c.DisplayName(), Detail: c.Phone, Value: c.ID})
	}
	return items
}

// ContactSource keeps a contact list in step with the model.
type ContactSource struct {
	ProfileID string
	version   int64
}

// NewContactSource fills list from l and remembers the contacts version.
func NewContactSource(l *core.Locked, profileID string) (*ContactSource, *List[string]) {
	src := &ContactSource{ProfileID: profileID, version: l.ContactsVersion()}
	return src, NewList("Contacts", ContactItems(l, profileID))
}

// Refresh reloads list when the contacts changed since the last call.
func (s *ContactSource) Refresh(l *core.Locked, list *List[string]) bool {
	v := l.ContactsVersion()
	if v == s.version {
		return false
	}
	s.version = v
	list.SetItems(ContactItems(l, s.ProfileID))
	return true
}

// EmojiItems lists the reaction emoji.
func EmojiItems() []Item[string] {
	items := make([]Item[string], len(emojiTable))
	for i, e := range emojiTable {
		items[i] = Item[string]{Key: e.glyph, Label: e.glyph + "  " + e.name, Value: e.glyph}
	}
	return items
}

// FileEntry is one row of the file picker.
type FileEntry struct {
	Path  string
	IsDir bool
}

// FileItems lists dir: the parent first, then directories, then files, each
// group sorted by name. Hidden entries are skipped.
func FileItems(dir string) ([]Item[FileEntry], error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var dirs, files []Item[FileEntry]
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		isDir := e.IsDir()
		if e.Type()&os.ModeSymlink != 0 {
			if fi, err := os.Stat(path); err == nil {
				isDir = fi.IsDir()
			}
		}
		if isDir {
			dirs = append(dirs, Item[FileEntry]{Key: path, Label: name + "/", Value: FileEntry{Path: path, IsDir: true}})
		} else {
			files = append(files, Item[FileEntry]{Key: path, Label: name, Value: FileEntry{Path: path}})
		}
	}
	byLabel := func(a, b Item[FileEntry]) int { return strings.Compare(a.Label, b.Label) }
	slices.SortFunc(dirs, byLabel)
	slices.SortFunc(files, byLabel)

	items := make([]Item[FileEntry], 0, len(dirs)+len(files)+1)
	if parent := filepath.Dir(dir); parent != dir {
		items = append(items, Item[FileEntry]{Key: parent, Label: "../", Value: FileEntry{Path: parent, IsDir: true}})
	}
	items = append(items, dirs...)
	return append(items, files...), nil
}

// FilePicker walks directories until a file is chosen.
type FilePicker struct {
	Dir  string
	List *List[FileEntry]
}

// NewFilePicker opens a picker in dir.
func NewFilePicker(dir string) (*FilePicker, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	items, err := FileItems(abs)
	if err != nil {
		return nil, err
	}
	return &FilePicker{Dir: abs, List: NewList(abs, items)}, nil
}

// Settle handles a Selected list: a directory is entered and the list
// reopened with the filter cleared. It returns the chosen file once a
// regular file was selected.
func (p *FilePicker) Settle() (string, bool, error) {
	entry, ok := p.List.Result()
	if !ok {
		return "", false, nil
	}
	if !entry.IsDir {
		return entry.Path, true, nil
	}
	items, err := FileItems(entry.Path)
	if err != nil {
		p.List.Reopen()
		return "", false, err
	}
	p.Dir = entry.Path
	p.List.Title = entry.Path
	p.List.SetFilter("")
	p.List.SetItems(items)
	p.List.Move(-len(items))
	p.List.Reopen()
	return "", false, nil
}

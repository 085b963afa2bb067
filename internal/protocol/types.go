package protocol

import (
	"slices"
	"strconv"
	"strings"
)

// FileStatus tracks an attachment through upload or download.
type FileStatus int

const (
	FileNone FileStatus = iota
	FileNotDownloaded
	FileDownloading
	FileDownloaded
	FileDownloadFailed
	FileUploading
	FileUploaded
	FileUploadFailed
)

func (s FileStatus) String() string {
	switch s {
	case FileNotDownloaded:
		return "not downloaded"
	case FileDownloading:
		return "downloading"
	case FileDownloaded:
		return "downloaded"
	case FileDownloadFailed:
		return "download failed"
	case FileUploading:
		return "uploading"
	case FileUploaded:
		return "uploaded"
	case FileUploadFailed:
		return "upload failed"
	default:
		return ""
	}
}

// Failed reports whether the transfer ended in an error.
func (s FileStatus) Failed() bool {
	return s == FileDownloadFailed || s == FileUploadFailed
}

// FileInfo describes an attachment.
type FileInfo struct {
	Name     string     `json:"name"`
	MimeType string     `json:"mime_type"`
	Size     int64      `json:"size"`
	Path     string     `json:"path,omitempty"`
	Status   FileStatus `json:"status"`
}

// Reaction is one emoji and how many participants used it.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Reactions summarizes the reactions on a message.
type Reactions struct {
	Counts []Reaction `json:"counts,omitempty"`
	Own    string     `json:"own,omitempty"`
}

// Empty reports whether nobody reacted.
func (r Reactions) Empty() bool { return len(r.Counts) == 0 }

// With returns a copy with sender's reaction replaced by emoji. An empty
// emoji removes the previous reaction.
func (r Reactions) With(previous, emoji string, own bool) Reactions {
	out := Reactions{Counts: slices.Clone(r.Counts), Own: r.Own}
	if previous != "" {
		for i := range out.Counts {
			if out.Counts[i].Emoji == previous {
				out.Counts[i].Count--
			}
		}
	}
	if emoji != "" {
		found := false
		for i := range out.Counts {
			if out.Counts[i].Emoji == emoji {
				out.Counts[i].Count++
				found = true
			}
		}
		if !found {
			out.Counts = append(out.Counts, Reaction{Emoji: emoji, Count: 1})
		}
	}
	out.Counts = slices.DeleteFunc(out.Counts, func(r Reaction) bool { return r.Count <= 0 })
	if own {
		out.Own = emoji
	}
	return out
}

// String renders the summary as "👍2 ❤1".
func (r Reactions) String() string {
	var b strings.Builder
	for i, c := range r.Counts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.Emoji)
		if c.Count > 1 {
			b.WriteString(strconv.Itoa(c.Count))
		}
	}
	return b.String()
}

// ChatMessage is one message as seen by the UI. Values are replaced, never
// mutated in place, when the message is edited, read or reacted to.
type ChatMessage struct {
	ID         string
	SenderID   string
	Timestamp  int64 // unix milliseconds
	Text       string
	QuotedID   string
	File       *FileInfo
	Reactions  Reactions
	IsOutgoing bool
	IsRead     bool
	IsEdited   bool
}

// Before orders messages chronologically with the id as tiebreak.
func (m ChatMessage) Before(o ChatMessage) bool {
	if m.Timestamp != o.Timestamp {
		return m.Timestamp < o.Timestamp
	}
	return m.ID < o.ID
}

// WithFile returns a copy carrying a copy of f.
func (m ChatMessage) WithFile(f FileInfo) ChatMessage {
	m.File = &f
	return m
}

// ChatInfo is per-chat metadata.
type ChatInfo struct {
	ID              string
	Name            string
	IsGroup         bool
	IsUnread        bool
	IsMuted         bool
	IsHidden        bool
	LastMessageTime int64 // unix milliseconds
}

// ContactInfo is per-contact display data.
type ContactInfo struct {
	ID        string
	Name      string
	Phone     string
	Alias     string
	IsStarred bool
	IsSelf    bool
}

// DisplayName picks alias, then name, then phone, then the raw id.
func (c ContactInfo) DisplayName() string {
	switch {
	case c.Alias != "":
		return c.Alias
	case c.Name != "":
		return c.Name
	case c.Phone != "":
		return c.Phone
	default:
		return c.ID
	}
}

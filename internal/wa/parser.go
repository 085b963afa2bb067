package wa

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/matheus3301/mchat/internal/cache"
	"github.com/matheus3301/mchat/internal/protocol"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// MessageKind classifies a message event.
type MessageKind int

const (
	KindIgnore MessageKind = iota
	KindMessage
	KindEdit
	KindRevoke
	KindReaction
)

// ParsedMessage is a normalized message event. For edits, revokes and
// reactions TargetID names the affected message and Text carries the new
// text or the emoji.
type ParsedMessage struct {
	Kind     MessageKind
	ChatID   string
	Record   cache.Record
	TargetID string
	SenderID string
	Text     string
}

// ParseMessage normalizes a live or history message event.
func ParseMessage(evt *events.Message) ParsedMessage {
	p := ParsedMessage{ChatID: evt.Info.Chat.ToNonAD().String()}
	if !evt.Info.IsFromMe {
		p.SenderID = evt.Info.Sender.ToNonAD().String()
	}
	msg := evt.Message
	if msg == nil {
		return p
	}

	if pm := msg.GetProtocolMessage(); pm != nil {
		switch pm.GetType() {
		case waE2E.ProtocolMessage_REVOKE:
			p.Kind = KindRevoke
			p.TargetID = pm.GetKey().GetID()
		case waE2E.ProtocolMessage_MESSAGE_EDIT:
			p.Kind = KindEdit
			p.TargetID = pm.GetKey().GetID()
			p.Text = extractTextBody(pm.GetEditedMessage())
		}
		return p
	}
	if rm := msg.GetReactionMessage(); rm != nil {
		p.Kind = KindReaction
		p.TargetID = rm.GetKey().GetID()
		p.Text = rm.GetText()
		return p
	}

	cm := protocol.ChatMessage{
		ID:         evt.Info.ID,
		SenderID:   p.SenderID,
		Timestamp:  evt.Info.Timestamp.UnixMilli(),
		Text:       extractTextBody(msg),
		QuotedID:   contextInfo(msg).GetStanzaID(),
		File:       fileInfo(evt.Info.ID, msg),
		IsOutgoing: evt.Info.IsFromMe,
	}
	if cm.Text == "" && cm.File == nil {
		typ := detectMessageType(msg)
		if typ == "unknown" {
			return p
		}
		cm.Text = "[" + typ + "]"
	}
	p.Kind = KindMessage
	p.Record = cache.Record{ChatID: p.ChatID, Message: cm}
	if cm.File != nil {
		// Attachments keep the encoded message: its media keys are needed
		// to download later.
		if raw, err := proto.Marshal(msg); err == nil {
			p.Record.Raw = raw
		}
	}
	return p
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}

func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage().GetContextInfo()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetContextInfo()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage().GetContextInfo()
	}
	return nil
}

// media returns the downloadable part of msg, or nil.
func media(msg *waE2E.Message) whatsmeow.DownloadableMessage {
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage()
	}
	return nil
}

type mediaMeta interface {
	GetMimetype() string
	GetFileLength() uint64
}

func fileInfo(msgID string, msg *waE2E.Message) *protocol.FileInfo {
	m, ok := media(msg).(mediaMeta)
	if !ok {
		return nil
	}
	mime := m.GetMimetype()
	name := msg.GetDocumentMessage().GetFileName()
	if name == "" {
		name = detectMessageType(msg) + "-" + msgID + extensionFor(mime)
	}
	return &protocol.FileInfo{
		Name:     name,
		MimeType: mime,
		Size:     int64(m.GetFileLength()),
		Status:   protocol.FileNotDownloaded,
	}
}

func extensionFor(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	if t := mimetype.Lookup(strings.TrimSpace(base)); t != nil {
		return t.Extension()
	}
	return ""
}

// quote identifies the message a reply refers to.
type quote struct {
	ID       string
	SenderID string
	Text     string
}

// textMessage builds an outgoing text, as a reply when q is set.
func textMessage(text string, q *quote) *waE2E.Message {
	if q == nil {
		return &waE2E.Message{Conversation: proto.String(text)}
	}
	ci := &waE2E.ContextInfo{
		StanzaID:      proto.String(q.ID),
		QuotedMessage: &waE2E.Message{Conversation: proto.String(q.Text)},
	}
	if q.SenderID != "" {
		ci.Participant = proto.String(q.SenderID)
	}
	return &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
		Text:        proto.String(text),
		ContextInfo: ci,
	}}
}

// mediaType picks the upload class for a MIME type.
func mediaType(mime string) whatsmeow.MediaType {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return whatsmeow.MediaImage
	case strings.HasPrefix(mime, "video/"):
		return whatsmeow.MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

// mediaMessage builds the message announcing an uploaded file.
func mediaMessage(up whatsmeow.UploadResponse, mime, name, caption string) *waE2E.Message {
	var c *string
	if caption != "" {
		c = proto.String(caption)
	}
	switch mediaType(mime) {
	case whatsmeow.MediaImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL: proto.String(up.URL), DirectPath: proto.String(up.DirectPath),
			Mimetype: proto.String(mime), Caption: c,
			MediaKey: up.MediaKey, FileSHA256: up.FileSHA256, FileEncSHA256: up.FileEncSHA256,
			FileLength: proto.Uint64(up.FileLength),
		}}
	case whatsmeow.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			URL: proto.String(up.URL), DirectPath: proto.String(up.DirectPath),
			Mimetype: proto.String(mime), Caption: c,
			MediaKey: up.MediaKey, FileSHA256: up.FileSHA256, FileEncSHA256: up.FileEncSHA256,
			FileLength: proto.Uint64(up.FileLength),
		}}
	case whatsmeow.MediaAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			URL: proto.String(up.URL), DirectPath: proto.String(up.DirectPath),
			Mimetype: proto.String(mime),
			MediaKey: up.MediaKey, FileSHA256: up.FileSHA256, FileEncSHA256: up.FileEncSHA256,
			FileLength: proto.Uint64(up.FileLength),
		}}
	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL: proto.String(up.URL), DirectPath: proto.String(up.DirectPath),
			Mimetype: proto.String(mime), FileName: proto.String(name), Title: proto.String(name),
			Caption:  c,
			MediaKey: up.MediaKey, FileSHA256: up.FileSHA256, FileEncSHA256: up.FileEncSHA256,
			FileLength: proto.Uint64(up.FileLength),
		}}
	}
}

// decodeRaw restores a message stored with ParseMessage.
func decodeRaw(raw []byte) (*waE2E.Message, error) {
	var msg waE2E.Message
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

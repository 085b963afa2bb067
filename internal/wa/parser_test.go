package wa

import (
	"testing"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestExtractTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil message", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, "extended"},
		{"image caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look")}}, "look"},
		{"image (no text)", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
		{"empty conversation", &waE2E.Message{Conversation: proto.String("")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTextBody(tt.msg)
			if got != tt.want {
				t.Errorf("extractTextBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectMessageType(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, "unknown"},
		{"text conversation", &waE2E.Message{Conversation: proto.String("hi")}, "text"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("hi")}}, "text"},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, "image"},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, "video"},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, "audio"},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}, "document"},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, "sticker"},
		{"contact", &waE2E.Message{ContactMessage: &waE2E.ContactMessage{}}, "contact"},
		{"location", &waE2E.Message{LocationMessage: &waE2E.LocationMessage{}}, "location"},
		{"empty message", &waE2E.Message{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectMessageType(tt.msg)
			if got != tt.want {
				t.Errorf("detectMessageType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func messageEvent(id string, fromMe bool, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			ID:        id,
			PushName:  "Alice",
			Timestamp: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
			MessageSource: types.MessageSource{
				Chat:     types.JID{User: "chat", Server: types.DefaultUserServer},
				Sender:   types.JID{User: "sender", Server: types.DefaultUserServer, Device: 3},
				IsFromMe: fromMe,
			},
		},
		Message: msg,
	}
}

func TestParseMessageText(t *testing.T) {
	evt := messageEvent("MSG123", false, &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
		Text:        proto.String("hello world"),
		ContextInfo: &waE2E.ContextInfo{StanzaID: proto.String("Q1")},
	}})

	p := ParseMessage(evt)
	if p.Kind != KindMessage {
		t.Fatalf("Kind = %v, want KindMessage", p.Kind)
	}
	m := p.Record.Message
	if p.ChatID != "chat@s.whatsapp.net" || p.Record.ChatID != p.ChatID {
		t.Errorf("ChatID = %q", p.ChatID)
	}
	if m.ID != "MSG123" || m.Text != "hello world" || m.QuotedID != "Q1" {
		t.Errorf("message = %+v", m)
	}
	if m.SenderID != "sender@s.whatsapp.net" {
		t.Errorf("SenderID = %q, want device suffix stripped", m.SenderID)
	}
	if m.Timestamp != time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("Timestamp = %d", m.Timestamp)
	}
	if m.IsOutgoing || m.File != nil || p.Record.Raw != nil {
		t.Errorf("unexpected outgoing/file/raw: %+v", p.Record)
	}
}

func TestParseMessageOutgoingHasNoSender(t *testing.T) {
	p := ParseMessage(messageEvent("M", true, &waE2E.Message{Conversation: proto.String("hi")}))
	if !p.Record.Message.IsOutgoing || p.Record.Message.SenderID != "" {
		t.Errorf("message = %+v", p.Record.Message)
	}
}

func TestParseMessageAttachment(t *testing.T) {
	msg := &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Mimetype:   proto.String("image/jpeg"),
		FileLength: proto.Uint64(2048),
		MediaKey:   []byte{1, 2, 3},
	}}
	p := ParseMessage(messageEvent("IMG1", false, msg))
	f := p.Record.Message.File
	if f == nil {
		t.Fatal("File = nil")
	}
	if f.Name != "image-IMG1.jpg" || f.MimeType != "image/jpeg" || f.Size != 2048 || f.Status != protocol.FileNotDownloaded {
		t.Errorf("file = %+v", f)
	}
	decoded, err := decodeRaw(p.Record.Raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded.GetImageMessage().GetMediaKey()) != string([]byte{1, 2, 3}) {
		t.Error("raw message lost the media key")
	}
	if media(decoded) == nil {
		t.Error("decoded raw message has no downloadable media")
	}
}

func TestParseMessageDocumentKeepsFileName(t *testing.T) {
	msg := &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
		Mimetype: proto.String("application/pdf"),
		FileName: proto.String("report.pdf"),
	}}
	p := ParseMessage(messageEvent("D1", false, msg))
	if p.Record.Message.File == nil || p.Record.Message.File.Name != "report.pdf" {
		t.Errorf("file = %+v", p.Record.Message.File)
	}
}

func TestParseMessagePlaceholder(t *testing.T) {
	p := ParseMessage(messageEvent("L1", false, &waE2E.Message{LocationMessage: &waE2E.LocationMessage{}}))
	if p.Kind != KindMessage || p.Record.Message.Text != "[location]" {
		t.Errorf("parsed = %+v", p)
	}
	if p := ParseMessage(messageEvent("X", false, &waE2E.Message{})); p.Kind != KindIgnore {
		t.Errorf("empty message Kind = %v, want KindIgnore", p.Kind)
	}
}

func TestParseMessageProtocolKinds(t *testing.T) {
	key := &waCommon.MessageKey{ID: proto.String("TARGET")}
	tests := []struct {
		name     string
		msg      *waE2E.Message
		kind     MessageKind
		wantText string
	}{
		{
			"revoke",
			&waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{Type: waE2E.ProtocolMessage_REVOKE.Enum(), Key: key}},
			KindRevoke, "",
		},
		{
			"edit",
			&waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
				Type: waE2E.ProtocolMessage_MESSAGE_EDIT.Enum(), Key: key,
				EditedMessage: &waE2E.Message{Conversation: proto.String("fixed")},
			}},
			KindEdit, "fixed",
		},
		{
			"reaction",
			&waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{Key: key, Text: proto.String("👍")}},
			KindReaction, "👍",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseMessage(messageEvent("P", false, tt.msg))
			if p.Kind != tt.kind || p.TargetID != "TARGET" || p.Text != tt.wantText {
				t.Errorf("parsed = %+v", p)
			}
		})
	}
}

func TestTextMessageReply(t *testing.T) {
	plain := textMessage("hi", nil)
	if plain.GetConversation() != "hi" {
		t.Errorf("plain = %v", plain)
	}
	reply := textMessage("yes", &quote{ID: "Q", SenderID: "a@s.whatsapp.net", Text: "really?"})
	ext := reply.GetExtendedTextMessage()
	if ext.GetText() != "yes" || ext.GetContextInfo().GetStanzaID() != "Q" || ext.GetContextInfo().GetParticipant() != "a@s.whatsapp.net" {
		t.Errorf("reply = %v", reply)
	}
	if ext.GetContextInfo().GetQuotedMessage().GetConversation() != "really?" {
		t.Error("reply lost the quoted text")
	}
}

func TestMediaMessage(t *testing.T) {
	up := whatsmeow.UploadResponse{URL: "https://mmg", DirectPath: "/d", MediaKey: []byte{9}, FileLength: 10}
	tests := []struct {
		mime string
		kind whatsmeow.MediaType
	}{
		{"image/png", whatsmeow.MediaImage},
		{"video/mp4", whatsmeow.MediaVideo},
		{"audio/ogg", whatsmeow.MediaAudio},
		{"application/zip", whatsmeow.MediaDocument},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := mediaType(tt.mime); got != tt.kind {
				t.Errorf("mediaType(%q) = %v, want %v", tt.mime, got, tt.kind)
			}
			msg := mediaMessage(up, tt.mime, "f.bin", "")
			if media(msg) == nil {
				t.Errorf("mediaMessage(%q) has no media part", tt.mime)
			}
		})
	}
	doc := mediaMessage(up, "application/zip", "a.zip", "caption")
	if doc.GetDocumentMessage().GetFileName() != "a.zip" || doc.GetDocumentMessage().GetCaption() != "caption" {
		t.Errorf("document = %v", doc)
	}
}

func TestAuthEvent(t *testing.T) {
	tests := []struct {
		event    string
		wantType AuthEventType
		wantDone bool
	}{
		{"code", AuthEventQRCode, false},
		{"success", AuthEventAuthenticated, true},
		{"timeout", AuthEventTimeout, true},
		{"err-client-outdated", AuthEventAuthFailed, true},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			evt, done := authEvent(tt.event, "QR", nil)
			if evt.Type != tt.wantType || done != tt.wantDone {
				t.Errorf("authEvent(%q) = %+v, %v", tt.event, evt, done)
			}
		})
	}
}

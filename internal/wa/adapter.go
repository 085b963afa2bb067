package wa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// ErrLoggedIn is returned when pairing a device that already has credentials.
var ErrLoggedIn = errors.New("already logged in")

// conn is the part of the WhatsApp connection the client drives. Device is
// the only production implementation.
type conn interface {
	IsLoggedIn() bool
	SelfID() string
	Connect() error
	Disconnect()
	AddEventHandler(h func(any))

	Send(ctx context.Context, chatID string, msg *waE2E.Message) (id string, ts time.Time, err error)
	Edit(ctx context.Context, chatID, msgID, text string) (time.Time, error)
	Revoke(ctx context.Context, chatID, senderID, msgID string) error
	React(ctx context.Context, chatID, senderID, msgID, emoji string) error
	Upload(ctx context.Context, data []byte, kind whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
	SetTyping(ctx context.Context, chatID string, typing bool) error
	MarkRead(ctx context.Context, chatID, senderID string, ids []string) error
	SubscribePresence(ctx context.Context, userID string) error
	Contacts(ctx context.Context) ([]protocol.ContactInfo, error)
	ParseWebMessage(chatID string, m *waWeb.WebMessageInfo) (*events.Message, error)
}

// Device wraps the whatsmeow client and its credential store for one profile.
type Device struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
}

// OpenDevice opens the session database at dbPath and creates a client for
// its first device, or a fresh one ready for pairing.
func OpenDevice(ctx context.Context, dbPath string, logger *zap.Logger) (*Device, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("mchat", [3]uint32{0, 1, 0})

	wl := newLog(logger)
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		wl.Sub("store"),
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Device{
		client:    whatsmeow.NewClient(deviceStore, wl.Sub("client")),
		container: container,
		logger:    logger,
	}, nil
}

// Close releases the session database.
func (d *Device) Close() error {
	return d.container.Close()
}

// IsLoggedIn returns whether the device has valid credentials.
func (d *Device) IsLoggedIn() bool {
	return d.client.Store.ID != nil
}

// SelfID returns the account's own user id, or "" before pairing.
func (d *Device) SelfID() string {
	if d.client.Store.ID == nil {
		return ""
	}
	return d.client.Store.ID.ToNonAD().String()
}

// PhoneNumber returns the phone number from the device store, or "".
func (d *Device) PhoneNumber() string {
	if d.client.Store.ID == nil {
		return ""
	}
	return d.client.Store.ID.User
}

func (d *Device) Connect() error {
	d.logger.Info("connecting to WhatsApp")
	return d.client.Connect()
}

func (d *Device) Disconnect() {
	d.logger.Info("disconnecting from WhatsApp")
	d.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (d *Device) Logout(ctx context.Context) error {
	return d.client.Logout(ctx)
}

func (d *Device) AddEventHandler(h func(any)) {
	d.client.AddEventHandler(h)
}

func parseJID(id string) (types.JID, error) {
	jid, err := types.ParseJID(id)
	if err != nil {
		return types.EmptyJID, fmt.Errorf("parse JID %q: %w", id, err)
	}
	return jid, nil
}

// senderJID parses a message sender. Own messages carry no sender and map to
// the empty JID, which whatsmeow reads as "from me".
func senderJID(id string) (types.JID, error) {
	if id == "" {
		return types.EmptyJID, nil
	}
	return parseJID(id)
}

func (d *Device) Send(ctx context.Context, chatID string, msg *waE2E.Message) (string, time.Time, error) {
	to, err := parseJID(chatID)
	if err != nil {
		return "", time.Time{}, err
	}
	resp, err := d.client.SendMessage(ctx, to, msg)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("send message: %w", err)
	}
	return string(resp.ID), resp.Timestamp, nil
}

func (d *Device) Edit(ctx context.Context, chatID, msgID, text string) (time.Time, error) {
	chat, err := parseJID(chatID)
	if err != nil {
		return time.Time{}, err
	}
	edit := d.client.BuildEdit(chat, types.MessageID(msgID), textMessage(text, nil))
	resp, err := d.client.SendMessage(ctx, chat, edit)
	if err != nil {
		return time.Time{}, fmt.Errorf("send edit: %w", err)
	}
	return resp.Timestamp, nil
}

func (d *Device) Revoke(ctx context.Context, chatID, senderID, msgID string) error {
	chat, err := parseJID(chatID)
	if err != nil {
		return err
	}
	sender, err := senderJID(senderID)
	if err != nil {
		return err
	}
	if _, err := d.client.SendMessage(ctx, chat, d.client.BuildRevoke(chat, sender, types.MessageID(msgID))); err != nil {
		return fmt.Errorf("send revoke: %w", err)
	}
	return nil
}

func (d *Device) React(ctx context.Context, chatID, senderID, msgID, emoji string) error {
	chat, err := parseJID(chatID)
	if err != nil {
		return err
	}
	sender, err := senderJID(senderID)
	if err != nil {
		return err
	}
	if _, err := d.client.SendMessage(ctx, chat, d.client.BuildReaction(chat, sender, types.MessageID(msgID), emoji)); err != nil {
		return fmt.Errorf("send reaction: %w", err)
	}
	return nil
}

func (d *Device) Upload(ctx context.Context, data []byte, kind whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	return d.client.Upload(ctx, data, kind)
}

func (d *Device) Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error) {
	return d.client.Download(ctx, msg)
}

func (d *Device) SetTyping(ctx context.Context, chatID string, typing bool) error {
	chat, err := parseJID(chatID)
	if err != nil {
		return err
	}
	state := types.ChatPresencePaused
	if typing {
		state = types.ChatPresenceComposing
	}
	return d.client.SendChatPresence(ctx, chat, state, types.ChatPresenceMediaText)
}

func (d *Device) MarkRead(ctx context.Context, chatID, senderID string, ids []string) error {
	chat, err := parseJID(chatID)
	if err != nil {
		return err
	}
	sender := chat
	if senderID != "" {
		if sender, err = parseJID(senderID); err != nil {
			return err
		}
	}
	msgIDs := make([]types.MessageID, len(ids))
	for i, id := range ids {
		msgIDs[i] = types.MessageID(id)
	}
	return d.client.MarkRead(ctx, msgIDs, time.Now(), chat, sender, types.ReceiptTypeRead)
}

func (d *Device) SubscribePresence(ctx context.Context, userID string) error {
	jid, err := parseJID(userID)
	if err != nil {
		return err
	}
	return d.client.SubscribePresence(ctx, jid)
}

// Contacts returns the address book from the device store, with LID
// entries resolved to phone numbers where a mapping exists.
func (d *Device) Contacts(ctx context.Context) ([]protocol.ContactInfo, error) {
	all, err := d.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get contacts: %w", err)
	}
	self := d.SelfID()
	contacts := make([]protocol.ContactInfo, 0, len(all))
	for jid, info := range all {
		jid = d.ResolveLID(ctx, jid.ToNonAD())
		name := info.FullName
		if name == "" {
			name = info.PushName
		}
		if name == "" {
			name = info.BusinessName
		}
		id := jid.String()
		contacts = append(contacts, protocol.ContactInfo{
			ID:     id,
			Name:   name,
			Phone:  "+" + jid.User,
			IsSelf: id == self,
		})
	}
	return contacts, nil
}

// ResolveLID resolves a LID JID to its phone number JID using the device
// store mapping. Returns the original JID if it is not a LID or if
// resolution fails.
func (d *Device) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if d.client.Store == nil || d.client.Store.LIDs == nil {
		return jid
	}
	pn, err := d.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

func (d *Device) ParseWebMessage(chatID string, m *waWeb.WebMessageInfo) (*events.Message, error) {
	chat, err := parseJID(chatID)
	if err != nil {
		return nil, err
	}
	return d.client.ParseWebMessage(chat, m)
}

// GetQRChannel returns the QR channel for pairing. Must be called before Connect.
func (d *Device) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if d.IsLoggedIn() {
		return nil, ErrLoggedIn
	}
	ch, err := d.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

package wa

import (
	"context"
)

// AuthEventType enumerates pairing event types.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents a pairing lifecycle event.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// StartQRAuth begins QR pairing. The caller reads the returned channel
// until it closes; every code must be shown to the user for scanning.
func (d *Device) StartQRAuth(ctx context.Context) (<-chan AuthEvent, error) {
	qrChan, err := d.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)
	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := d.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}
			return
		}
		for item := range qrChan {
			evt, done := authEvent(item.Event, item.Code, item.Error)
			if evt.Type == "" {
				continue
			}
			out <- evt
			if done {
				return
			}
		}
	}()
	return out, nil
}

// authEvent maps one QR channel item. done reports whether pairing ended.
func authEvent(event, code string, err error) (evt AuthEvent, done bool) {
	switch event {
	case "code":
		return AuthEvent{Type: AuthEventQRCode, QRCode: code}, false
	case "success":
		return AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}, true
	case "timeout":
		return AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"}, true
	}
	if err != nil {
		return AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}, true
	}
	if event != "" {
		return AuthEvent{Type: AuthEventAuthFailed, Message: event}, true
	}
	return AuthEvent{}, false
}

// Package setup creates profiles interactively and pairs WhatsApp devices.
package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/matheus3301/mchat/internal/config"
	"github.com/matheus3301/mchat/internal/lock"
	"github.com/matheus3301/mchat/internal/profile"
	"github.com/matheus3301/mchat/internal/wa"
	"go.uber.org/zap"
)

// PairFunc links a profile to its account. show is called with every QR
// code that must be scanned.
type PairFunc func(ctx context.Context, p profile.Profile, show func(code string)) error

// Wizard asks for a protocol and a name, creates the profile and pairs it.
type Wizard struct {
	ConfigDir string
	In        io.Reader
	Out       io.Writer
	Logger    *zap.Logger
	// Pair defaults to WhatsApp QR pairing.
	Pair PairFunc

	in *bufio.Reader
}

// Run walks through one profile. It holds the config directory lock so a
// running client cannot use the profile while it is paired.
func (w *Wizard) Run(ctx context.Context) (profile.Profile, error) {
	lk, err := lock.Acquire(w.ConfigDir)
	if err != nil {
		return profile.Profile{}, err
	}
	defer func() {
		if err := lk.Release(); err != nil {
			w.Logger.Warn("error releasing lock", zap.Error(err))
		}
	}()

	w.in = bufio.NewReader(w.In)
	if err := w.writeDefaultConfig(); err != nil {
		return profile.Profile{}, err
	}

	proto, err := w.ask(fmt.Sprintf("Protocol (%s)", strings.Join(profile.Protocols, "/")), profile.WhatsApp, func(s string) error {
		if !slices.Contains(profile.Protocols, s) {
			return fmt.Errorf("unknown protocol %q", s)
		}
		return nil
	})
	if err != nil {
		return profile.Profile{}, err
	}
	name, err := w.ask("Profile name", "main", profile.ValidateName)
	if err != nil {
		return profile.Profile{}, err
	}

	p, err := profile.New(w.ConfigDir, proto, name)
	if err != nil {
		return profile.Profile{}, err
	}
	if _, statErr := os.Stat(p.Dir); statErr == nil {
		if proto != profile.WhatsApp {
			return profile.Profile{}, fmt.Errorf("profile %s already exists", p.ID)
		}
		w.printf("Profile %s exists, pairing it again.\n", p.ID)
	} else if p, err = profile.Create(w.ConfigDir, proto, name); err != nil {
		return profile.Profile{}, err
	}
	w.Logger.Info("profile ready", zap.String("profile", p.ID))

	if proto == profile.WhatsApp {
		if err := w.pair(ctx, p); err != nil {
			return profile.Profile{}, err
		}
	}
	w.printf("Profile %s is set up. Start mchat to use it.\n", p.ID)
	return p, nil
}

func (w *Wizard) writeDefaultConfig() error {
	path := config.Path(w.ConfigDir)
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := config.Save(path, config.Default()); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	w.printf("Wrote default configuration to %s\n", path)
	return nil
}

func (w *Wizard) pair(ctx context.Context, p profile.Profile) error {
	pair := w.Pair
	if pair == nil {
		pair = func(ctx context.Context, p profile.Profile, show func(string)) error {
			return PairWhatsApp(ctx, p, w.Logger, show)
		}
	}
	w.printf("Open WhatsApp on your phone, go to Linked devices and scan the code.\n")
	err := pair(ctx, p, func(code string) {
		art, err := RenderQR(code)
		if err != nil {
			w.Logger.Warn("qr render failed", zap.Error(err))
			w.printf("Pairing code: %s\n", code)
			return
		}
		w.printf("\n%s\nWaiting for the phone...\n", art)
	})
	if err != nil {
		return fmt.Errorf("pair %s: %w", p.ID, err)
	}
	w.printf("Paired.\n")
	return nil
}

// ask prompts until valid accepts the answer. An empty answer picks def.
func (w *Wizard) ask(question, def string, valid func(string) error) (string, error) {
	for {
		w.printf("%s [%s]: ", question, def)
		line, err := w.in.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return "", fmt.Errorf("read answer: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "" {
			answer = def
		}
		if verr := valid(answer); verr != nil {
			w.printf("%v\n", verr)
			if err != nil {
				return "", verr
			}
			continue
		}
		return answer, nil
	}
}

func (w *Wizard) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.Out, format, args...)
}

// PairWhatsApp opens the profile's session store and runs QR pairing until
// the phone confirms. Already paired devices return at once.
func PairWhatsApp(ctx context.Context, p profile.Profile, logger *zap.Logger, show func(code string)) error {
	dev, err := wa.OpenDevice(ctx, p.SessionDBPath(), logger.Named("whatsmeow"))
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()
	if dev.IsLoggedIn() {
		logger.Info("device already paired", zap.String("profile", p.ID))
		return nil
	}

	events, err := dev.StartQRAuth(ctx)
	if err != nil {
		return fmt.Errorf("start qr auth: %w", err)
	}
	defer dev.Disconnect()
	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			show(evt.QRCode)
		case wa.AuthEventAuthenticated:
			logger.Info("device paired", zap.String("profile", p.ID), zap.String("phone", dev.PhoneNumber()))
			return nil
		case wa.AuthEventTimeout, wa.AuthEventAuthFailed:
			return errors.New(evt.Message)
		}
	}
	return errors.New("pairing ended without confirmation")
}

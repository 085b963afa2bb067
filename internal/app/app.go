// Package app composes the client: config, logging, the single-instance
// lock, the message cache, the protocols of every profile, the chat model
// and the terminal UI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/cache"
	"github.com/matheus3301/mchat/internal/config"
	"github.com/matheus3301/mchat/internal/core"
	"github.com/matheus3301/mchat/internal/keys"
	"github.com/matheus3301/mchat/internal/lock"
	"github.com/matheus3301/mchat/internal/logging"
	"github.com/matheus3301/mchat/internal/notify"
	"github.com/matheus3301/mchat/internal/profile"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/protocol/loopback"
	"github.com/matheus3301/mchat/internal/store"
	"github.com/matheus3301/mchat/internal/tui"
	"github.com/matheus3301/mchat/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// DemoProfileID is the in-memory profile used with Params.Demo.
const DemoProfileID = "loopback_demo"

// ErrNoProfiles is returned when the config directory has no usable profile.
var ErrNoProfiles = errors.New("no profiles configured, run mchat --setup")

// Params holds the resolved startup options passed to the fx module.
type Params struct {
	ConfigDir string
	// Demo runs a single in-memory loopback profile instead of the
	// configured ones.
	Demo bool
	// Screen is an optional override for testing; nil = the terminal.
	Screen tcell.Screen
}

// Options returns the module plus an fx event logger writing to the app log.
func Options(p Params) fx.Option {
	return fx.Options(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		Module(p),
	)
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("mchat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideLock,
			provideStore,
			provideCache,
			bus.New,
			provideKeys,
			provideProfiles,
			provideModel,
			provideScreen,
			provideUI,
			provideNotifier,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	return config.Load(config.Path(p.ConfigDir))
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Path(p.ConfigDir), cfg.Log.Level, false)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring config directory lock", zap.String("dir", p.ConfigDir))
	l, err := lock.Acquire(p.ConfigDir)
	if err != nil {
		return nil, err
	}
	logger.Info("config directory lock acquired")
	return l, nil
}

// provideStore takes the lock as a parameter so the cache is never opened
// by a second instance.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CacheDBPath(p.ConfigDir)
	db, result, err := store.OpenMigrated(dbPath)
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCache(db *store.DB, logger *zap.Logger) *cache.Engine {
	return cache.NewEngine(db, logger.Named("cache"))
}

func provideKeys(cfg *config.Config, logger *zap.Logger) *keys.Map {
	return keys.Resolve(cfg.Keys, logger.Named("keys"))
}

// profiles are the protocols built for the configured accounts plus the
// WhatsApp devices that must be closed at exit.
type profiles struct {
	protocols []protocol.Protocol
	devices   []*wa.Device
}

func (ps *profiles) close(logger *zap.Logger) {
	for _, d := range ps.devices {
		if err := d.Close(); err != nil {
			logger.Warn("closing session store", zap.Error(err))
		}
	}
}

func provideProfiles(p Params, db *store.DB, engine *cache.Engine, logger *zap.Logger) (*profiles, error) {
	if p.Demo {
		return &profiles{protocols: []protocol.Protocol{
			loopback.New(DemoProfileID, "Demo", logger.Named("loopback")),
		}}, nil
	}

	list, err := profile.List(p.ConfigDir)
	if err != nil {
		return nil, err
	}
	ps := &profiles{}
	for _, prof := range list {
		plog := logger.With(zap.String("profile", prof.ID))
		switch prof.Protocol {
		case profile.WhatsApp:
			dev, err := wa.OpenDevice(context.Background(), prof.SessionDBPath(), plog.Named("whatsmeow"))
			if err != nil {
				plog.Error("open whatsapp session failed, profile skipped", zap.Error(err))
				continue
			}
			c := wa.New(prof.ID, prof.Name, dev, engine, db, plog.Named("wa"))
			c.SetDownloadDir(prof.DownloadDir())
			ps.protocols = append(ps.protocols, c)
			ps.devices = append(ps.devices, dev)
		case profile.Loopback:
			ps.protocols = append(ps.protocols, loopback.New(prof.ID, prof.Name, plog.Named("loopback")))
		}
	}
	if len(ps.protocols) == 0 {
		ps.close(logger)
		return nil, ErrNoProfiles
	}
	logger.Info("profiles loaded", zap.Int("count", len(ps.protocols)))
	return ps, nil
}

func provideModel(cfg *config.Config, km *keys.Map, engine *cache.Engine, b *bus.Bus, ps *profiles, logger *zap.Logger) *core.Model {
	var ms core.MessageStore
	if cfg.Cache.Enabled {
		ms = engine
	}
	m := core.New(core.Options{
		Config: cfg,
		Keys:   km,
		Store:  ms,
		Bus:    b,
		Logger: logger.Named("core"),
	})
	for _, proto := range ps.protocols {
		m.AddProtocol(proto)
	}
	return m
}

func provideScreen(p Params) (tcell.Screen, error) {
	if p.Screen != nil {
		return p.Screen, nil
	}
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	return s, nil
}

func provideUI(screen tcell.Screen, m *core.Model, logger *zap.Logger) *tui.UI {
	return tui.New(screen, m, logger.Named("tui"))
}

func provideNotifier(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *notify.Notifier {
	return notify.New(cfg.Notify, b, logger.Named("notify"))
}

func registerLifecycle(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	lk *lock.Lock,
	db *store.DB,
	engine *cache.Engine,
	ps *profiles,
	m *core.Model,
	ui *tui.UI,
	screen tcell.Screen,
	notifier *notify.Notifier,
	logger *zap.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	uiDone := make(chan struct{})
	notifyDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The engine must run before protocols ask it for history.
			engine.Start(ctx)

			notifier.SetTerminal(ui)
			go func() {
				defer close(notifyDone)
				notifier.Run(ctx)
			}()

			m.Start()

			go func() {
				defer close(uiDone)
				if err := ui.Run(ctx); err != nil {
					logger.Error("ui error", zap.Error(err))
				}
				if err := sd.Shutdown(); err != nil {
					logger.Warn("shutdown request failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			<-uiDone
			<-notifyDone
			m.Shutdown()
			engine.Stop()
			ps.close(logger)
			screen.Fini()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("mchat stopped")
			return nil
		},
	})
}

// Package tui draws the chat model on a tcell screen and runs the modal
// dialogs. Regions are redrawn only when the model marks them dirty.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/core"
	"github.com/matheus3301/mchat/internal/keys"
	"go.uber.org/zap"
)

// pollInterval bounds how long the loop waits for input before advancing
// the model's timers.
const pollInterval = 50 * time.Millisecond

// UI owns the screen while the client runs.
type UI struct {
	screen  tcell.Screen
	model   *core.Model
	surface *Surface
	theme   *Theme
	views   *views
	logger  *zap.Logger

	events chan tcell.Event
	quit   chan struct{}
	ctx    context.Context

	// overlay draws the open dialog on top of the regions.
	overlay      func()
	overlayDirty bool
}

// New attaches a UI to model. The screen must already be initialised.
func New(screen tcell.Screen, model *core.Model, logger *zap.Logger) *UI {
	theme := DefaultTheme()
	u := &UI{
		screen:  screen,
		model:   model,
		surface: NewSurface(),
		theme:   theme,
		views:   newViews(theme, model.Config().UI.TimeFormat),
		logger:  logger,
		events:  make(chan tcell.Event, 64),
		quit:    make(chan struct{}),
		ctx:     context.Background(),
	}
	screen.SetStyle(tcell.StyleDefault.Background(theme.BgColor).Foreground(theme.FgColor))
	model.SetSurface(u.surface)
	model.SetPrompter(u)
	return u
}

// Beep rings the terminal bell.
func (u *UI) Beep() error { return u.screen.Beep() }

// SetTitle sets the terminal window title.
func (u *UI) SetTitle(title string) { u.screen.SetTitle(title) }

// Run processes input and redraws until the user quits or ctx is done.
func (u *UI) Run(ctx context.Context) error {
	u.ctx = ctx
	u.screen.EnableFocus()
	go u.poll()
	defer close(u.quit)

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()
	for {
		if !u.model.Process() || !u.model.Running() {
			u.logger.Info("ui loop finished")
			return nil
		}
		u.draw()

		timer.Reset(pollInterval)
		select {
		case <-ctx.Done():
			return nil
		case ev := <-u.events:
			u.handle(ev)
		case <-u.surface.Wake():
		case <-timer.C:
		}
	}
}

func (u *UI) poll() {
	for {
		ev := u.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case u.events <- ev:
		case <-u.quit:
			return
		}
	}
}

func (u *UI) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		u.model.KeyHandler(keys.FromEvent(ev))
	case *tcell.EventResize:
		u.screen.Sync()
		u.surface.SetDirty(core.RegionAll)
	case *tcell.EventFocus:
		u.model.SetTerminalActive(ev.Focused)
	}
}

// draw redraws the dirty regions and the open dialog.
func (u *UI) draw() {
	dirty := u.surface.Take()
	if dirty == 0 && !u.overlayDirty {
		return
	}
	if dirty != 0 {
		w, h := u.screen.Size()
		if dirty == core.RegionAll {
			u.screen.Clear()
		}
		u.model.WithLock(func(l *core.Locked) {
			lay := computeLayout(w, h, l.TopVisible(), l.ListVisible(), l.HelpVisible(), l.ListWidth())
			u.views.drawRegions(u.screen, l, u.model.Keys(), lay, dirty)
		})
	}
	if u.overlay != nil {
		u.overlay()
	}
	u.overlayDirty = false
	u.screen.Show()
}

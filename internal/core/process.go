package core

import "time"

var flashDurations = map[FlashLevel]time.Duration{
	FlashInfo:  5 * time.Second,
	FlashWarn:  8 * time.Second,
	FlashError: 10 * time.Second,
}

// Process advances timers and issues lazy history fetches. It never blocks
// and reports whether the UI should keep running.
func (m *Model) Process() bool {
	if m.stopping.Load() {
		return false
	}
	l := m.Lock()
	defer l.Unlock()
	s := l.st()
	now := m.now()

	if s.flash.Text != "" && !now.Before(s.flashUntil) {
		s.flash = Flash{}
		l.dirty |= RegionStatus
	}

	idle := time.Duration(m.cfg.UI.TypingTimeoutSec) * time.Second
	for key, c := range s.chats {
		if c.localTyping && idle > 0 && now.Sub(c.lastInput) >= idle {
			l.stopTyping(c)
		}
		for user, until := range c.typing {
			if now.After(until) {
				delete(c.typing, user)
				l.dirty |= RegionList
				l.dirtyIfCurrent(key, RegionStatus)
			}
		}
	}

	if every := time.Duration(m.cfg.UI.StatusRefreshSec) * time.Second; every > 0 && now.Sub(s.lastStatusRefresh) >= every {
		s.lastStatusRefresh = now
		l.dirty |= RegionStatus | RegionTop
	}

	l.fillWindow()
	return s.running
}

// fillWindow requests older messages while the current window is shorter
// than the view and more history may exist. One request per chat is in
// flight at a time.
func (l *Locked) fillWindow() {
	s := l.st()
	c := s.currentChat()
	if c == nil || c.fetching || c.complete || len(c.cursor) == 0 || l.m.now().Before(c.retryAt) {
		return
	}
	win := c.window(s.viewHeight)
	if len(win) >= s.viewHeight {
		return
	}
	if len(c.ids) == 0 {
		l.fetch(c, "")
		return
	}
	if len(win) > 0 && win[0] != c.ids[0] {
		return
	}
	l.fetch(c, c.ids[0])
}

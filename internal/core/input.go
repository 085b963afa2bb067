package core

import (
	"slices"
	"strings"
	"unicode"

	"github.com/matheus3301/mchat/internal/keys"
	"github.com/matheus3301/mchat/internal/protocol"
	"golang.org/x/text/cases"
)

const (
	minListWidth = 10
	maxListWidth = 80
)

// KeyHandler runs the action bound to k. Unbound printable keys are typed
// into the current draft.
func (m *Model) KeyHandler(k keys.Key) {
	if m.stopping.Load() {
		return
	}
	action, ok := m.keys.Action(k)
	if !ok {
		if k.Printable() {
			m.WithLock(func(l *Locked) { l.insert([]rune{k.Rune}) })
		}
		return
	}
	m.RunAction(action)
}

// RunAction runs a named action as if its key had been pressed.
func (m *Model) RunAction(action string) {
	if fn, ok := promptActions[action]; ok {
		fn(m)
		return
	}
	m.WithLock(func(l *Locked) { l.runAction(action) })
}

func (l *Locked) runAction(action string) {
	s := l.st()
	c := s.currentChat()

	switch action {
	case keys.Quit:
		s.running = false
	case keys.Cancel:
		l.cancel()
	case keys.NextChat:
		l.stepChat(1)
	case keys.PrevChat:
		l.stepChat(-1)
	case keys.UnreadChat:
		l.nextUnread()
	case keys.PrevPage:
		l.pageBack()
	case keys.NextPage:
		l.pageForward()
	case keys.Up:
		l.selectOlder()
	case keys.Down:
		l.selectNewer()
	case keys.ToggleEmoji:
		s.showEmoji = !s.showEmoji
		l.dirty |= RegionAll
	case keys.ToggleHelp:
		l.toggleHelp()
	case keys.ToggleList:
		s.showList = !s.showList
		l.dirty |= RegionAll
	case keys.ToggleTop:
		s.showTop = !s.showTop
		l.dirty |= RegionAll
	case keys.DecreaseListWidth:
		s.listWidth = max(minListWidth, s.listWidth-1)
		l.dirty |= RegionAll
	case keys.IncreaseListWidth:
		s.listWidth = min(maxListWidth, s.listWidth+1)
		l.dirty |= RegionAll
	case keys.FindNext:
		l.findNext()
	default:
		if c == nil {
			return
		}
		l.runChatAction(c, action)
	}
}

// runChatAction handles actions that need a focused chat.
func (l *Locked) runChatAction(c *chatState, action string) {
	s := l.st()
	switch action {
	case keys.Left:
		c.pos = max(0, c.pos-1)
	case keys.Right:
		c.pos = min(len(c.entry), c.pos+1)
	case keys.Home:
		c.pos = 0
	case keys.End:
		c.pos = len(c.entry)
	case keys.BeginLine:
		c.pos = lineStart(c.entry, c.pos)
	case keys.EndLine:
		c.pos = lineEnd(c.entry, c.pos)
	case keys.BackwardWord:
		c.pos = wordStart(c.entry, c.pos)
	case keys.ForwardWord:
		c.pos = wordEnd(c.entry, c.pos)
	case keys.Backspace:
		if c.pos > 0 {
			l.cutRange(c, c.pos-1, c.pos)
		}
	case keys.Delete:
		if c.pos < len(c.entry) {
			l.cutRange(c, c.pos, c.pos+1)
		}
	case keys.DeleteLineAfterCursor:
		l.cutRange(c, c.pos, lineEnd(c.entry, c.pos))
	case keys.DeleteLineBeforeCursor:
		l.cutRange(c, lineStart(c.entry, c.pos), c.pos)
	case keys.BackwardKillWord:
		l.cutRange(c, wordStart(c.entry, c.pos), c.pos)
	case keys.KillWord:
		l.cutRange(c, c.pos, wordEnd(c.entry, c.pos))
	case keys.Linebreak:
		l.insert([]rune{'\n'})
	case keys.Clear:
		c.replyTo, c.editing = "", ""
		l.cutRange(c, 0, len(c.entry))
		l.dirty |= RegionStatus
	case keys.Cut:
		s.clipboard = string(c.entry)
		l.cutRange(c, 0, len(c.entry))
	case keys.Copy:
		if msg, ok := c.msgs[c.selected]; ok {
			s.clipboard = msg.Text
		} else {
			s.clipboard = string(c.entry)
		}
		l.flash(FlashInfo, "copied")
	case keys.Paste:
		l.insert([]rune(s.clipboard))
	case keys.SendMsg:
		l.sendEntry(c)
	case keys.EditMsg:
		l.startEdit(c)
	case keys.Reply:
		if c.selected == "" {
			l.flash(FlashWarn, "no message selected")
			return
		}
		c.replyTo = c.selected
		c.selected = ""
		l.dirty |= RegionHistory | RegionStatus | RegionEntry
	case keys.Open, keys.Save:
		msg, ok := c.msgs[c.selected]
		if !ok || msg.File == nil {
			l.flash(FlashWarn, "no attachment selected")
			return
		}
		l.DownloadAttachmentLocked(c.key, msg.ID, action == keys.Open)
	case keys.MuteChat:
		if !l.features(c.key.ProfileID).Mute {
			l.flash(FlashWarn, "muting not supported")
			return
		}
		c.info.IsMuted = !c.info.IsMuted
		s.sortDirty = true
		l.request(c.key.ProfileID, protocol.SetMuted{ChatID: c.key.ChatID, Muted: c.info.IsMuted})
		l.dirty |= RegionList | RegionStatus
	default:
		return
	}
	l.dirty |= RegionEntry
}

func (l *Locked) cancel() {
	c := l.st().currentChat()
	if c == nil {
		return
	}
	switch {
	case c.editing != "":
		c.editing = ""
		c.entry, c.pos = nil, 0
	case c.replyTo != "":
		c.replyTo = ""
	default:
		c.selected = ""
	}
	l.dirty |= RegionHistory | RegionStatus | RegionEntry
}

func (l *Locked) toggleHelp() {
	s := l.st()
	total := len(l.m.keys.Hints(false))
	switch {
	case !s.showHelp:
		s.showHelp, s.helpOffset = true, 0
	case s.helpCap > 0 && s.helpOffset+s.helpCap < total:
		s.helpOffset += s.helpCap
	default:
		s.showHelp, s.helpOffset = false, 0
	}
	l.dirty |= RegionAll
}

// insert types runes at the cursor of the current chat.
func (l *Locked) insert(rs []rune) {
	c := l.st().currentChat()
	if c == nil || len(rs) == 0 {
		return
	}
	c.entry = slices.Insert(c.entry, c.pos, rs...)
	c.pos += len(rs)
	l.entryChanged(c)
}

// InsertText types text at the cursor of the current chat.
func (l *Locked) InsertText(text string) {
	l.insert([]rune(text))
}

func (l *Locked) cutRange(c *chatState, from, to int) {
	if from >= to {
		return
	}
	c.entry = slices.Delete(c.entry, from, to)
	c.pos = from
	l.entryChanged(c)
}

func (l *Locked) entryChanged(c *chatState) {
	c.lastInput = l.m.now()
	l.dirty |= RegionEntry
	if len(c.entry) == 0 {
		l.stopTyping(c)
		return
	}
	if !c.localTyping && l.features(c.key.ProfileID).Typing {
		c.localTyping = true
		l.request(c.key.ProfileID, protocol.SetTyping{ChatID: c.key.ChatID, Typing: true})
	}
}

func (l *Locked) stopTyping(c *chatState) {
	if !c.localTyping {
		return
	}
	c.localTyping = false
	if l.features(c.key.ProfileID).Typing {
		l.request(c.key.ProfileID, protocol.SetTyping{ChatID: c.key.ChatID, Typing: false})
	}
}

func (l *Locked) sendEntry(c *chatState) {
	text := string(c.entry)
	if strings.TrimSpace(text) == "" {
		return
	}
	if c.editing != "" {
		msg, ok := c.msgs[c.editing]
		if ok {
			msg.Text, msg.IsEdited = text, true
			c.msgs[msg.ID] = msg
			c.version++
		}
		l.request(c.key.ProfileID, protocol.EditMessage{ChatID: c.key.ChatID, MessageID: c.editing, Text: text})
	} else {
		l.request(c.key.ProfileID, protocol.SendMessage{ChatID: c.key.ChatID, Text: text, QuotedID: c.replyTo})
	}
	c.entry, c.pos = nil, 0
	c.replyTo, c.editing, c.selected = "", "", ""
	if len(c.cursor) > 1 {
		c.cursor = c.cursor[:1]
	}
	l.stopTyping(c)
	l.dirty |= RegionEntry | RegionHistory | RegionStatus
}

func (l *Locked) startEdit(c *chatState) {
	msg, ok := c.msgs[c.selected]
	switch {
	case !ok:
		l.flash(FlashWarn, "no message selected")
	case !msg.IsOutgoing || msg.Text == "":
		l.flash(FlashWarn, "only own text messages can be edited")
	case !l.features(c.key.ProfileID).EditMessage:
		l.flash(FlashWarn, "editing not supported")
	default:
		c.editing = msg.ID
		c.replyTo = ""
		c.entry = []rune(msg.Text)
		c.pos = len(c.entry)
		l.dirty |= RegionEntry | RegionStatus
	}
}

// selectOlder moves the message selection up, paging back at the top.
func (l *Locked) selectOlder() {
	s := l.st()
	c := s.currentChat()
	if c == nil {
		return
	}
	win := c.window(s.viewHeight)
	if len(win) == 0 {
		return
	}
	i := slices.Index(win, c.selected)
	switch {
	case i < 0:
		c.selected = win[len(win)-1]
	case i > 0:
		c.selected = win[i-1]
	default:
		l.pageBack()
		return
	}
	l.dirty |= RegionHistory
}

// selectNewer moves the message selection down, paging forward at the
// bottom and returning to the draft past the newest message.
func (l *Locked) selectNewer() {
	s := l.st()
	c := s.currentChat()
	if c == nil || c.selected == "" {
		return
	}
	win := c.window(s.viewHeight)
	i := slices.Index(win, c.selected)
	switch {
	case i >= 0 && i < len(win)-1:
		c.selected = win[i+1]
	case len(c.cursor) > 1:
		l.pageForward()
		return
	default:
		c.selected = ""
	}
	l.dirty |= RegionHistory
}

// findNext selects the next older loaded message containing the find query.
func (l *Locked) findNext() {
	s := l.st()
	c := s.currentChat()
	if c == nil {
		return
	}
	if s.findQuery == "" {
		l.flash(FlashWarn, "nothing to find")
		return
	}
	fold := cases.Fold()
	q := fold.String(s.findQuery)
	start := len(c.ids) - 1
	if i := c.indexOf(c.selected); i >= 0 {
		start = i - 1
	}
	for i := start; i >= 0; i-- {
		if strings.Contains(fold.String(c.msgs[c.ids[i]].Text), q) {
			c.selected = c.ids[i]
			l.reveal(c, i)
			l.dirty |= RegionHistory
			return
		}
	}
	l.flash(FlashInfo, "no match for "+s.findQuery)
}

// reveal adjusts pagination so the message at index i is shown.
func (l *Locked) reveal(c *chatState, i int) {
	if slices.Contains(c.window(l.st().viewHeight), c.ids[i]) {
		return
	}
	c.cursor = c.cursor[:1]
	if i+1 < len(c.ids) {
		c.cursor = append(c.cursor, c.ids[i+1])
	}
}

func lineStart(rs []rune, pos int) int {
	for pos > 0 && rs[pos-1] != '\n' {
		pos--
	}
	return pos
}

func lineEnd(rs []rune, pos int) int {
	for pos < len(rs) && rs[pos] != '\n' {
		pos++
	}
	return pos
}

func wordStart(rs []rune, pos int) int {
	for pos > 0 && unicode.IsSpace(rs[pos-1]) {
		pos--
	}
	for pos > 0 && !unicode.IsSpace(rs[pos-1]) {
		pos--
	}
	return pos
}

func wordEnd(rs []rune, pos int) int {
	for pos < len(rs) && unicode.IsSpace(rs[pos]) {
		pos++
	}
	for pos < len(rs) && !unicode.IsSpace(rs[pos]) {
		pos++
	}
	return pos
}

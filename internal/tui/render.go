package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/core"
	"github.com/matheus3301/mchat/internal/keys"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/rivo/tview"
	"github.com/rivo/uniseg"
)

// views holds one tview primitive per region. They are drawn directly onto
// the screen without a tview.Application.
type views struct {
	theme      *Theme
	timeFormat string

	top     *tview.TextView
	list    *tview.Table
	history *tview.TextView
	status  *tview.TextView
	help    *tview.TextView
}

func newViews(theme *Theme, timeFormat string) *views {
	if timeFormat == "" {
		timeFormat = "15:04"
	}
	bar := func() *tview.TextView {
		tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
		tv.SetBackgroundColor(theme.BarBg)
		tv.SetTextColor(theme.BarFg)
		return tv
	}
	history := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)
	history.SetBackgroundColor(theme.BgColor)
	history.SetTextColor(theme.FgColor)

	list := tview.NewTable().SetSelectable(false, false)
	list.SetBackgroundColor(theme.BgColor)

	help := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	help.SetBackgroundColor(theme.BgColor)
	help.SetTextColor(theme.FgColor)

	return &views{
		theme: theme, timeFormat: timeFormat,
		top: bar(), list: list, history: history, status: bar(), help: help,
	}
}

// drawRegions renders the regions in dirty.
func (v *views) drawRegions(screen tcell.Screen, l *core.Locked, km *keys.Map, lay layout, dirty core.Region) {
	if dirty&(core.RegionTop|core.RegionList) != 0 && !lay.top.empty() {
		v.drawTop(screen, l, lay.top)
	}
	if dirty&core.RegionList != 0 && !lay.list.empty() {
		v.drawList(screen, l, lay.list)
		v.drawSeparator(screen, lay.sep)
	}
	if dirty&core.RegionHistory != 0 && !lay.history.empty() {
		v.drawHistory(screen, l, lay.history)
	}
	if dirty&core.RegionEntry != 0 && !lay.entry.empty() {
		v.drawEntry(screen, l, lay.entry)
	}
	if dirty&core.RegionStatus != 0 && !lay.status.empty() {
		v.drawStatus(screen, l, lay.status)
	}
	if dirty&core.RegionHelp != 0 && !lay.help.empty() {
		v.drawHelp(screen, l, km, lay.help)
	}
}

func place(p tview.Primitive, screen tcell.Screen, r rect) {
	p.SetRect(r.x, r.y, r.w, r.h)
	p.Draw(screen)
}

func (v *views) drawTop(screen tcell.Screen, l *core.Locked, r rect) {
	var b strings.Builder
	b.WriteString(" [::b]mchat[::-]")
	for _, id := range l.ProfileIDs() {
		st, _ := l.ProfileState(id)
		color := v.theme.ProfileBadColor
		if st == status.Online {
			color = v.theme.ProfileGoodColor
		}
		fmt.Fprintf(&b, "  %s [%s:-]%s[-:-]", tview.Escape(sanitize(l.ProfileName(id))), colorName(color), st.Label())
	}
	if n := l.UnreadTotal(); n > 0 {
		fmt.Fprintf(&b, "  unread: %d", n)
	}
	v.top.SetText(b.String())
	place(v.top, screen, r)
}

func (v *views) drawSeparator(screen tcell.Screen, r rect) {
	style := tcell.StyleDefault.Foreground(v.theme.BorderColor).Background(v.theme.BgColor)
	for y := r.y; y < r.y+r.h; y++ {
		screen.SetContent(r.x, y, tview.BoxDrawingsLightVertical, nil, style)
	}
}

func (v *views) drawList(screen tcell.Screen, l *core.Locked, r rect) {
	v.list.Clear()
	current, hasCurrent := l.CurrentChat()
	multi := len(l.ProfileIDs()) > 1
	selected := -1
	for row, key := range l.Chats() {
		info, _ := l.ChatInfo(key)
		name := l.ChatName(key)
		if !l.EmojiEnabled() {
			name = plainEmoji(name)
		}
		marker := " "
		switch {
		case len(l.Typing(key)) > 0:
			marker = "…"
		case info.IsUnread:
			marker = "●"
		}
		label := marker + sanitize(name)
		if multi {
			label += " · " + l.ProfileName(key.ProfileID)
		}
		cell := tview.NewTableCell(tview.Escape(truncate(label, r.w))).
			SetExpansion(1).
			SetMaxWidth(r.w)
		switch {
		case hasCurrent && key == current:
			cell.SetTextColor(v.theme.ListCursorFg).SetBackgroundColor(v.theme.ListCursorBg)
			selected = row
		case info.IsMuted:
			cell.SetTextColor(v.theme.MutedColor)
		case info.IsUnread:
			cell.SetTextColor(v.theme.UnreadColor).SetAttributes(tcell.AttrBold)
		default:
			cell.SetTextColor(v.theme.FgColor)
		}
		v.list.SetCell(row, 0, cell)
	}
	offset := 0
	if selected >= r.h {
		offset = selected - r.h + 1
	}
	v.list.SetOffset(offset, 0)
	place(v.list, screen, r)
}

// drawHistory renders the message window of the current chat and marks the
// incoming messages it shows as read. The window holds only the messages
// that fit in r once wrapped.
func (v *views) drawHistory(screen tcell.Screen, l *core.Locked, r rect) {
	v.history.Clear()
	v.history.Highlight()
	key, ok := l.CurrentChat()
	if !ok {
		l.SetViewHeight(r.h / minMessageRows)
		v.history.SetText("\n  No chat selected.")
		place(v.history, screen, r)
		return
	}
	info, _ := l.ChatInfo(key)
	selected := l.SelectedMessage(key)

	recent := l.RecentHistory(key, r.h)
	bodies := make([]string, len(recent))
	for i, msg := range recent {
		var b strings.Builder
		v.writeMessage(&b, l, key, info, msg)
		bodies[i] = b.String()
	}
	l.SetViewHeight(fitMessages(bodies, r.w, r.h))

	var b strings.Builder
	msgs := l.HistoryWindow(key)
	if len(msgs) == 0 {
		switch {
		case l.Fetching(key):
			b.WriteString("  loading…")
		case l.HistoryComplete(key):
			b.WriteString("  no messages")
		}
	}
	// The window is the tail of recent.
	shown := bodies[len(bodies)-len(msgs):]
	for i, msg := range msgs {
		fmt.Fprintf(&b, `["%s"]%s[""]`, msg.ID, shown[i])
		if !msg.IsOutgoing && !msg.IsRead {
			l.MarkReadLocked(key, msg.ID)
		}
	}
	v.history.SetText(b.String())
	if selected != "" {
		v.history.Highlight(selected)
		v.history.ScrollToHighlight()
	} else {
		v.history.ScrollToEnd()
	}
	place(v.history, screen, r)
}

// minMessageRows is the height of the smallest message: a header and one
// line of content.
const minMessageRows = 2

// fitMessages returns how many of the newest bodies fit in w x h once
// wrapped. Rows left over after all of them are counted as room for older
// messages not loaded yet, so a short window keeps asking for more.
func fitMessages(bodies []string, w, h int) int {
	used := 0
	for i := len(bodies) - 1; i >= 0; i-- {
		used += messageRows(bodies[i], w)
		if used > h {
			return max(1, len(bodies)-1-i)
		}
	}
	return len(bodies) + (h-used)/minMessageRows
}

// messageRows is the number of screen rows body takes when wrapped to w.
func messageRows(body string, w int) int {
	return max(1, len(tview.WordWrap(strings.TrimSuffix(body, "\n"), w)))
}

func (v *views) display(l *core.Locked, s string) string {
	s = sanitize(s)
	if !l.EmojiEnabled() {
		s = plainEmoji(s)
	}
	return tview.Escape(s)
}

func (v *views) sender(l *core.Locked, key core.ChatKey, info protocol.ChatInfo, msg protocol.ChatMessage) string {
	switch {
	case msg.IsOutgoing:
		return "You"
	case msg.SenderID != "":
		return l.ContactName(key.ProfileID, msg.SenderID)
	case info.IsGroup:
		return "?"
	default:
		return l.ChatName(key)
	}
}

// writeMessage writes the lines of msg, each ending in a newline.
func (v *views) writeMessage(b *strings.Builder, l *core.Locked, key core.ChatKey, info protocol.ChatInfo, msg protocol.ChatMessage) {
	ts := time.UnixMilli(msg.Timestamp).Format(v.timeFormat)
	color := v.theme.SenderColor
	if msg.IsOutgoing {
		color = v.theme.OwnColor
	}
	fmt.Fprintf(b, "[%s]%s[-] [%s::b]%s[-::-]", colorName(v.theme.TimeColor), ts, colorName(color), v.display(l, v.sender(l, key, info, msg)))
	if msg.IsEdited {
		fmt.Fprintf(b, " [%s](edited)[-]", colorName(v.theme.TimeColor))
	}
	if msg.IsOutgoing {
		mark := "✓"
		if msg.IsRead {
			mark = "✓✓"
		}
		fmt.Fprintf(b, " [%s]%s[-]", colorName(v.theme.TimeColor), mark)
	}
	b.WriteByte('\n')

	if msg.QuotedID != "" {
		quoted := "…"
		if q, ok := l.FetchCachedMessageLocked(key, msg.QuotedID); ok {
			quoted = v.sender(l, key, info, q) + ": " + firstLine(q.Text)
		}
		fmt.Fprintf(b, "[%s]│ %s[-]\n", colorName(v.theme.QuoteColor), v.display(l, quoted))
	}
	if msg.Text != "" {
		b.WriteString(v.display(l, msg.Text))
		b.WriteByte('\n')
	}
	if f := msg.File; f != nil {
		line := fmt.Sprintf("[file] %s (%s", f.Name, humanSize(f.Size))
		if s := f.Status.String(); s != "" {
			line += ", " + s
		}
		line += ")"
		fmt.Fprintf(b, "[%s]%s[-]\n", colorName(v.theme.QuoteColor), v.display(l, line))
	}
	if !msg.Reactions.Empty() {
		b.WriteString(v.display(l, msg.Reactions.String()))
		b.WriteByte('\n')
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "…"
	}
	return s
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// drawEntry draws the draft with the terminal cursor at the edit position.
func (v *views) drawEntry(screen tcell.Screen, l *core.Locked, r rect) {
	style := tcell.StyleDefault.Foreground(v.theme.FgColor).Background(v.theme.BgColor)
	clearRect(screen, r, style)
	key, ok := l.CurrentChat()
	if !ok {
		screen.HideCursor()
		return
	}
	prompt := "> "
	switch {
	case l.Editing(key) != "":
		prompt = "edit> "
	case l.ReplyTo(key) != "":
		prompt = "reply> "
	}
	promptStyle := style.Foreground(v.theme.MenuKeyColor)
	x := drawString(screen, r.x, r.y, r.w, prompt, promptStyle)

	text := sanitize(strings.ReplaceAll(l.Entry(key), "\n", "⏎"))
	visible, col := scrollEntry(text, l.EntryCursor(key), r.w-(x-r.x))
	drawString(screen, x, r.y, r.w-(x-r.x), visible, style)
	if l.ListDialogActive() || l.MessageDialogActive() {
		screen.HideCursor()
		return
	}
	screen.ShowCursor(x+col, r.y)
}

func (v *views) drawStatus(screen tcell.Screen, l *core.Locked, r rect) {
	var b strings.Builder
	if f, ok := l.Flash(); ok {
		fmt.Fprintf(&b, " [%s::b]%s[-::-]", colorName(v.theme.flashColor(f.Level)), tview.Escape(sanitize(f.Text)))
		v.status.SetText(b.String())
		place(v.status, screen, r)
		return
	}
	key, ok := l.CurrentChat()
	if !ok {
		v.status.SetText(" no chat")
		place(v.status, screen, r)
		return
	}
	fmt.Fprintf(&b, " [::b]%s[::-]", v.display(l, l.ChatName(key)))
	if st, detail := l.ProfileState(key.ProfileID); st != status.Online {
		fmt.Fprintf(&b, " [%s:-](%s", colorName(v.theme.ProfileBadColor), st.Label())
		if detail != "" {
			b.WriteString(": " + tview.Escape(sanitize(detail)))
		}
		b.WriteString(")[-:-]")
	}
	if typing := l.Typing(key); len(typing) > 0 {
		fmt.Fprintf(&b, "  %s typing…", v.display(l, strings.Join(typing, ", ")))
	} else if online, lastSeen, ok := l.Presence(key); ok {
		switch {
		case online:
			b.WriteString("  online")
		case lastSeen > 0:
			b.WriteString("  last seen " + time.UnixMilli(lastSeen).Format("Jan 2 15:04"))
		}
	}
	if info, ok := l.ChatInfo(key); ok && info.IsMuted {
		b.WriteString("  [muted]")
	}
	if l.Fetching(key) {
		b.WriteString("  …")
	}
	v.status.SetText(b.String())
	place(v.status, screen, r)
}

func dialogHints(l *core.Locked) []keys.Hint {
	switch {
	case l.ListDialogActive():
		return []keys.Hint{{Key: "Enter", Description: "Select"}, {Key: "Esc", Description: "Cancel"}, {Key: "↑↓", Description: "Move"}, {Key: "type", Description: "Filter"}}
	case l.MessageDialogActive():
		return []keys.Hint{{Key: "Enter", Description: "OK"}, {Key: "Esc", Description: "Cancel"}}
	}
	return nil
}

// drawHelp renders as many hints as fit, starting at the help offset, and
// records that count so the help toggle can page through them.
func (v *views) drawHelp(screen tcell.Screen, l *core.Locked, km *keys.Map, r rect) {
	hints := dialogHints(l)
	offset := 0
	if hints == nil {
		hints = km.Hints(false)
		offset = min(l.HelpOffset(), len(hints))
	}
	keyColor := colorName(v.theme.MenuKeyColor)
	var b strings.Builder
	used, n := 0, 0
	for _, h := range hints[offset:] {
		cell := h.Key + " " + h.Description + "  "
		if used+uniseg.StringWidth(cell) > r.w {
			break
		}
		fmt.Fprintf(&b, "[%s::b]%s[-::-] %s  ", keyColor, tview.Escape(h.Key), tview.Escape(h.Description))
		used += uniseg.StringWidth(cell)
		n++
	}
	if !l.ListDialogActive() && !l.MessageDialogActive() {
		l.SetHelpCapacity(n)
	}
	v.help.SetText(b.String())
	place(v.help, screen, r)
}

func clearRect(screen tcell.Screen, r rect, style tcell.Style) {
	for y := r.y; y < r.y+r.h; y++ {
		for x := r.x; x < r.x+r.w; x++ {
			screen.SetContent(x, y, ' ', nil, style)
		}
	}
}

// drawString draws s on one row, clipped to w cells, and returns the column
// after the last cell drawn.
func drawString(screen tcell.Screen, x, y, w int, s string, style tcell.Style) int {
	end := x + w
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var cw int
		cluster, rest, cw, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if cw == 0 {
			continue
		}
		if x+cw > end {
			break
		}
		rs := []rune(cluster)
		screen.SetContent(x, y, rs[0], rs[1:], style)
		x += cw
	}
	return x
}

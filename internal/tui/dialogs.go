package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/core"
	"github.com/matheus3301/mchat/internal/dialog"
	"github.com/matheus3301/mchat/internal/keys"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// modalDialog is one open dialog. handleKey and refresh run with the model
// lock held.
type modalDialog interface {
	handleKey(k keys.Key, l *core.Locked)
	refresh(l *core.Locked) bool
	done() bool
	draw(screen tcell.Screen, area rect, theme *Theme)
}

// modal runs d until it finishes. It polls the same event channel as the
// main loop, so it must be called from the UI goroutine, which is where key
// handlers run.
func (u *UI) modal(d modalDialog, isList bool) {
	setActive := u.model.SetMessageDialogActive
	if isList {
		setActive = u.model.SetListDialogActive
	}
	setActive(true)
	u.overlay = func() { d.draw(u.screen, u.dialogArea(), u.theme) }
	u.overlayDirty = true
	defer func() {
		u.overlay = nil
		setActive(false)
	}()

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()
	for !d.done() {
		if !u.model.Process() {
			return
		}
		u.model.WithLock(func(l *core.Locked) {
			if d.refresh(l) {
				u.overlayDirty = true
			}
		})
		u.draw()

		timer.Reset(pollInterval)
		select {
		case <-u.ctx.Done():
			return
		case ev := <-u.events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				k := keys.FromEvent(ev)
				u.model.WithLock(func(l *core.Locked) { d.handleKey(k, l) })
				u.overlayDirty = true
			case *tcell.EventResize:
				u.screen.Sync()
				u.surface.SetDirty(core.RegionAll)
			case *tcell.EventFocus:
				u.model.SetTerminalActive(ev.Focused)
			}
		case <-u.surface.Wake():
		case <-timer.C:
		}
	}
}

// dialogArea is the centered box dialogs are drawn in.
func (u *UI) dialogArea() rect {
	sw, sh := u.screen.Size()
	w := min(max(sw*2/3, 30), sw-2)
	h := min(max(sh*2/3, 8), sh-2)
	return rect{(sw - w) / 2, (sh - h) / 2, w, h}
}

// smallArea is a box of h rows for message dialogs.
func (u *UI) smallArea(h int) rect {
	a := u.dialogArea()
	h = min(h, a.h)
	a.y += (a.h - h) / 2
	a.h = h
	return a
}

type listDialog[T any] struct {
	list    *dialog.List[T]
	rows    int
	reload  func(l *core.Locked) bool
	onPick  func() // runs after a selection and may reopen the list
	message string
}

func (d *listDialog[T]) handleKey(k keys.Key, _ *core.Locked) {
	d.list.HandleKey(k, max(d.rows, 1))
	if d.list.State() == dialog.Selected && d.onPick != nil {
		d.onPick()
	}
}

func (d *listDialog[T]) refresh(l *core.Locked) bool {
	if d.reload == nil {
		return false
	}
	return d.reload(l)
}

func (d *listDialog[T]) done() bool { return d.list.State().Done() }

func (d *listDialog[T]) draw(screen tcell.Screen, area rect, theme *Theme) {
	t := tview.NewTable()
	title := " " + d.list.Title + " "
	if f := d.list.Filter(); f != "" {
		title += "/" + f + " "
	}
	t.SetBorder(true).
		SetTitle(tview.Escape(sanitize(title))).
		SetTitleColor(theme.TitleColor).
		SetBorderColor(theme.DialogBorder).
		SetBackgroundColor(theme.BgColor)

	d.rows = max(area.h-2, 1)
	visible := d.list.Visible()
	cursor := d.list.Cursor()
	first := d.list.Window(d.rows)
	inner := area.w - 2
	row := 0
	if d.message != "" {
		t.SetCell(row, 0, tview.NewTableCell(tview.Escape(truncate(d.message, inner))).SetTextColor(theme.FlashErrColor))
		row++
	}
	if len(visible) == 0 {
		t.SetCell(row, 0, tview.NewTableCell("no matches").SetTextColor(theme.MutedColor))
	}
	for i := first; i < len(visible) && row < d.rows; i++ {
		it := visible[i]
		label := sanitize(it.Label)
		if it.Detail != "" {
			label += "  " + sanitize(it.Detail)
		}
		cell := tview.NewTableCell(tview.Escape(truncate(label, inner))).SetExpansion(1)
		if i == cursor {
			cell.SetTextColor(theme.DialogCursorFg).SetBackgroundColor(theme.DialogCursorBg)
		} else {
			cell.SetTextColor(theme.FgColor)
		}
		t.SetCell(row, 0, cell)
		row++
	}
	screen.HideCursor()
	place(t, screen, area)
}

type confirmDialog struct {
	c    *dialog.Confirm
	area func() rect
}

func (d *confirmDialog) handleKey(k keys.Key, _ *core.Locked) { d.c.HandleKey(k) }
func (d *confirmDialog) refresh(*core.Locked) bool            { return false }
func (d *confirmDialog) done() bool                           { return d.c.State().Done() }

func (d *confirmDialog) draw(screen tcell.Screen, _ rect, theme *Theme) {
	tv := tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	tv.SetBorder(true).SetBorderColor(theme.DialogBorder).SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	key := colorName(theme.MenuKeyColor)
	tv.SetText(fmt.Sprintf("%s\n\n[%s::b]y[-::-] yes   [%s::b]n[-::-] no",
		tview.Escape(sanitize(d.c.Text)), key, key))
	screen.HideCursor()
	place(tv, screen, d.area())
}

type inputDialog struct {
	in   *dialog.Input
	area func() rect
}

func (d *inputDialog) handleKey(k keys.Key, _ *core.Locked) { d.in.HandleKey(k) }
func (d *inputDialog) refresh(*core.Locked) bool            { return false }
func (d *inputDialog) done() bool                           { return d.in.State().Done() }

func (d *inputDialog) draw(screen tcell.Screen, _ rect, theme *Theme) {
	r := d.area()
	box := tview.NewBox()
	box.SetBorder(true).
		SetTitle(" " + tview.Escape(sanitize(d.in.Title)) + " ").
		SetTitleColor(theme.TitleColor).
		SetBorderColor(theme.DialogBorder).
		SetBackgroundColor(theme.BgColor)
	place(box, screen, r)
	inner := rect{r.x + 1, r.y + 1, r.w - 2, 1}
	visible, col := scrollEntry(d.in.Text(), d.in.Cursor(), inner.w)
	drawString(screen, inner.x, inner.y, inner.w, visible, tcell.StyleDefault.Foreground(theme.FgColor).Background(theme.BgColor))
	screen.ShowCursor(inner.x+col, inner.y)
}

type textDialog struct {
	t    *dialog.Text
	rows int
}

func (d *textDialog) handleKey(k keys.Key, _ *core.Locked) { d.t.HandleKey(k, max(d.rows, 1)) }
func (d *textDialog) refresh(*core.Locked) bool            { return false }
func (d *textDialog) done() bool                           { return d.t.State().Done() }

func (d *textDialog) draw(screen tcell.Screen, area rect, theme *Theme) {
	tv := tview.NewTextView().SetWrap(false)
	tv.SetBorder(true).
		SetTitle(" " + tview.Escape(sanitize(d.t.Title)) + " ").
		SetTitleColor(theme.TitleColor).
		SetBorderColor(theme.DialogBorder).
		SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetText(sanitize(strings.Join(d.t.Lines, "\n")))
	d.rows = max(area.h-2, 1)
	tv.ScrollTo(d.t.Offset(), 0)
	screen.HideCursor()
	place(tv, screen, area)
}

// SelectChat lets the user pick any visible chat.
func (u *UI) SelectChat(title string) (core.ChatKey, bool) {
	var items []dialog.Item[core.ChatKey]
	u.model.WithLock(func(l *core.Locked) { items = dialog.ChatItems(l) })
	d := &listDialog[core.ChatKey]{list: dialog.NewList(title, items)}
	u.modal(d, true)
	return d.list.Result()
}

// SelectContact lets the user pick a contact of profileID. The list follows
// contact updates while open.
func (u *UI) SelectContact(title, profileID string) (string, bool) {
	var src *dialog.ContactSource
	var list *dialog.List[string]
	u.model.WithLock(func(l *core.Locked) { src, list = dialog.NewContactSource(l, profileID) })
	list.Title = title
	d := &listDialog[string]{
		list:   list,
		reload: func(l *core.Locked) bool { return src.Refresh(l, list) },
	}
	u.modal(d, true)
	return list.Result()
}

// SelectEmoji lets the user pick a reaction.
func (u *UI) SelectEmoji() (string, bool) {
	d := &listDialog[string]{list: dialog.NewList("Emoji", dialog.EmojiItems())}
	u.modal(d, true)
	return d.list.Result()
}

// SelectFile browses from dir until a file is chosen.
func (u *UI) SelectFile(dir string) (string, bool) {
	picker, err := dialog.NewFilePicker(dir)
	if err != nil {
		u.logger.Warn("file picker", zap.Error(err))
		u.ShowText("Send file", err.Error())
		return "", false
	}
	var chosen string
	d := &listDialog[dialog.FileEntry]{list: picker.List}
	d.onPick = func() {
		path, _, err := picker.Settle()
		d.message = ""
		if err != nil {
			d.message = err.Error()
		}
		chosen = path
	}
	u.modal(d, true)
	if chosen == "" {
		return "", false
	}
	return chosen, true
}

// Confirm asks a yes/no question.
func (u *UI) Confirm(text string) bool {
	c := dialog.NewConfirm(text)
	u.modal(&confirmDialog{c: c, area: func() rect { return u.smallArea(5) }}, false)
	return c.Result()
}

// Input prompts for one line of text.
func (u *UI) Input(title, initial string) (string, bool) {
	in := dialog.NewInput(title, initial)
	u.modal(&inputDialog{in: in, area: func() rect { return u.smallArea(3) }}, false)
	return in.Result()
}

// ShowText shows read-only text until dismissed.
func (u *UI) ShowText(title, text string) {
	u.modal(&textDialog{t: dialog.NewText(title, text)}, false)
}

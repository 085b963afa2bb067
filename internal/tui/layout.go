package tui

type rect struct {
	x, y, w, h int
}

func (r rect) empty() bool { return r.w <= 0 || r.h <= 0 }

// layout splits the screen into regions. Rows from the top: top bar, then
// the chat list beside the history, the entry line, the status bar and the
// help bar.
type layout struct {
	top, list, sep, history, entry, status, help rect
}

func computeLayout(w, h int, showTop, showList, showHelp bool, listWidth int) layout {
	var l layout
	y := 0
	if showTop && h > 3 {
		l.top = rect{0, 0, w, 1}
		y = 1
	}
	bottom := h
	if showHelp && bottom-y > 3 {
		bottom--
		l.help = rect{0, bottom, w, 1}
	}
	bottom--
	l.status = rect{0, bottom, w, 1}

	middle := max(bottom-y, 0)
	lw := 0
	if showList && w >= 20 {
		lw = min(max(listWidth, 8), w/2)
		l.list = rect{0, y, lw, middle}
		l.sep = rect{lw, y, 1, middle}
		lw++
	}
	if middle > 1 {
		l.history = rect{lw, y, w - lw, middle - 1}
		l.entry = rect{lw, y + middle - 1, w - lw, 1}
	} else {
		l.entry = rect{lw, y, w - lw, middle}
	}
	return l
}

package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/core"
)

// Theme holds the colors of every region.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	TitleColor       tcell.Color
	BarFg            tcell.Color
	BarBg            tcell.Color
	ListCursorFg     tcell.Color
	ListCursorBg     tcell.Color
	UnreadColor      tcell.Color
	MutedColor       tcell.Color
	SenderColor      tcell.Color
	OwnColor         tcell.Color
	TimeColor        tcell.Color
	QuoteColor       tcell.Color
	SelectedBg       tcell.Color
	MenuKeyColor     tcell.Color
	FlashInfoColor   tcell.Color
	FlashWarnColor   tcell.Color
	FlashErrColor    tcell.Color
	DialogBorder     tcell.Color
	DialogCursorFg   tcell.Color
	DialogCursorBg   tcell.Color
	OnlineColor      tcell.Color
	ProfileBadColor  tcell.Color
	ProfileGoodColor tcell.Color
}

// DefaultTheme returns a dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorSilver,
		BorderColor:      tcell.ColorDodgerBlue,
		TitleColor:       tcell.ColorFuchsia,
		BarFg:            tcell.ColorBlack,
		BarBg:            tcell.ColorAqua,
		ListCursorFg:     tcell.ColorBlack,
		ListCursorBg:     tcell.ColorAqua,
		UnreadColor:      tcell.ColorWhite,
		MutedColor:       tcell.ColorGray,
		SenderColor:      tcell.ColorLightSkyBlue,
		OwnColor:         tcell.ColorLightGreen,
		TimeColor:        tcell.ColorGray,
		QuoteColor:       tcell.ColorDarkCyan,
		SelectedBg:       tcell.ColorNavy,
		MenuKeyColor:     tcell.ColorDodgerBlue,
		FlashInfoColor:   tcell.ColorNavajoWhite,
		FlashWarnColor:   tcell.ColorOrange,
		FlashErrColor:    tcell.ColorOrangeRed,
		DialogBorder:     tcell.ColorDodgerBlue,
		DialogCursorFg:   tcell.ColorBlack,
		DialogCursorBg:   tcell.ColorOrange,
		OnlineColor:      tcell.ColorLime,
		ProfileBadColor:  tcell.ColorOrangeRed,
		ProfileGoodColor: tcell.ColorLime,
	}
}

func (t *Theme) flashColor(level core.FlashLevel) tcell.Color {
	switch level {
	case core.FlashWarn:
		return t.FlashWarnColor
	case core.FlashError:
		return t.FlashErrColor
	default:
		return t.FlashInfoColor
	}
}

// colorName renders c as a tview color tag.
func colorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

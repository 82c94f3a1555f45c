package util

import (
	"github.com/mattn/go-runewidth"
)

// Terminal control sequences
const (
	ColorReset   = "\033[0m"
	ColorBlue    = "\033[34m"
	ColorCyan    = "\033[36m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorRed     = "\033[31m"
	ColorMagenta = "\033[35m"
	ColorGray    = "\033[90m"
	ColorBold    = "\033[1m"
	ColorReverse = "\033[7m"

	ClearScreen    = "\033[2J"
	ClearToEOL     = "\033[K"
	ClearBelow     = "\033[J"
	MoveCursorHome = "\033[H"
	HideCursor     = "\033[?25l"
	ShowCursor     = "\033[?25h"
	EnterAltScreen = "\033[?1049h"
	ExitAltScreen  = "\033[?1049l"
)

const ellipsis = "…"

// GetDisplayWidth calculates the display width of a string, accounting for wide runes
func GetDisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// TruncateRunes shortens s to at most max runes, ending in "…" when cut
func TruncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return ellipsis
	}
	return string(runes[:max-1]) + ellipsis
}

// TruncateWidth shortens s to fit width terminal cells, ending in "…" when cut
func TruncateWidth(s string, width int) string {
	return runewidth.Truncate(s, width, ellipsis)
}

// PadRight pads s with spaces to width terminal cells
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// Colorize wraps text in an ANSI color
func Colorize(text, color string) string {
	if color == "" {
		return text
	}
	return color + text + ColorReset
}

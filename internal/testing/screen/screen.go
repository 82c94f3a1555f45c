// Package screen emulates enough of an ANSI terminal to check what a
// full-screen renderer leaves visible after a sequence of redraws.
package screen

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// StripANSI removes all CSI escape sequences from s
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// Screen is a fixed-size grid of cells with a cursor. Wide runes take two
// cells, the second holding a zero rune.
type Screen struct {
	rows, cols int
	cells      [][]rune
	x, y       int
	altScreen  bool
	cursorOn   bool
}

func New(rows, cols int) *Screen {
	s := &Screen{rows: rows, cols: cols, cursorOn: true}
	s.cells = make([][]rune, rows)
	for i := range s.cells {
		s.cells[i] = blank(cols)
	}
	return s
}

func blank(cols int) []rune {
	row := make([]rune, cols)
	for i := range row {
		row[i] = ' '
	}
	return row
}

// Write feeds terminal output to the screen; it never fails
func (s *Screen) Write(p []byte) (int, error) {
	runes := []rune(string(p))
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; {
		case r == '\x1b' && i+1 < len(runes) && runes[i+1] == '[':
			i = s.csi(runes, i+2)
		case r == '\r':
			s.x = 0
		case r == '\n':
			s.x = 0
			s.lineFeed()
		default:
			s.put(r)
		}
	}
	return len(p), nil
}

// csi handles one control sequence starting after ESC [ and returns the
// index of its final byte
func (s *Screen) csi(runes []rune, i int) int {
	private := false
	var params []int
	current, seen := 0, false
	for ; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '?':
			private = true
		case r >= '0' && r <= '9':
			current = current*10 + int(r-'0')
			seen = true
		case r == ';':
			params = append(params, current)
			current, seen = 0, false
		default:
			if seen {
				params = append(params, current)
			}
			s.command(r, params, private)
			return i
		}
	}
	return i
}

func param(params []int, idx, def int) int {
	if idx < len(params) && params[idx] > 0 {
		return params[idx]
	}
	return def
}

func (s *Screen) command(cmd rune, params []int, private bool) {
	if private {
		switch {
		case cmd == 'h' && param(params, 0, 0) == 1049:
			s.altScreen = true
		case cmd == 'l' && param(params, 0, 0) == 1049:
			s.altScreen = false
		case cmd == 'h' && param(params, 0, 0) == 25:
			s.cursorOn = true
		case cmd == 'l' && param(params, 0, 0) == 25:
			s.cursorOn = false
		}
		return
	}

	switch cmd {
	case 'H', 'f':
		s.y = min(param(params, 0, 1), s.rows) - 1
		s.x = min(param(params, 1, 1), s.cols) - 1
	case 'J':
		switch param(params, 0, 0) {
		case 0:
			s.clearRow(s.y, s.x, s.cols)
			for r := s.y + 1; r < s.rows; r++ {
				s.cells[r] = blank(s.cols)
			}
		case 2, 3:
			for r := range s.cells {
				s.cells[r] = blank(s.cols)
			}
		}
	case 'K':
		switch param(params, 0, 0) {
		case 0:
			s.clearRow(s.y, s.x, s.cols)
		case 2:
			s.clearRow(s.y, 0, s.cols)
		}
	}
	// 'm' and anything else only change attributes
}

func (s *Screen) clearRow(row, from, to int) {
	if row < 0 || row >= s.rows {
		return
	}
	for c := from; c < to && c < s.cols; c++ {
		s.cells[row][c] = ' '
	}
}

func (s *Screen) put(r rune) {
	w := runewidth.RuneWidth(r)
	if w == 0 {
		return
	}
	if s.x+w > s.cols {
		s.x = 0
		s.lineFeed()
	}
	s.cells[s.y][s.x] = r
	if w == 2 {
		s.cells[s.y][s.x+1] = 0
	}
	s.x += w
}

func (s *Screen) lineFeed() {
	if s.y < s.rows-1 {
		s.y++
		return
	}
	copy(s.cells, s.cells[1:])
	s.cells[s.rows-1] = blank(s.cols)
}

// Line returns row i without trailing spaces
func (s *Screen) Line(i int) string {
	if i < 0 || i >= s.rows {
		return ""
	}
	var b strings.Builder
	for _, r := range s.cells[i] {
		if r != 0 {
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Lines returns every row, trimmed
func (s *Screen) Lines() []string {
	out := make([]string, s.rows)
	for i := range out {
		out[i] = s.Line(i)
	}
	return out
}

// Contains reports whether any row contains text
func (s *Screen) Contains(text string) bool {
	for i := 0; i < s.rows; i++ {
		if strings.Contains(s.Line(i), text) {
			return true
		}
	}
	return false
}

func (s *Screen) AltScreen() bool     { return s.altScreen }
func (s *Screen) CursorVisible() bool { return s.cursorOn }

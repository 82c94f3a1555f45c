package layout

import (
	"os"

	"golang.org/x/term"
)

// Fallback size when the output is not a terminal
const (
	DefaultWidth  = 100
	DefaultHeight = 30

	minWidth  = 40
	minHeight = 10
)

// Sizer holds the usable screen area
type Sizer struct {
	Width  int
	Height int
}

func NewSizer(width, height int) *Sizer {
	return &Sizer{Width: width, Height: height}
}

// DetectSizer reads the size of the terminal on stdout, falling back to defaults
func DetectSizer() *Sizer {
	return detect(int(os.Stdout.Fd()))
}

func detect(fd int) *Sizer {
	width, height, err := term.GetSize(fd)
	if err != nil || width <= 0 || height <= 0 {
		return NewSizer(DefaultWidth, DefaultHeight)
	}
	if width < minWidth {
		width = minWidth
	}
	if height < minHeight {
		height = minHeight
	}
	return NewSizer(width, height)
}

// IsTerminal reports whether stdin and stdout are both terminals
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// BodyLines returns the rows left for entries after fixed header and footer rows
func (s *Sizer) BodyLines(header, footer int) int {
	n := s.Height - header - footer
	if n < 1 {
		return 1
	}
	return n
}

// Window returns the [start, end) slice of total rows to show so that focus
// stays visible, pinned to the bottom row when it is near the end.
func Window(total, focus, rows int) (int, int) {
	if total <= 0 || rows <= 0 {
		return 0, 0
	}
	if total <= rows {
		return 0, total
	}
	if focus < 0 {
		focus = 0
	}
	if focus >= total {
		focus = total - 1
	}
	end := focus + 1
	if end < rows {
		end = rows
	}
	return end - rows, end
}

package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/presentation/layout"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

const (
	headerLines = 3
	footerLines = 3
)

// Frame is everything one screen shows
type Frame struct {
	Title      string
	Projection timeline.Projection
	State      model.ConnectionState
	Detail     string
	Speed      float64
	ShowHelp   bool
	Message    string
}

// TerminalDisplay draws frames on an ANSI terminal using the alternate screen
type TerminalDisplay struct {
	out   io.Writer
	size  func() *layout.Sizer
	color bool

	mu                sync.Mutex
	inAlternateScreen bool
}

func NewTerminalDisplay(out io.Writer) *TerminalDisplay {
	return &TerminalDisplay{out: out, size: layout.DetectSizer, color: true}
}

// EnterAlternateScreen switches to the alternate screen buffer and hides the cursor
func (td *TerminalDisplay) EnterAlternateScreen() {
	td.mu.Lock()
	defer td.mu.Unlock()
	if td.inAlternateScreen {
		return
	}
	fmt.Fprint(td.out, util.EnterAltScreen+util.ClearScreen+util.MoveCursorHome+util.HideCursor)
	td.inAlternateScreen = true
}

// ExitAlternateScreen restores the normal screen and cursor
func (td *TerminalDisplay) ExitAlternateScreen() {
	td.mu.Lock()
	defer td.mu.Unlock()
	if !td.inAlternateScreen {
		return
	}
	fmt.Fprint(td.out, util.ClearScreen+util.MoveCursorHome+util.ShowCursor+util.ExitAltScreen)
	td.inAlternateScreen = false
}

// Render redraws the whole screen in place
func (td *TerminalDisplay) Render(frame Frame) {
	sizer := td.size()
	lines := td.Lines(frame, sizer.Width, sizer.Height)

	var b strings.Builder
	b.WriteString(util.MoveCursorHome)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString(util.ClearToEOL + "\n")
	}
	b.WriteString(util.ClearBelow)

	td.mu.Lock()
	defer td.mu.Unlock()
	fmt.Fprint(td.out, b.String())
}

// Lines lays a frame out for a width x height screen
func (td *TerminalDisplay) Lines(frame Frame, width, height int) []string {
	sizer := layout.NewSizer(width, height)
	lines := make([]string, 0, height)
	lines = append(lines, td.header(frame, width)...)

	body := sizer.BodyLines(headerLines, footerLines)
	if frame.ShowHelp {
		lines = append(lines, fitLines(helpLines(), body, width)...)
	} else {
		lines = append(lines, td.body(frame.Projection, width, body)...)
	}

	lines = append(lines, td.paint(strings.Repeat("─", width), util.ColorGray))
	lines = append(lines, util.TruncateWidth(td.detail(frame), width))
	lines = append(lines, util.TruncateWidth(td.hints(frame), width))
	return lines
}

func (td *TerminalDisplay) header(frame Frame, width int) []string {
	p := frame.Projection
	title := frame.Title
	if title == "" {
		title = "Agent Timeline"
	}

	position := "0/0"
	if p.Total > 0 {
		position = fmt.Sprintf("%d/%d", p.Cursor+1, p.Total)
	}
	if len(p.Filtered) != p.Total {
		position += fmt.Sprintf(" (%d match)", len(p.Filtered))
	}

	pieces := []struct{ text, color string }{
		{title, util.ColorBold + util.ColorMagenta},
		{"● " + string(frame.State), stateColor(frame.State)},
		{strings.ToUpper(string(p.Mode)), modeColor(p.Mode)},
		{formatSpeed(frame.Speed), ""},
		{position, ""},
	}
	plain := make([]string, len(pieces))
	painted := make([]string, len(pieces))
	for i, pc := range pieces {
		plain[i] = pc.text
		painted[i] = td.paint(pc.text, pc.color)
	}
	status := strings.Join(plain, "  ")
	if util.GetDisplayWidth(status) <= width {
		status = strings.Join(painted, "  ")
	} else {
		status = util.TruncateWidth(status, width)
	}

	second := frame.Detail
	if frame.Message != "" {
		second = frame.Message
	}
	if second == "" && len(p.ActiveActors) > 0 {
		names := make([]string, len(p.ActiveActors))
		for i, a := range p.ActiveActors {
			names[i] = string(a)
		}
		second = "actors: " + strings.Join(names, ", ")
	}

	return []string{
		status,
		util.TruncateWidth(second, width),
		td.paint(strings.Repeat("─", width), util.ColorGray),
	}
}

func (td *TerminalDisplay) body(p timeline.Projection, width, rows int) []string {
	cols := layout.ColumnsFor(width)
	visible := p.Visible
	start, end := layout.Window(len(visible), len(visible)-1, rows)

	lines := make([]string, 0, rows)
	if len(visible) == 0 {
		lines = append(lines, td.paint("  waiting for events…", util.ColorGray))
	}
	for i := start; i < end; i++ {
		var prev *model.TimelineEntry
		if i > 0 {
			prev = &visible[i-1]
		}
		current := i == len(visible)-1
		lines = append(lines, td.entryLine(visible[i], prev, cols, current))
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return lines
}

func (td *TerminalDisplay) entryLine(e model.TimelineEntry, prev *model.TimelineEntry, cols layout.Columns, current bool) string {
	marker := "  "
	if current {
		marker = "▶ "
	}
	line := marker + FormatEntry(e, prev, cols)
	if current {
		return td.paint(line, util.ColorReverse)
	}
	return td.paint(line, categoryColor(e.Category))
}

func (td *TerminalDisplay) detail(frame Frame) string {
	cur := frame.Projection.Current
	if cur == nil {
		return ""
	}
	parts := []string{cur.Label}
	if m := cur.Metadata; m != nil {
		if m.ToolName != "" && m.Status != "" {
			parts = append(parts, m.ToolName+" "+m.Status)
		}
		if m.Duration != nil {
			parts = append(parts, util.FormatDuration(*m.Duration))
		}
		if m.Tokens != nil {
			parts = append(parts, fmt.Sprintf("%s tokens", util.FormatNumber(m.Tokens.Total())))
		}
		if m.Cost != nil && *m.Cost > 0 {
			parts = append(parts, util.FormatCost(*m.Cost))
		}
		if m.Error != "" {
			parts = append(parts, "error: "+m.Error)
		}
	}
	if cur.SessionID != "" {
		parts = append(parts, cur.SessionID)
	}
	return strings.Join(parts, " · ")
}

func (td *TerminalDisplay) hints(frame Frame) string {
	if frame.ShowHelp {
		return "?: close help  q: quit"
	}
	return "space: play/pause  ←/→: step  h/l: ±10  home/end  +/-: speed  L: live  s: session  ?: help  q: quit"
}

func (td *TerminalDisplay) paint(text, color string) string {
	if !td.color {
		return text
	}
	return util.Colorize(text, color)
}

// FormatEntry renders one entry on a single line for the given columns
func FormatEntry(e model.TimelineEntry, prev *model.TimelineEntry, cols layout.Columns) string {
	var b strings.Builder
	if cols.Time {
		b.WriteString(util.FormatTimestamp(e.Timestamp))
		b.WriteByte(' ')
	}
	if cols.Gap {
		gap := ""
		if prev != nil {
			if g := util.FormatGap(e.Timestamp - prev.Timestamp); g != "" {
				gap = "+" + g
			}
		}
		b.WriteString(util.PadRight(gap, layout.GapWidth))
		b.WriteByte(' ')
	}
	if cols.Actors {
		b.WriteString(util.PadRight(fmt.Sprintf("%s → %s", e.From, e.To), layout.ActorsWidth))
		b.WriteByte(' ')
	}
	b.WriteString(util.TruncateWidth(singleLine(e.Label), cols.Label))
	return b.String()
}

func fitLines(lines []string, rows, width int) []string {
	out := make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		line := ""
		if i < len(lines) {
			line = util.TruncateWidth(lines[i], width)
		}
		out = append(out, line)
	}
	return out
}

func helpLines() []string {
	return []string{
		"Keyboard Shortcuts:",
		"",
		"  space       live → paused; paused → live (or play when offline); playing → paused",
		"  ← / →       step one entry back / forward",
		"  h / l       step ten entries back / forward",
		"  home        pause at the first entry",
		"  end         jump to the last entry (live when connected)",
		"  + / -       faster / slower playback (0.25x to 4x)",
		"  L           resume live follow",
		"  s           next session filter, then all sessions",
		"  ?           toggle this help",
		"  Esc         close this help, or quit",
		"  q / Ctrl+C  quit",
	}
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func formatSpeed(speed float64) string {
	if speed == 0 {
		speed = 1
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", speed), "0"), ".") + "x"
}

func categoryColor(c model.Category) string {
	switch c {
	case model.CategoryMessage:
		return util.ColorBlue
	case model.CategoryTool:
		return util.ColorCyan
	case model.CategoryToken:
		return util.ColorGray
	case model.CategoryControl:
		return util.ColorMagenta
	case model.CategoryError:
		return util.ColorRed
	case model.CategoryPermission:
		return util.ColorYellow
	}
	return ""
}

func stateColor(s model.ConnectionState) string {
	switch s {
	case model.StateConnected:
		return util.ColorGreen
	case model.StateConnecting, model.StateWaiting:
		return util.ColorYellow
	case model.StateError:
		return util.ColorRed
	}
	return util.ColorGray
}

func modeColor(m model.Mode) string {
	switch m {
	case model.ModeLive:
		return util.ColorGreen
	case model.ModePlaying:
		return util.ColorCyan
	}
	return util.ColorYellow
}

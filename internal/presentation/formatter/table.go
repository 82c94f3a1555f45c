package formatter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

const maxSessionsWidth = 40

type TableFormatter struct {
	headers []string
	loc     *time.Location
}

func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		headers: []string{"ID", "Started", "Duration", "Events", "Sessions", "Status"},
		loc:     util.Location(),
	}
}

func (f *TableFormatter) FormatRecordings(w io.Writer, metas []model.RecordingMeta) error {
	if len(metas) == 0 {
		_, err := fmt.Fprintln(w, "No recordings found.")
		return err
	}

	rows := make([][]string, len(metas))
	for i, m := range metas {
		rows[i] = f.row(m)
	}
	widths := f.calculateColumnWidths(rows)

	tw := &tableWriter{w: w}
	tw.border(widths, "top")
	tw.row(f.headers, widths)
	tw.border(widths, "middle")
	for _, r := range rows {
		tw.row(r, widths)
	}
	tw.border(widths, "bottom")

	total := 0
	for _, m := range metas {
		total += m.EventCount
	}
	tw.printf("%d recordings, %d events\n", len(metas), total)
	return tw.err
}

func (f *TableFormatter) row(m model.RecordingMeta) []string {
	duration := "-"
	if m.EndTime > m.StartTime {
		duration = util.FormatDuration(m.EndTime - m.StartTime)
	}
	status := "open"
	if m.Finalized {
		status = "done"
	}
	return []string{
		m.ID,
		time.UnixMilli(m.StartTime).In(f.loc).Format("2006-01-02 15:04:05"),
		duration,
		fmt.Sprintf("%d", m.EventCount),
		util.TruncateWidth(strings.Join(m.SessionIDs, ", "), maxSessionsWidth),
		status,
	}
}

// calculateColumnWidths sizes each column to its widest cell in terminal cells
func (f *TableFormatter) calculateColumnWidths(rows [][]string) []int {
	widths := make([]int, len(f.headers))
	for i, h := range f.headers {
		widths[i] = util.GetDisplayWidth(h)
	}
	for _, r := range rows {
		for i, v := range r {
			if w := util.GetDisplayWidth(v); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// tableWriter draws box tables and keeps the first write error
type tableWriter struct {
	w   io.Writer
	err error
}

func (t *tableWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *tableWriter) border(widths []int, kind string) {
	var left, middle, right string
	switch kind {
	case "top":
		left, middle, right = "┌", "┬", "┐"
	case "middle":
		left, middle, right = "├", "┼", "┤"
	default:
		left, middle, right = "└", "┴", "┘"
	}

	var b strings.Builder
	b.WriteString(left)
	for i, width := range widths {
		b.WriteString(strings.Repeat("─", width+2))
		if i < len(widths)-1 {
			b.WriteString(middle)
		}
	}
	b.WriteString(right)
	t.printf("%s\n", b.String())
}

func (t *tableWriter) row(values []string, widths []int) {
	var b strings.Builder
	b.WriteString("│")
	for i, v := range values {
		b.WriteString(" ")
		b.WriteString(util.PadRight(v, widths[i]))
		b.WriteString(" │")
	}
	t.printf("%s\n", b.String())
}

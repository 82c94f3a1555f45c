package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/presentation/layout"
)

// PlainPrinter writes one line per entry, for pipes and --plain
type PlainPrinter struct {
	out  io.Writer
	cols layout.Columns

	mu   sync.Mutex
	prev *model.TimelineEntry
}

func NewPlainPrinter(out io.Writer, width int) *PlainPrinter {
	return &PlainPrinter{out: out, cols: layout.ColumnsFor(width)}
}

// PrintEntry writes entry with its gap to the previously printed one
func (p *PlainPrinter) PrintEntry(entry model.TimelineEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%6d %s\n", entry.SequenceIndex, FormatEntry(entry, p.prev, p.cols))
	p.prev = &entry
}

// PrintState writes a connection state change
func (p *PlainPrinter) PrintState(state model.ConnectionState, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if detail != "" {
		fmt.Fprintf(p.out, "-- %s: %s\n", state, detail)
		return
	}
	fmt.Fprintf(p.out, "-- %s\n", state)
}

// Reset forgets the previous entry, for a new timeline
func (p *PlainPrinter) Reset() {
	p.mu.Lock()
	p.prev = nil
	p.mu.Unlock()
}

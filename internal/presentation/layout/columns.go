package layout

// Columns selects which entry columns fit the terminal width
type Columns struct {
	Time   bool
	Gap    bool
	Actors bool
	Label  int // cells left for the label
}

// Fixed column widths in terminal cells
const (
	TimeWidth   = 12 // 15:04:05.000
	GapWidth    = 7
	ActorsWidth = 15 // "system → agent"
	markerWidth = 2
)

// ColumnsFor picks the columns for a terminal width. Narrow terminals drop
// the gap column first, then the actors, then the timestamp.
func ColumnsFor(width int) Columns {
	c := Columns{Time: true, Gap: true, Actors: true}
	used := func() int {
		n := markerWidth
		if c.Time {
			n += TimeWidth + 1
		}
		if c.Gap {
			n += GapWidth + 1
		}
		if c.Actors {
			n += ActorsWidth + 1
		}
		return n
	}
	const minLabel = 20
	if width-used() < minLabel {
		c.Gap = false
	}
	if width-used() < minLabel {
		c.Actors = false
	}
	if width-used() < minLabel {
		c.Time = false
	}
	c.Label = width - used()
	if c.Label < 1 {
		c.Label = 1
	}
	return c
}

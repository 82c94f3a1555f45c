package formatter

import (
	"fmt"
	"io"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
)

// Output formats accepted by the CLI
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// RecordingsFormatter renders a recording list
type RecordingsFormatter interface {
	FormatRecordings(w io.Writer, metas []model.RecordingMeta) error
}

// StatsReport is the input of a stats rendering
type StatsReport struct {
	Meta  model.RecordingMeta `json:"meta"`
	Stats timeline.Stats      `json:"stats"`
}

// StatsFormatter renders aggregate stats of one recording
type StatsFormatter interface {
	FormatStats(w io.Writer, report StatsReport) error
}

// ForRecordings picks the list formatter for an output name
func ForRecordings(format string) (RecordingsFormatter, error) {
	switch format {
	case FormatTable, "":
		return NewTableFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	}
	return nil, fmt.Errorf("unsupported output format %q (table, json, csv)", format)
}

// ForStats picks the stats formatter for an output name
func ForStats(format string) (StatsFormatter, error) {
	switch format {
	case FormatTable, "":
		return NewSummaryFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	}
	return nil, fmt.Errorf("unsupported output format %q (table, json)", format)
}

package formatter

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) FormatRecordings(w io.Writer, metas []model.RecordingMeta) error {
	cw := csv.NewWriter(w)

	headers := []string{"ID", "Start", "End", "Events", "Sessions", "Finalized"}
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, m := range metas {
		record := []string{
			m.ID,
			strconv.FormatInt(m.StartTime, 10),
			strconv.FormatInt(m.EndTime, 10),
			strconv.Itoa(m.EventCount),
			strings.Join(m.SessionIDs, ";"),
			strconv.FormatBool(m.Finalized),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

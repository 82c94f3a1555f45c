package formatter

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatRecordings(w io.Writer, metas []model.RecordingMeta) error {
	if metas == nil {
		metas = []model.RecordingMeta{}
	}
	return f.write(w, metas)
}

func (f *JSONFormatter) FormatStats(w io.Writer, report StatsReport) error {
	return f.write(w, report)
}

func (f *JSONFormatter) write(w io.Writer, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

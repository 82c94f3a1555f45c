package formatter

import (
	"io"
	"strings"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

// SummaryFormatter writes a plain-text stats report
type SummaryFormatter struct{}

func NewSummaryFormatter() *SummaryFormatter {
	return &SummaryFormatter{}
}

func (f *SummaryFormatter) FormatStats(w io.Writer, report StatsReport) error {
	tw := &tableWriter{w: w}
	s := report.Stats

	tw.printf("%s\n", strings.Repeat("=", 60))
	tw.printf("Recording %s\n", report.Meta.ID)
	tw.printf("%s\n\n", strings.Repeat("=", 60))

	if s.Entries == 0 {
		tw.printf("No events recorded\n\n%s\n", strings.Repeat("=", 60))
		return tw.err
	}

	tw.printf("Entries:   %d\n", s.Entries)
	tw.printf("Duration:  %s\n", util.FormatDuration(s.DurationMs))
	tw.printf("Sessions:  %d\n", len(report.Meta.SessionIDs))
	tw.printf("LLM steps: %d\n", s.LLMSteps)
	tw.printf("Errors:    %d\n\n", s.Errors)

	tw.printf("Token Breakdown:\n")
	tw.printf("  Input:       %s\n", util.FormatNumber(s.InputTokens))
	tw.printf("  Output:      %s\n", util.FormatNumber(s.OutputTokens))
	tw.printf("  Reasoning:   %s\n", util.FormatNumber(s.ReasoningTokens))
	tw.printf("  Cache Read:  %s\n", util.FormatNumber(s.CacheReadTokens))
	tw.printf("  Cache Write: %s\n", util.FormatNumber(s.CacheWriteTokens))
	tw.printf("  Total:       %s\n\n", util.FormatNumber(s.TotalTokens()))
	tw.printf("Cost: %s USD\n\n", util.FormatCurrency(s.TotalCost))

	tw.printf("By Category:\n")
	for _, c := range model.Categories {
		if n := s.ByCategory[c]; n > 0 {
			tw.printf("  %s %d\n", util.PadRight(string(c)+":", 12), n)
		}
	}
	tw.printf("\nBy Actor:\n")
	for _, a := range model.Actors {
		if n := s.ByActor[a]; n > 0 {
			tw.printf("  %s %d\n", util.PadRight(string(a)+":", 12), n)
		}
	}

	if len(s.Tools) > 0 {
		tw.printf("\nTools:\n%s\n", strings.Repeat("-", 60))
		for _, t := range s.Tools {
			avg := "-"
			if t.AvgDurationMs > 0 {
				avg = util.FormatDuration(t.AvgDurationMs)
			}
			tw.printf("  %s %5d calls  avg %s\n", util.PadRight(util.TruncateWidth(t.Name, 24), 24), t.Count, avg)
		}
	}

	tw.printf("\n%s\n", strings.Repeat("=", 60))
	return tw.err
}

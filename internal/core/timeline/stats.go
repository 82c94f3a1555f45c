package timeline

import (
	"sort"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// ToolStats aggregates calls of one tool
type ToolStats struct {
	Name          string `json:"name"`
	Count         int    `json:"count"`
	AvgDurationMs int64  `json:"avgDurationMs"`
}

// Stats summarizes a list of entries
type Stats struct {
	Entries          int                    `json:"entries"`
	InputTokens      int                    `json:"inputTokens"`
	OutputTokens     int                    `json:"outputTokens"`
	ReasoningTokens  int                    `json:"reasoningTokens"`
	CacheReadTokens  int                    `json:"cacheReadTokens"`
	CacheWriteTokens int                    `json:"cacheWriteTokens"`
	TotalCost        float64                `json:"totalCost"`
	Errors           int                    `json:"errors"`
	LLMSteps         int                    `json:"llmSteps"`
	DurationMs       int64                  `json:"durationMs"`
	ByCategory       map[model.Category]int `json:"byCategory"`
	ByActor          map[model.Actor]int    `json:"byActor"`
	Tools            []ToolStats            `json:"tools"`
}

// TotalTokens returns every counted token including cache traffic
func (s Stats) TotalTokens() int {
	return s.InputTokens + s.OutputTokens + s.ReasoningTokens + s.CacheReadTokens + s.CacheWriteTokens
}

type toolAccumulator struct {
	count     int
	durations int64
	timed     int
}

// ComputeStats aggregates token usage, cost, errors and tool activity.
// Tokens and cost are summed from step-finish entries, which carry the
// per-step usage; assistant message updates repeat the running totals.
func ComputeStats(entries []model.TimelineEntry) Stats {
	stats := Stats{
		Entries:    len(entries),
		ByCategory: make(map[model.Category]int),
		ByActor:    make(map[model.Actor]int),
	}
	if len(entries) == 0 {
		return stats
	}
	stats.DurationMs = entries[len(entries)-1].Timestamp - entries[0].Timestamp

	tools := make(map[string]*toolAccumulator)
	for i := range entries {
		entry := &entries[i]
		stats.ByCategory[entry.Category]++
		stats.ByActor[entry.From]++
		if entry.To != entry.From {
			stats.ByActor[entry.To]++
		}
		if entry.Category == model.CategoryError {
			stats.Errors++
		}

		if entry.ShortLabel == model.ShortLabelStepFinish {
			stats.LLMSteps++
			if md := entry.Metadata; md != nil {
				if md.Tokens != nil {
					stats.InputTokens += md.Tokens.Input
					stats.OutputTokens += md.Tokens.Output
					stats.ReasoningTokens += md.Tokens.Reasoning
					stats.CacheReadTokens += md.Tokens.Cache.Read
					stats.CacheWriteTokens += md.Tokens.Cache.Write
				}
				if md.Cost != nil {
					stats.TotalCost += *md.Cost
				}
			}
		}

		name := entry.ToolName()
		if name == "" {
			continue
		}
		acc, ok := tools[name]
		if !ok {
			acc = &toolAccumulator{}
			tools[name] = acc
		}
		// one call per pending state; later states of the same part carry the duration
		if entry.Metadata.Status == "pending" {
			acc.count++
		}
		if entry.Metadata.Duration != nil {
			acc.durations += *entry.Metadata.Duration
			acc.timed++
		}
	}

	for name, acc := range tools {
		ts := ToolStats{Name: name, Count: acc.count}
		if acc.timed > 0 {
			ts.AvgDurationMs = acc.durations / int64(acc.timed)
		}
		stats.Tools = append(stats.Tools, ts)
	}
	sort.Slice(stats.Tools, func(i, j int) bool {
		if stats.Tools[i].Count != stats.Tools[j].Count {
			return stats.Tools[i].Count > stats.Tools[j].Count
		}
		return stats.Tools[i].Name < stats.Tools[j].Name
	})
	return stats
}

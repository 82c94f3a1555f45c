package model

import (
	"encoding/json"
)

// CacheUsage holds prompt cache token counts
type CacheUsage struct {
	Read  int `json:"read"`
	Write int `json:"write"`
}

// TokenUsage holds token counts reported by the agent server
type TokenUsage struct {
	Input     int        `json:"input"`
	Output    int        `json:"output"`
	Reasoning int        `json:"reasoning"`
	Cache     CacheUsage `json:"cache"`
}

// Total returns all tokens including cache traffic
func (t TokenUsage) Total() int {
	return t.Input + t.Output + t.Reasoning + t.Cache.Read + t.Cache.Write
}

// Metadata carries category-specific details of an entry. Every field is optional.
type Metadata struct {
	Tokens     *TokenUsage     `json:"tokens,omitempty"`
	Cost       *float64        `json:"cost,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`
	ToolOutput string          `json:"toolOutput,omitempty"`
	ModelID    string          `json:"modelID,omitempty"`
	ProviderID string          `json:"providerID,omitempty"`
	Duration   *int64          `json:"duration,omitempty"`
	Error      string          `json:"error,omitempty"`
	Status     string          `json:"status,omitempty"`
	Delta      string          `json:"delta,omitempty"`
}

// Merge returns m overlaid with every field set in newer.
// Delta is not concatenated here; the coalescer owns that.
func (m *Metadata) Merge(newer *Metadata) *Metadata {
	if m == nil && newer == nil {
		return nil
	}
	merged := Metadata{}
	if m != nil {
		merged = *m
	}
	if newer == nil {
		return &merged
	}
	if newer.Tokens != nil {
		merged.Tokens = newer.Tokens
	}
	if newer.Cost != nil {
		merged.Cost = newer.Cost
	}
	if newer.ToolName != "" {
		merged.ToolName = newer.ToolName
	}
	if len(newer.ToolInput) > 0 {
		merged.ToolInput = newer.ToolInput
	}
	if newer.ToolOutput != "" {
		merged.ToolOutput = newer.ToolOutput
	}
	if newer.ModelID != "" {
		merged.ModelID = newer.ModelID
	}
	if newer.ProviderID != "" {
		merged.ProviderID = newer.ProviderID
	}
	if newer.Duration != nil {
		merged.Duration = newer.Duration
	}
	if newer.Error != "" {
		merged.Error = newer.Error
	}
	if newer.Status != "" {
		merged.Status = newer.Status
	}
	if newer.Delta != "" {
		merged.Delta = newer.Delta
	}
	return &merged
}

// TimelineEntry is one normalized unit of the timeline.
//
// Timestamp is the wall-clock time in milliseconds at normalization, not the
// upstream event time. SequenceIndex is the ordering key.
type TimelineEntry struct {
	ID            string          `json:"id"`
	Timestamp     int64           `json:"timestamp"`
	SequenceIndex int64           `json:"sequenceIndex"`
	SourceEvent   json.RawMessage `json:"sourceEvent,omitempty"`
	From          Actor           `json:"from"`
	To            Actor           `json:"to"`
	Label         string          `json:"label"`
	ShortLabel    string          `json:"shortLabel"`
	Category      Category        `json:"category"`
	SessionID     string          `json:"sessionID"`
	MessageID     string          `json:"messageID,omitempty"`
	PartID        string          `json:"partID,omitempty"`
	Metadata      *Metadata       `json:"metadata,omitempty"`
}

// ToolName returns the tool name from metadata, if any
func (e *TimelineEntry) ToolName() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata.ToolName
}

// ErrorText returns the error text from metadata, if any
func (e *TimelineEntry) ErrorText() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata.Error
}

// Involves reports whether the actor is on either end of the entry
func (e *TimelineEntry) Involves(a Actor) bool {
	return e.From == a || e.To == a
}

// TimelineState is a point-in-time copy of the timeline store
type TimelineState struct {
	Entries   []TimelineEntry
	Cursor    int
	Mode      Mode
	Snapshots map[int]int
	Version   uint64
}

// CursorEntry returns the entry under the cursor, or nil when empty
func (s *TimelineState) CursorEntry() *TimelineEntry {
	if s.Cursor < 0 || s.Cursor >= len(s.Entries) {
		return nil
	}
	return &s.Entries[s.Cursor]
}

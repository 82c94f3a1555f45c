package model

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestMetadataMerge(t *testing.T) {
	tests := []struct {
		name     string
		base     *Metadata
		newer    *Metadata
		expected *Metadata
	}{
		{
			name:     "both_nil",
			expected: nil,
		},
		{
			name:     "nil_base",
			newer:    &Metadata{Delta: "lo"},
			expected: &Metadata{Delta: "lo"},
		},
		{
			name:     "nil_newer_copies_base",
			base:     &Metadata{ToolName: "bash"},
			expected: &Metadata{ToolName: "bash"},
		},
		{
			name:  "newer_overrides_set_fields_only",
			base:  &Metadata{ToolName: "bash", Status: "running", Duration: int64Ptr(5)},
			newer: &Metadata{Status: "completed", Cost: float64Ptr(0.25)},
			expected: &Metadata{
				ToolName: "bash",
				Status:   "completed",
				Duration: int64Ptr(5),
				Cost:     float64Ptr(0.25),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.base.Merge(tt.newer))
		})
	}
}

func TestMetadataMergeDoesNotMutateBase(t *testing.T) {
	base := &Metadata{Status: "pending"}
	merged := base.Merge(&Metadata{Status: "done"})

	assert.Equal(t, "pending", base.Status)
	assert.Equal(t, "done", merged.Status)
}

func TestTimelineEntryAccessors(t *testing.T) {
	entry := TimelineEntry{From: ActorAgent, To: ActorTool}
	assert.Empty(t, entry.ToolName())
	assert.Empty(t, entry.ErrorText())
	assert.True(t, entry.Involves(ActorTool))
	assert.True(t, entry.Involves(ActorAgent))
	assert.False(t, entry.Involves(ActorUser))

	entry.Metadata = &Metadata{ToolName: "read", Error: "boom"}
	assert.Equal(t, "read", entry.ToolName())
	assert.Equal(t, "boom", entry.ErrorText())
}

func TestTimelineEntryJSONFieldNames(t *testing.T) {
	entry := TimelineEntry{
		ID:            "evt-1-0",
		Timestamp:     1700000000000,
		SequenceIndex: 3,
		SourceEvent:   []byte(`{"type":"session.idle"}`),
		From:          ActorLLM,
		To:            ActorAgent,
		Label:         "Text: hi",
		ShortLabel:    "Text",
		Category:      CategoryToken,
		SessionID:     "ses_1",
		PartID:        "prt_1",
		Metadata:      &Metadata{Delta: "hi"},
	}

	data, err := sonic.Marshal(entry)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, sonic.Unmarshal(data, &raw))
	for _, key := range []string{"id", "timestamp", "sequenceIndex", "sourceEvent", "from", "to",
		"label", "shortLabel", "category", "sessionID", "partID", "metadata"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "messageID")

	var decoded TimelineEntry
	require.NoError(t, sonic.Unmarshal(data, &decoded))
	assert.Equal(t, entry.SequenceIndex, decoded.SequenceIndex)
	assert.JSONEq(t, `{"type":"session.idle"}`, string(decoded.SourceEvent))
	assert.Equal(t, "hi", decoded.Metadata.Delta)
}

func TestTimelineStateCursorEntry(t *testing.T) {
	state := TimelineState{}
	assert.Nil(t, state.CursorEntry())

	state.Entries = []TimelineEntry{{ID: "a"}, {ID: "b"}}
	state.Cursor = 1
	require.NotNil(t, state.CursorEntry())
	assert.Equal(t, "b", state.CursorEntry().ID)
}

func TestRecordingMetaObserve(t *testing.T) {
	meta := RecordingMeta{ID: "rec-1", StartTime: 100}

	meta.Observe(TimelineEntry{Timestamp: 150, SessionID: "ses_b"})
	meta.Observe(TimelineEntry{Timestamp: 120, SessionID: "ses_a"})
	meta.Observe(TimelineEntry{Timestamp: 200, SessionID: "ses_b"})
	meta.Observe(TimelineEntry{Timestamp: 210})

	assert.Equal(t, 4, meta.EventCount)
	assert.Equal(t, int64(210), meta.EndTime)
	assert.Equal(t, []string{"ses_a", "ses_b"}, meta.SessionIDs)
}

func TestTokenUsageTotal(t *testing.T) {
	usage := TokenUsage{Input: 10, Output: 20, Reasoning: 5, Cache: CacheUsage{Read: 3, Write: 2}}
	assert.Equal(t, 40, usage.Total())
}

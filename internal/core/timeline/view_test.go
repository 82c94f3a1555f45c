package timeline

import (
	"testing"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/testing/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(entries []model.TimelineEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Label)
	}
	return out
}

func TestFilterMatch(t *testing.T) {
	entry := &model.TimelineEntry{
		From:       model.ActorTool,
		To:         model.ActorAgent,
		Label:      "Error: bash",
		ShortLabel: "bash",
		Category:   model.CategoryError,
		SessionID:  "ses_1",
		Metadata:   &model.Metadata{ToolName: "bash", Error: "Exit Status 1"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"session match", Filter{SessionID: "ses_1"}, true},
		{"session miss", Filter{SessionID: "ses_2"}, false},
		{"category match", Filter{Category: model.CategoryError}, true},
		{"category miss", Filter{Category: model.CategoryTool}, false},
		{"actor as from", Filter{Actor: model.ActorTool}, true},
		{"actor as to", Filter{Actor: model.ActorAgent}, true},
		{"actor miss", Filter{Actor: model.ActorUser}, false},
		{"tool match", Filter{ToolName: "bash"}, true},
		{"tool miss", Filter{ToolName: "read"}, false},
		{"search label case-insensitive", Filter{Search: "ERROR:"}, true},
		{"search error text", Filter{Search: "exit status"}, true},
		{"search miss", Filter{Search: "permission"}, false},
		{"conjunction", Filter{SessionID: "ses_1", Category: model.CategoryError, ToolName: "bash"}, true},
		{"conjunction with one miss", Filter{SessionID: "ses_1", Category: model.CategoryTool}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(entry))
		})
	}

	assert.True(t, Filter{}.IsEmpty())
	assert.False(t, Filter{Search: "x"}.IsEmpty())
}

func TestFilterToolNameWithoutMetadata(t *testing.T) {
	entry := &model.TimelineEntry{Label: "Agent Idle"}
	assert.False(t, Filter{ToolName: "bash"}.Match(entry))
	assert.True(t, Filter{Search: "idle"}.Match(entry))
}

func TestProjectSessionFilterUsesSequenceIndex(t *testing.T) {
	state := model.TimelineState{
		Entries: []model.TimelineEntry{
			{SequenceIndex: 0, Label: "A", SessionID: "s1"},
			{SequenceIndex: 1, Label: "B", SessionID: "s2"},
			{SequenceIndex: 2, Label: "C", SessionID: "s1"},
		},
		Cursor: 1,
		Mode:   model.ModePaused,
	}

	p := Project(state, Filter{SessionID: "s1"})
	assert.Equal(t, []string{"A", "C"}, labels(p.Filtered))
	assert.Equal(t, []string{"A"}, labels(p.Visible))
	require.NotNil(t, p.Current)
	assert.Equal(t, "A", p.Current.Label)
	assert.Equal(t, []string{"s1", "s2"}, p.SessionIDs)
}

func TestProjectWithoutSessionFilterUsesCursorIndex(t *testing.T) {
	state := model.TimelineState{
		Entries: []model.TimelineEntry{
			{SequenceIndex: 0, Label: "A", Category: model.CategoryTool},
			{SequenceIndex: 5, Label: "B", Category: model.CategoryToken},
			{SequenceIndex: 9, Label: "C", Category: model.CategoryTool},
		},
		Cursor: 1,
	}

	p := Project(state, Filter{})
	assert.Equal(t, []string{"A", "B"}, labels(p.Visible))

	p = Project(state, Filter{Category: model.CategoryTool})
	assert.Equal(t, []string{"A", "C"}, labels(p.Filtered))
	assert.Equal(t, []string{"A"}, labels(p.Visible))
	assert.Equal(t, 3, p.Total)
}

func TestProjectEmpty(t *testing.T) {
	p := Project(model.TimelineState{Mode: model.ModeLive}, Filter{SessionID: "s1"})
	assert.Empty(t, p.Filtered)
	assert.Empty(t, p.Visible)
	assert.Nil(t, p.Current)
	assert.Empty(t, p.ActiveActors)
}

func TestProjectRecentEdgesAndActors(t *testing.T) {
	entries := fixtures.Entries(12, "s1", 0, 10)
	entries[0].From, entries[0].To = model.ActorUser, model.ActorSystem
	state := model.TimelineState{Entries: entries, Cursor: 11}

	p := Project(state, Filter{})
	require.Len(t, p.RecentEdges, RecentEdgeCount)
	assert.Equal(t, int64(4), p.RecentEdges[0].SequenceIndex)
	assert.Equal(t, int64(11), p.RecentEdges[RecentEdgeCount-1].SequenceIndex)
	assert.Equal(t, []model.Actor{model.ActorUser, model.ActorSystem, model.ActorAgent, model.ActorTool}, p.ActiveActors)

	state.Cursor = 2
	p = Project(state, Filter{})
	assert.Len(t, p.RecentEdges, 3)
}

func TestViewRecomputesAfterMutation(t *testing.T) {
	s := NewStore(0)
	v := NewView(s)
	assert.Empty(t, v.Projection().Visible)

	require.NoError(t, s.AppendBatch(fixtures.Entries(3, "s1", 0, 10)))
	p := v.Projection()
	assert.Len(t, p.Visible, 3)

	s.SetMode(model.ModePaused)
	s.SetCursor(0)
	assert.Len(t, v.Projection().Visible, 1)

	v.SetFilter(Filter{SessionID: "other"})
	assert.Empty(t, v.Projection().Filtered)
	assert.Equal(t, "other", v.Filter().SessionID)

	v.SetFilter(Filter{})
	assert.Len(t, v.Projection().Filtered, 3)
}

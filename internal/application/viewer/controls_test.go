package viewer

import (
	"testing"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/playback"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/presentation/interaction"
	"github.com/penwyp/go-agent-timeline/internal/testing/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpeed struct{ speed float64 }

func (f *fakeSpeed) Speed() float64 { return f.speed }

func (f *fakeSpeed) Faster() float64 {
	f.speed = playback.NextSpeed(f.speed)
	return f.speed
}

func (f *fakeSpeed) Slower() float64 {
	f.speed = playback.PrevSpeed(f.speed)
	return f.speed
}

type controlsFixture struct {
	store    *timeline.Store
	view     *timeline.View
	state    *StateManager
	speed    *fakeSpeed
	online   bool
	controls *Controls
}

func newControlsFixture(t *testing.T, n int) *controlsFixture {
	t.Helper()
	f := &controlsFixture{
		store: timeline.NewStore(0),
		state: NewStateManager(),
		speed: &fakeSpeed{speed: 1},
	}
	require.NoError(t, f.store.AppendBatch(fixtures.Entries(n, "s1", 1000, 10)))
	f.view = timeline.NewView(f.store)
	f.controls = NewControls(f.store, f.view, f.speed, func() bool { return f.online }, f.state)
	return f
}

func char(r rune) interaction.KeyEvent {
	return interaction.KeyEvent{Type: interaction.KeyChar, Key: r}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		ev   interaction.KeyEvent
		want Action
	}{
		{char(' '), ActionTogglePlay},
		{char('q'), ActionQuit},
		{char('Q'), ActionQuit},
		{interaction.KeyEvent{Type: interaction.KeyCtrlC}, ActionQuit},
		{interaction.KeyEvent{Type: interaction.KeyEscape}, ActionEscape},
		{interaction.KeyEvent{Type: interaction.KeyLeft}, ActionStepBack},
		{interaction.KeyEvent{Type: interaction.KeyRight}, ActionStepForward},
		{char('h'), ActionJumpBack},
		{char('l'), ActionJumpForward},
		{interaction.KeyEvent{Type: interaction.KeyHome}, ActionFirst},
		{interaction.KeyEvent{Type: interaction.KeyEnd}, ActionLast},
		{char('+'), ActionFaster},
		{char('='), ActionFaster},
		{char('-'), ActionSlower},
		{char('L'), ActionLive},
		{char('?'), ActionHelp},
		{char('s'), ActionNextSession},
		{char('x'), ActionNone},
		{interaction.KeyEvent{Type: interaction.KeyUp}, ActionNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ActionFor(tt.ev), "key %q type %d", tt.ev.Key, tt.ev.Type)
	}
}

func TestTogglePlay(t *testing.T) {
	f := newControlsFixture(t, 5)
	require.Equal(t, model.ModeLive, f.store.Mode())

	f.controls.Apply(ActionTogglePlay)
	assert.Equal(t, model.ModePaused, f.store.Mode())
	assert.Equal(t, 4, f.store.Cursor())

	// offline at the last entry: rewind and play
	f.controls.Apply(ActionTogglePlay)
	assert.Equal(t, model.ModePlaying, f.store.Mode())
	assert.Equal(t, 0, f.store.Cursor())

	f.controls.Apply(ActionTogglePlay)
	assert.Equal(t, model.ModePaused, f.store.Mode())

	// offline mid-timeline: play from where we are
	f.store.SetCursor(2)
	f.controls.Apply(ActionTogglePlay)
	assert.Equal(t, model.ModePlaying, f.store.Mode())
	assert.Equal(t, 2, f.store.Cursor())

	f.store.SetMode(model.ModePaused)
	f.online = true
	f.controls.Apply(ActionTogglePlay)
	assert.Equal(t, model.ModeLive, f.store.Mode())
	assert.Equal(t, 4, f.store.Cursor())
}

func TestStepping(t *testing.T) {
	f := newControlsFixture(t, 25)

	f.controls.Apply(ActionStepBack)
	assert.Equal(t, model.ModePaused, f.store.Mode())
	assert.Equal(t, 23, f.store.Cursor())

	f.controls.Apply(ActionJumpBack)
	assert.Equal(t, 13, f.store.Cursor())

	f.controls.Apply(ActionStepForward)
	assert.Equal(t, 14, f.store.Cursor())

	f.controls.Apply(ActionJumpForward)
	f.controls.Apply(ActionJumpForward)
	assert.Equal(t, 24, f.store.Cursor(), "clamped to the last entry")

	f.store.SetMode(model.ModePlaying)
	f.controls.Apply(ActionFirst)
	assert.Equal(t, model.ModePaused, f.store.Mode())
	assert.Equal(t, 0, f.store.Cursor())

	f.controls.Apply(ActionJumpBack)
	assert.Equal(t, 0, f.store.Cursor())
}

func TestLastEntry(t *testing.T) {
	f := newControlsFixture(t, 5)
	f.controls.Apply(ActionFirst)

	f.controls.Apply(ActionLast)
	assert.Equal(t, 4, f.store.Cursor())
	assert.Equal(t, model.ModePaused, f.store.Mode(), "offline keeps the mode")

	f.controls.Apply(ActionFirst)
	f.online = true
	f.controls.Apply(ActionLast)
	assert.Equal(t, model.ModeLive, f.store.Mode())
}

func TestLiveAction(t *testing.T) {
	f := newControlsFixture(t, 5)
	f.controls.Apply(ActionFirst)

	f.controls.Apply(ActionLive)
	assert.Equal(t, model.ModeLive, f.store.Mode())
	assert.Equal(t, 4, f.store.Cursor())
	assert.Contains(t, f.state.Message(), "not connected")
}

func TestSpeedActions(t *testing.T) {
	f := newControlsFixture(t, 1)

	f.controls.Apply(ActionFaster)
	assert.Equal(t, 2.0, f.speed.speed)
	assert.Equal(t, "speed 2x", f.state.Message())

	for i := 0; i < 5; i++ {
		f.controls.Apply(ActionSlower)
	}
	assert.Equal(t, 0.25, f.speed.speed)
	assert.Equal(t, "speed 0.25x", f.state.Message())
}

func TestHelpAndQuit(t *testing.T) {
	f := newControlsFixture(t, 1)

	assert.False(t, f.controls.Apply(ActionHelp))
	assert.True(t, f.state.ShowHelp())

	assert.False(t, f.controls.Apply(ActionEscape), "escape closes help first")
	assert.False(t, f.state.ShowHelp())

	assert.True(t, f.controls.Apply(ActionEscape))
	assert.True(t, f.controls.Apply(ActionQuit))
	assert.False(t, f.controls.Apply(ActionNone))
}

func TestControlsOnEmptyTimeline(t *testing.T) {
	f := newControlsFixture(t, 0)

	f.controls.Apply(ActionStepForward)
	f.controls.Apply(ActionLast)
	assert.Equal(t, 0, f.store.Cursor())

	f.controls.Apply(ActionTogglePlay)
	assert.Equal(t, model.ModePlaying, f.store.Mode())
}

func TestNextSessionCycles(t *testing.T) {
	store := timeline.NewStore(0)
	entries := fixtures.Entries(6, "s1", 1000, 10)
	for i := range entries {
		if i%2 == 1 {
			entries[i].SessionID = "s2"
		}
	}
	require.NoError(t, store.AppendBatch(entries))
	view := timeline.NewView(store)
	view.SetFilter(timeline.Filter{Category: model.CategoryTool})
	state := NewStateManager()
	controls := NewControls(store, view, &fakeSpeed{speed: 1}, nil, state)

	controls.Apply(ActionNextSession)
	assert.Equal(t, "s1", view.Filter().SessionID)
	assert.Equal(t, model.CategoryTool, view.Filter().Category, "other fields kept")
	assert.Equal(t, "session s1", state.Message())
	assert.Len(t, view.Projection().Filtered, 3)

	controls.Apply(ActionNextSession)
	assert.Equal(t, "s2", view.Filter().SessionID)

	controls.Apply(ActionNextSession)
	assert.Equal(t, "", view.Filter().SessionID)
	assert.Equal(t, "all sessions", state.Message())
	assert.Len(t, view.Projection().Filtered, 6)
}

func TestNextSessionOnEmptyTimeline(t *testing.T) {
	f := newControlsFixture(t, 0)
	assert.False(t, f.controls.Apply(ActionNextSession))
	assert.Equal(t, "", f.view.Filter().SessionID)
}

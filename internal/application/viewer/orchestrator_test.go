package viewer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/data/stream"
	"github.com/penwyp/go-agent-timeline/internal/presentation/display"
	"github.com/penwyp/go-agent-timeline/internal/presentation/interaction"
	"github.com/penwyp/go-agent-timeline/internal/testing/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the printer and the test to share
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeDisplay struct {
	mu      sync.Mutex
	frames  []display.Frame
	entered bool
	exited  bool
}

func (d *fakeDisplay) EnterAlternateScreen() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entered = true
}

func (d *fakeDisplay) ExitAlternateScreen() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exited = true
}

func (d *fakeDisplay) Render(frame display.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, frame)
}

func (d *fakeDisplay) last() display.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return display.Frame{}
	}
	return d.frames[len(d.frames)-1]
}

type fakeInput struct {
	events chan interaction.KeyEvent
	closed bool
}

func (f *fakeInput) Events() <-chan interaction.KeyEvent { return f.events }

func (f *fakeInput) Close() error {
	f.closed = true
	return nil
}

type entryLog struct {
	mu      sync.Mutex
	entries []model.TimelineEntry
	states  []model.ConnectionState
}

func (l *entryLog) OnEntry(e model.TimelineEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *entryLog) OnStateChange(s model.ConnectionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *entryLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// stopCheck records, at the disconnected notification, whether playback had
// already stopped
type stopCheck struct {
	entryLog
	stopped func() bool

	mu      sync.Mutex
	checked bool
	atStop  bool
}

func (c *stopCheck) OnStateChange(s model.ConnectionState) {
	c.entryLog.OnStateChange(s)
	if s != model.StateDisconnected {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked = true
	c.atStop = c.stopped()
}

func TestNewOrchestratorRejectsBadSpeed(t *testing.T) {
	_, err := NewOrchestrator(&ViewerConfig{Speed: 3})
	assert.Error(t, err)
}

func TestPlainReplayPrintsEveryEntry(t *testing.T) {
	out := &syncBuffer{}
	o, err := NewOrchestrator(&ViewerConfig{Plain: true, Width: 120, Speed: 4}, WithOutput(out))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.RunReplay(ctx, fixtures.Entries(6, "s1", 1000, 10)))
	require.NoError(t, ctx.Err(), "replay finished on its own")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	for i, line := range lines {
		assert.Contains(t, line, "tool-"+string(rune('0'+i)))
	}
	assert.Equal(t, model.ModePaused, o.Store().Mode())
	assert.Equal(t, 5, o.Store().Cursor())
}

func TestPlainReplayAppliesFilter(t *testing.T) {
	entries := fixtures.Entries(6, "s1", 1000, 10)
	for i := range entries {
		if i%2 == 1 {
			entries[i].SessionID = "s2"
		}
	}

	out := &syncBuffer{}
	o, err := NewOrchestrator(&ViewerConfig{
		Plain:  true,
		Width:  120,
		Speed:  4,
		Filter: timeline.Filter{SessionID: "s2"},
	}, WithOutput(out))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.RunReplay(ctx, entries))
	require.NoError(t, ctx.Err())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "tool-1")
	assert.Contains(t, lines[1], "tool-3")
	assert.Contains(t, lines[2], "tool-5")
	assert.Equal(t, 5, o.Store().Cursor(), "the whole recording is played")
}

func TestInteractiveFrameUsesFilter(t *testing.T) {
	o, err := NewOrchestrator(&ViewerConfig{
		Filter: timeline.Filter{Search: "TOOL-2"},
	}, WithDisplay(&fakeDisplay{}))
	require.NoError(t, err)
	require.NoError(t, o.Store().AppendBatch(fixtures.Entries(4, "s1", 1000, 10)))

	p := o.Frame().Projection
	assert.Equal(t, 4, p.Total)
	require.Len(t, p.Filtered, 1)
	assert.Equal(t, "Call: tool-2", p.Filtered[0].Label)
}

func TestNewOrchestratorRejectsUnknownFilterValues(t *testing.T) {
	_, err := NewOrchestrator(&ViewerConfig{Filter: timeline.Filter{Category: "chat"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")

	_, err = NewOrchestrator(&ViewerConfig{Filter: timeline.Filter{Actor: "robot"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown actor")
}

func TestReplayRejectsEmptyRecording(t *testing.T) {
	o, err := NewOrchestrator(&ViewerConfig{Plain: true, Width: 80})
	require.NoError(t, err)
	assert.Error(t, o.RunReplay(context.Background(), nil))
}

func TestInteractiveReplay(t *testing.T) {
	disp := &fakeDisplay{}
	input := &fakeInput{events: make(chan interaction.KeyEvent, 4)}
	o, err := NewOrchestrator(&ViewerConfig{Title: "demo", UIRefreshRate: 50},
		WithDisplay(disp),
		WithInput(func() (InputHandler, error) { return input, nil }))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- o.RunReplay(context.Background(), fixtures.Entries(3, "s1", 1000, 10)) }()

	require.Eventually(t, func() bool { return o.Store().Mode() == model.ModePaused }, 5*time.Second, 5*time.Millisecond)

	input.events <- interaction.KeyEvent{Type: interaction.KeyChar, Key: '?'}
	require.Eventually(t, func() bool { return disp.last().ShowHelp }, 2*time.Second, 5*time.Millisecond)

	input.events <- interaction.KeyEvent{Type: interaction.KeyChar, Key: 'q'}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("viewer did not quit")
	}

	frame := disp.last()
	assert.Equal(t, "demo", frame.Title)
	assert.Equal(t, 3, frame.Projection.Total)
	assert.Equal(t, "replay", frame.Detail)
	assert.True(t, disp.entered)
	assert.True(t, disp.exited)
	assert.True(t, input.closed)
}

func TestInteractiveInputFailure(t *testing.T) {
	o, err := NewOrchestrator(&ViewerConfig{},
		WithDisplay(&fakeDisplay{}),
		WithInput(func() (InputHandler, error) { return nil, errors.New("not a terminal") }))
	require.NoError(t, err)

	err = o.RunReplay(context.Background(), fixtures.Entries(1, "s1", 0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a terminal")
}

func newLiveServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/global/event", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPlainLiveFollowsStream(t *testing.T) {
	g := fixtures.NewEventGenerator("ses_1")
	srv := newLiveServer(t, fixtures.SSE(
		g.SessionCreated("demo"),
		g.Status("busy"),
		g.Tool("prt_tool", "bash", "pending", 0, 0),
	))

	cfg := stream.DefaultConfig(srv.URL)
	cfg.CoalesceWindow = 10 * time.Millisecond
	out := &syncBuffer{}
	rec := &entryLog{}
	o, err := NewOrchestrator(&ViewerConfig{Stream: cfg, Plain: true, Width: 120},
		WithOutput(out), WithRecorder(rec))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.RunLive(ctx) }()

	require.Eventually(t, func() bool { return rec.count() == 3 }, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Call: bash") }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	text := out.String()
	assert.Contains(t, text, "-- connecting")
	assert.Contains(t, text, "-- connected")
	assert.Contains(t, text, "Session Created: demo")
	assert.Equal(t, 3, o.Store().Len())
	assert.Equal(t, model.ModeLive, o.Store().Mode())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, model.StateConnecting, rec.states[0])
	assert.Contains(t, rec.states, model.StateConnected)
}

func TestPlaybackStopsBeforeDisconnectIsReported(t *testing.T) {
	g := fixtures.NewEventGenerator("ses_1")
	srv := newLiveServer(t, fixtures.SSE(g.SessionCreated("demo"), g.Status("busy")))

	out := &syncBuffer{}
	rec := &stopCheck{}
	o, err := NewOrchestrator(&ViewerConfig{Stream: stream.DefaultConfig(srv.URL), Plain: true, Width: 120},
		WithOutput(out), WithRecorder(rec))
	require.NoError(t, err)
	rec.stopped = o.engine.Stopped

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.RunLive(ctx) }()
	require.Eventually(t, func() bool { return rec.count() == 2 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.True(t, rec.checked, "disconnected was reported")
	assert.True(t, rec.atStop, "playback still running when disconnect was reported")
}

package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/playback"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/data/stream"
	"github.com/penwyp/go-agent-timeline/internal/presentation/display"
	"github.com/penwyp/go-agent-timeline/internal/presentation/interaction"
	"github.com/penwyp/go-agent-timeline/internal/presentation/layout"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithRecorder forwards the live stream to r
func WithRecorder(r EntryRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithOutput sets where the display and plain printer write
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

// WithDisplay replaces the terminal display
func WithDisplay(d DisplayController) Option {
	return func(o *Orchestrator) { o.display = d }
}

// WithInput replaces the keyboard reader factory
func WithInput(open func() (InputHandler, error)) Option {
	return func(o *Orchestrator) { o.openInput = open }
}

// Orchestrator wires the connection manager, timeline store, playback engine
// and presentation together for one viewer session.
type Orchestrator struct {
	config *ViewerConfig
	logger util.LoggerInterface

	// Core components
	store        *timeline.Store
	view         *timeline.View
	engine       *playback.Engine
	stateManager *StateManager
	controls     *Controls

	// Live stream, nil when replaying
	manager  *stream.Manager
	recorder EntryRecorder

	// UI components
	out       io.Writer
	display   DisplayController
	plain     *display.PlainPrinter
	openInput func() (InputHandler, error)
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(config *ViewerConfig, opts ...Option) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &Orchestrator{
		config:       config,
		logger:       util.Component("viewer"),
		store:        timeline.NewStore(config.SnapshotInterval),
		stateManager: NewStateManager(),
		out:          os.Stdout,
		openInput: func() (InputHandler, error) {
			return interaction.NewKeyboardReader()
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	o.view = timeline.NewView(o.store)
	o.view.SetFilter(config.Filter)
	o.engine = playback.New(o.store,
		playback.WithConnected(o.connected),
		playback.WithSpeed(config.Speed))
	o.controls = NewControls(o.store, o.view, o.engine, o.connected, o.stateManager)

	if o.display == nil {
		o.display = display.NewTerminalDisplay(o.out)
	}
	if config.Plain {
		width := config.Width
		if width <= 0 {
			width = layout.DetectSizer().Width
		}
		o.plain = display.NewPlainPrinter(o.out, width)
	}
	return o, nil
}

// Store exposes the timeline store
func (o *Orchestrator) Store() *timeline.Store {
	return o.store
}

// RunLive connects to the agent server and follows its event stream until
// ctx is cancelled or the user quits.
func (o *Orchestrator) RunLive(ctx context.Context) error {
	o.logger.Infof("following %s", o.config.Stream.BaseURL)

	o.manager = stream.NewManager(o.config.Stream, stream.Handlers{
		OnEntry:       o.onEntry,
		OnStateChange: o.onStateChange,
		SequenceFloor: o.store.NextSequence,
	})

	o.engine.Start()
	o.manager.Connect(ctx)
	defer func() {
		o.engine.Stop()
		o.manager.Disconnect()
	}()

	if o.plain != nil {
		return o.runPlain(ctx, false)
	}
	return o.runInteractive(ctx)
}

// RunReplay plays back recorded entries from the start at the configured speed
func (o *Orchestrator) RunReplay(ctx context.Context, entries []model.TimelineEntry) error {
	if len(entries) == 0 {
		return errors.New("recording has no events")
	}
	o.logger.Infof("replaying %d entries at %gx", len(entries), o.engine.Speed())

	o.store.Clear()
	if err := o.store.AppendBatch(entries); err != nil {
		return fmt.Errorf("load recording: %w", err)
	}
	o.store.SetCursor(0)
	o.stateManager.SetConnection(model.StateDisconnected, "replay")

	o.engine.Start()
	defer o.engine.Stop()
	o.store.SetMode(model.ModePlaying)

	if o.plain != nil {
		return o.runPlain(ctx, true)
	}
	return o.runInteractive(ctx)
}

func (o *Orchestrator) connected() bool {
	return o.manager != nil && o.manager.Connected()
}

func (o *Orchestrator) onEntry(entry model.TimelineEntry) {
	if err := o.store.Append(entry); err != nil {
		if errors.Is(err, timeline.ErrOutOfOrder) {
			o.logger.Debugf("dropped entry %s at sequence %d: %v", entry.ID, entry.SequenceIndex, err)
		} else {
			o.logger.Warnf("dropped entry %s: %v", entry.ID, err)
		}
		return
	}
	if o.recorder != nil {
		o.recorder.OnEntry(entry)
	}
}

// onStateChange runs on the manager's goroutines. Disconnected is only
// reported when the live session ends, so playback stops before anyone sees it.
func (o *Orchestrator) onStateChange(state model.ConnectionState, detail string) {
	if state == model.StateDisconnected {
		o.engine.Stop()
	}
	o.stateManager.SetConnection(state, detail)
	if o.recorder != nil {
		o.recorder.OnStateChange(state)
	}
	if o.plain != nil {
		o.plain.PrintState(state, detail)
	}
}

// runInteractive drives the full-screen viewer
func (o *Orchestrator) runInteractive(ctx context.Context) error {
	input, err := o.openInput()
	if err != nil {
		return fmt.Errorf("failed to initialize keyboard: %w", err)
	}
	defer input.Close()

	o.display.EnterAlternateScreen()
	defer o.display.ExitAlternateScreen()

	uiTicker := time.NewTicker(time.Duration(float64(time.Second) / o.config.UIRefreshRate))
	defer uiTicker.Stop()

	o.updateDisplay()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("shutting down viewer")
			return nil

		case <-uiTicker.C:
			o.updateDisplay()

		case ev, ok := <-input.Events():
			if !ok {
				return nil
			}
			if o.controls.Apply(ActionFor(ev)) {
				return nil
			}
			o.updateDisplay()
		}
	}
}

// Frame builds the frame for the current state
func (o *Orchestrator) Frame() display.Frame {
	state, detail := o.stateManager.Connection()
	return display.Frame{
		Title:      o.config.Title,
		Projection: o.view.Projection(),
		State:      state,
		Detail:     detail,
		Speed:      o.engine.Speed(),
		ShowHelp:   o.stateManager.ShowHelp(),
		Message:    o.stateManager.Message(),
	}
}

func (o *Orchestrator) updateDisplay() {
	o.display.Render(o.Frame())
}

// runPlain prints entries matching the view filter as the cursor reaches
// them. With untilEnd it returns once playback stops on the last entry.
func (o *Orchestrator) runPlain(ctx context.Context, untilEnd bool) error {
	changed := make(chan struct{}, 1)
	unsubscribe := o.store.Subscribe(func(timeline.Change) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	filter := o.view.Filter()
	seen := -1
	for {
		state := o.store.Snapshot()
		if state.Cursor < seen {
			// a clear or a rewind; start over from the cursor
			o.plain.Reset()
			seen = state.Cursor - 1
		}
		for i := seen + 1; i <= state.Cursor && i < len(state.Entries); i++ {
			if filter.Match(&state.Entries[i]) {
				o.plain.PrintEntry(state.Entries[i])
			}
			seen = i
		}
		if untilEnd && state.Mode != model.ModePlaying && seen >= len(state.Entries)-1 {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

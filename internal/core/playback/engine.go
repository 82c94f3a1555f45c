package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

// Timeline is the part of the timeline store the engine drives
type Timeline interface {
	Snapshot() model.TimelineState
	CompareAndSetCursor(expected, index int, mode model.Mode) bool
	SetMode(mode model.Mode)
	Subscribe(fn timeline.Listener) func()
}

// Option configures an Engine
type Option func(*Engine)

// WithConnected reports whether the live stream is connected. At the end of
// the timeline playback resumes live when it is, and pauses otherwise.
func WithConnected(fn func() bool) Option {
	return func(e *Engine) { e.connected = fn }
}

// WithSpeed sets the initial speed; invalid values keep the default
func WithSpeed(speed float64) Option {
	return func(e *Engine) {
		if ValidateSpeed(speed) == nil {
			e.speed = speed
		}
	}
}

// Engine advances the cursor while the store is in playing mode, waiting
// between entries in proportion to their recorded timestamps.
type Engine struct {
	store     Timeline
	connected func() bool
	after     func(time.Duration) <-chan time.Time
	logger    util.LoggerInterface

	mu    sync.Mutex
	speed float64

	// cursor value written by the engine itself, used to tell our own
	// notifications apart from external scrubs; owned by the run goroutine
	lastCursor int

	notify      chan struct{}
	stop        chan struct{}
	done        chan struct{}
	unsubscribe func()
	startOnce   sync.Once
	stopOnce    sync.Once
}

func New(store Timeline, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		after:      time.After,
		logger:     util.Component("playback"),
		speed:      DefaultSpeed,
		lastCursor: -1,
		notify:     make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes to the store and launches the engine goroutine
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.unsubscribe = e.store.Subscribe(func(timeline.Change) {
			select {
			case e.notify <- struct{}{}:
			default:
			}
		})
		go e.run()
	})
}

// Stop terminates the engine. After it returns the cursor is never moved again.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
		// never started: nothing to wait for
		e.startOnce.Do(func() { close(e.done) })
		<-e.done
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
	})
}

// Stopped reports whether the engine has stopped for good
func (e *Engine) Stopped() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

// Speed returns the current playback speed
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed; it applies from the next scheduled step
func (e *Engine) SetSpeed(speed float64) error {
	if err := ValidateSpeed(speed); err != nil {
		return err
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	e.logger.Debugf("playback speed set to %vx", speed)
	return nil
}

// Faster and Slower step through the supported speeds
func (e *Engine) Faster() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = NextSpeed(e.speed)
	return e.speed
}

func (e *Engine) Slower() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = PrevSpeed(e.speed)
	return e.speed
}

func (e *Engine) run() {
	defer close(e.done)

	for {
		state := e.store.Snapshot()
		if state.Mode != model.ModePlaying {
			e.lastCursor = -1
			select {
			case <-e.stop:
				return
			case <-e.notify:
				continue
			}
		}

		delay, moved := e.step(state)
		if !moved {
			continue
		}
		if !e.wait(delay) {
			return
		}
	}
}

// step moves one entry forward, or leaves playing mode at the end
func (e *Engine) step(state model.TimelineState) (time.Duration, bool) {
	select {
	case <-e.stop:
		return 0, false
	default:
	}

	if state.Cursor >= len(state.Entries)-1 {
		next := model.ModePaused
		if e.connected != nil && e.connected() {
			next = model.ModeLive
		}
		e.logger.Info(fmt.Sprintf("Playback reached the end, switching to %s", next))
		e.store.SetMode(next)
		return 0, false
	}

	from := state.Cursor
	to := from + 1
	e.lastCursor = to
	if !e.store.CompareAndSetCursor(from, to, model.ModePlaying) {
		// scrubbed or mode changed since the snapshot; re-evaluate
		e.lastCursor = -1
		return 0, false
	}

	return StepDelay(&state.Entries[from], &state.Entries[to], e.Speed()), true
}

// wait sleeps for delay unless an external cursor or mode change cancels it.
// It returns false when the engine is stopping.
func (e *Engine) wait(delay time.Duration) bool {
	timer := e.after(delay)
	for {
		select {
		case <-e.stop:
			return false
		case <-timer:
			return true
		case <-e.notify:
			state := e.store.Snapshot()
			if state.Mode != model.ModePlaying || state.Cursor != e.lastCursor {
				return true
			}
		}
	}
}

package viewer

import (
	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/presentation/display"
	"github.com/penwyp/go-agent-timeline/internal/presentation/interaction"
)

// DisplayController draws frames on the terminal
type DisplayController interface {
	// EnterAlternateScreen switches to alternate terminal screen
	EnterAlternateScreen()
	// ExitAlternateScreen returns to normal terminal screen
	ExitAlternateScreen()
	// Render draws one frame
	Render(frame display.Frame)
}

// InputHandler processes keyboard and other input events
type InputHandler interface {
	// Events returns a channel of keyboard events
	Events() <-chan interaction.KeyEvent
	// Close cleans up input handler resources
	Close() error
}

// SpeedControl is the part of the playback engine the controls change
type SpeedControl interface {
	Speed() float64
	Faster() float64
	Slower() float64
}

// EntryRecorder receives the live stream for persistence
type EntryRecorder interface {
	OnEntry(entry model.TimelineEntry)
	OnStateChange(state model.ConnectionState)
}

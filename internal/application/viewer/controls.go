package viewer

import (
	"fmt"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/presentation/interaction"
)

// Action is a viewer command bound to a key
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionTogglePlay
	ActionStepBack
	ActionStepForward
	ActionJumpBack
	ActionJumpForward
	ActionFirst
	ActionLast
	ActionFaster
	ActionSlower
	ActionLive
	ActionHelp
	ActionEscape
	ActionNextSession
)

// jumpSize is the step for h and l
const jumpSize = 10

// ActionFor maps a key press to its action
func ActionFor(ev interaction.KeyEvent) Action {
	switch ev.Type {
	case interaction.KeyCtrlC:
		return ActionQuit
	case interaction.KeyEscape:
		return ActionEscape
	case interaction.KeyLeft:
		return ActionStepBack
	case interaction.KeyRight:
		return ActionStepForward
	case interaction.KeyHome:
		return ActionFirst
	case interaction.KeyEnd:
		return ActionLast
	case interaction.KeyChar:
	default:
		return ActionNone
	}

	switch ev.Key {
	case 'q', 'Q', 3:
		return ActionQuit
	case ' ':
		return ActionTogglePlay
	case 'h':
		return ActionJumpBack
	case 'l':
		return ActionJumpForward
	case '+', '=':
		return ActionFaster
	case '-', '_':
		return ActionSlower
	case 'L':
		return ActionLive
	case '?':
		return ActionHelp
	case 's':
		return ActionNextSession
	}
	return ActionNone
}

// Controls applies actions to the timeline, the playback speed and the
// viewer state.
type Controls struct {
	store     *timeline.Store
	view      *timeline.View
	speed     SpeedControl
	connected func() bool
	state     *StateManager
}

func NewControls(store *timeline.Store, view *timeline.View, speed SpeedControl, connected func() bool, state *StateManager) *Controls {
	if connected == nil {
		connected = func() bool { return false }
	}
	return &Controls{store: store, view: view, speed: speed, connected: connected, state: state}
}

// Apply performs the action and reports whether the viewer should exit
func (c *Controls) Apply(action Action) bool {
	switch action {
	case ActionQuit:
		return true
	case ActionEscape:
		if c.state.ShowHelp() {
			c.state.SetShowHelp(false)
			return false
		}
		return true
	case ActionHelp:
		c.state.ToggleHelp()
	case ActionTogglePlay:
		c.togglePlay()
	case ActionStepBack:
		c.step(-1)
	case ActionStepForward:
		c.step(1)
	case ActionJumpBack:
		c.step(-jumpSize)
	case ActionJumpForward:
		c.step(jumpSize)
	case ActionFirst:
		c.pause()
		c.store.SetCursor(0)
	case ActionLast:
		c.store.SetCursor(c.store.Len() - 1)
		if c.connected() {
			c.store.SetMode(model.ModeLive)
		}
	case ActionFaster:
		c.state.SetMessage(fmt.Sprintf("speed %gx", c.speed.Faster()))
	case ActionSlower:
		c.state.SetMessage(fmt.Sprintf("speed %gx", c.speed.Slower()))
	case ActionLive:
		c.store.SetMode(model.ModeLive)
		if !c.connected() {
			c.state.SetMessage("following live, not connected")
		}
	case ActionNextSession:
		c.nextSession()
	}
	return false
}

// nextSession moves the session filter through every session seen so far,
// then back to all sessions. Other filter fields are kept.
func (c *Controls) nextSession() {
	filter := c.view.Filter()
	var sessions []string
	for _, id := range c.view.Projection().SessionIDs {
		if id != "" {
			sessions = append(sessions, id)
		}
	}

	next := ""
	if filter.SessionID == "" {
		if len(sessions) > 0 {
			next = sessions[0]
		}
	} else {
		for i, id := range sessions {
			if id == filter.SessionID && i+1 < len(sessions) {
				next = sessions[i+1]
			}
		}
	}

	filter.SessionID = next
	c.view.SetFilter(filter)
	if next == "" {
		c.state.SetMessage("all sessions")
		return
	}
	c.state.SetMessage("session " + next)
}

func (c *Controls) togglePlay() {
	switch c.store.Mode() {
	case model.ModeLive, model.ModePlaying:
		c.store.SetMode(model.ModePaused)
	case model.ModePaused:
		if c.connected() {
			c.store.SetMode(model.ModeLive)
			return
		}
		if n := c.store.Len(); n > 0 && c.store.Cursor() >= n-1 {
			c.store.SetCursor(0)
		}
		c.store.SetMode(model.ModePlaying)
	}
}

// step pauses and moves the cursor by delta; the store clamps the result
func (c *Controls) step(delta int) {
	c.pause()
	c.store.SetCursor(c.store.Cursor() + delta)
}

func (c *Controls) pause() {
	if c.store.Mode() != model.ModePaused {
		c.store.SetMode(model.ModePaused)
	}
}

package viewer

import (
	"sync"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// messageTTL is how long a status message stays in the header
const messageTTL = 3 * time.Second

// StateManager holds the viewer state that is not part of the timeline
type StateManager struct {
	mu sync.RWMutex

	connection model.ConnectionState
	detail     string

	showHelp  bool
	message   string
	messageAt time.Time

	now func() time.Time
}

func NewStateManager() *StateManager {
	return &StateManager{
		connection: model.StateDisconnected,
		now:        time.Now,
	}
}

// SetConnection records the latest connection state and its detail
func (sm *StateManager) SetConnection(state model.ConnectionState, detail string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.connection = state
	sm.detail = detail
}

func (sm *StateManager) Connection() (model.ConnectionState, string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.connection, sm.detail
}

// ToggleHelp flips the help overlay and returns the new value
func (sm *StateManager) ToggleHelp() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.showHelp = !sm.showHelp
	return sm.showHelp
}

func (sm *StateManager) SetShowHelp(show bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.showHelp = show
}

func (sm *StateManager) ShowHelp() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.showHelp
}

// SetMessage shows a transient status message
func (sm *StateManager) SetMessage(msg string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.message = msg
	sm.messageAt = sm.now()
}

// Message returns the status message, or "" once it has expired
func (sm *StateManager) Message() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.message == "" || sm.now().Sub(sm.messageAt) > messageTTL {
		return ""
	}
	return sm.message
}

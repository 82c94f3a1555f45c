package timeline

import (
	"fmt"
	"sync"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// Store is the append-only timeline log with a cursor and playback mode.
// All mutators are serialized; readers get copies via Snapshot.
type Store struct {
	mu               sync.RWMutex
	entries          []model.TimelineEntry
	cursor           int
	mode             model.Mode
	snapshots        map[int]int
	snapshotInterval int
	version          uint64

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// NewStore creates an empty store in live mode
func NewStore(snapshotInterval int) *Store {
	if snapshotInterval <= 0 {
		snapshotInterval = DefaultSnapshotInterval
	}
	return &Store{
		mode:             model.ModeLive,
		snapshots:        make(map[int]int),
		snapshotInterval: snapshotInterval,
		listeners:        make(map[int]Listener),
	}
}

// Append adds one entry at the end
func (s *Store) Append(entry model.TimelineEntry) error {
	return s.AppendBatch([]model.TimelineEntry{entry})
}

// AppendBatch adds entries at the end in order. Entries that do not extend
// the sequence are rejected with ErrOutOfOrder; the valid prefix before the
// first rejection is kept.
func (s *Store) AppendBatch(entries []model.TimelineEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	var appendErr error
	appended := 0
	for _, entry := range entries {
		if n := len(s.entries); n > 0 && entry.SequenceIndex <= s.entries[n-1].SequenceIndex {
			appendErr = fmt.Errorf("%w: got %d after %d", ErrOutOfOrder, entry.SequenceIndex, s.entries[n-1].SequenceIndex)
			break
		}
		idx := len(s.entries)
		s.entries = append(s.entries, entry)
		if idx%s.snapshotInterval == 0 {
			s.snapshots[idx/s.snapshotInterval] = idx
		}
		appended++
	}
	if appended == 0 {
		s.mu.Unlock()
		return appendErr
	}
	if s.mode == model.ModeLive {
		s.cursor = len(s.entries) - 1
	}
	change := s.changeLocked(ChangeAppend)
	s.mu.Unlock()

	s.notify(change)
	return appendErr
}

// SetCursor moves the cursor, clamping into [0, len-1]
func (s *Store) SetCursor(index int) {
	s.mu.Lock()
	s.cursor = s.clampLocked(index)
	change := s.changeLocked(ChangeCursor)
	s.mu.Unlock()

	s.notify(change)
}

// CompareAndSetCursor moves the cursor to index only while it still sits at
// expected and the mode is mode. It reports whether the move happened.
func (s *Store) CompareAndSetCursor(expected, index int, mode model.Mode) bool {
	s.mu.Lock()
	if s.cursor != expected || s.mode != mode {
		s.mu.Unlock()
		return false
	}
	s.cursor = s.clampLocked(index)
	change := s.changeLocked(ChangeCursor)
	s.mu.Unlock()

	s.notify(change)
	return true
}

// SetMode switches playback mode. Live snaps the cursor to the newest entry.
func (s *Store) SetMode(mode model.Mode) {
	s.mu.Lock()
	s.mode = mode
	if mode == model.ModeLive {
		s.cursor = s.clampLocked(len(s.entries) - 1)
	}
	change := s.changeLocked(ChangeMode)
	s.mu.Unlock()

	s.notify(change)
}

// Clear resets to the empty, live, cursor-0 state
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.cursor = 0
	s.mode = model.ModeLive
	s.snapshots = make(map[int]int)
	change := s.changeLocked(ChangeClear)
	s.mu.Unlock()

	s.notify(change)
}

// Snapshot returns a copy of the current state. The entries slice shares
// backing storage with the store but is never written below its length.
func (s *Store) Snapshot() model.TimelineState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make(map[int]int, len(s.snapshots))
	for k, v := range s.snapshots {
		snapshots[k] = v
	}
	return model.TimelineState{
		Entries:   s.entries[:len(s.entries):len(s.entries)],
		Cursor:    s.cursor,
		Mode:      s.mode,
		Snapshots: snapshots,
		Version:   s.version,
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

func (s *Store) Mode() model.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// NextSequence returns the first sequence index that would be accepted
func (s *Store) NextSequence() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[len(s.entries)-1].SequenceIndex + 1
}

// SnapshotIndex returns the recorded entry index at or before idx,
// the nearest seek point for very large logs.
func (s *Store) SnapshotIndex(idx int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx <= 0 {
		return 0
	}
	if at, ok := s.snapshots[idx/s.snapshotInterval]; ok {
		return at
	}
	return 0
}

// Subscribe registers a listener and returns a function removing it
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) clampLocked(index int) int {
	if len(s.entries) == 0 || index < 0 {
		return 0
	}
	if index > len(s.entries)-1 {
		return len(s.entries) - 1
	}
	return index
}

func (s *Store) changeLocked(kind ChangeKind) Change {
	s.version++
	return Change{
		Kind:    kind,
		Version: s.version,
		Cursor:  s.cursor,
		Mode:    s.mode,
		Len:     len(s.entries),
	}
}

func (s *Store) notify(change Change) {
	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}

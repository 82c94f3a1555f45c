package normalizer

import (
	"fmt"
	"sync"
	"time"
)

// Sequencer hands out strictly increasing sequence indexes and entry IDs.
// One Sequencer belongs to one Normalizer; there is no package-level counter.
type Sequencer struct {
	mu    sync.Mutex
	next  int64
	clock func() time.Time
}

func NewSequencer() *Sequencer {
	return &Sequencer{clock: time.Now}
}

// Next returns the next index and an ID of the form evt-<unix ms>-<index>
func (s *Sequencer) Next() (int64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.next
	s.next++
	return seq, fmt.Sprintf("evt-%d-%d", s.clock().UnixMilli(), seq)
}

// Peek returns the index the next call to Next will hand out
func (s *Sequencer) Peek() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Reset starts a new logical session at floor. Callers pass the first index
// not yet used by the store they feed, so a reset never collides with it.
func (s *Sequencer) Reset(floor int64) {
	if floor < 0 {
		floor = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = floor
}

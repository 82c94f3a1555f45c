package coalescer

import (
	"sort"
	"sync"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// DefaultWindow is how long a token part accumulates fragments after the last one
const DefaultWindow = 100 * time.Millisecond

// FlushFunc receives entries in emission order. It is called with the
// coalescer's lock held and must not call back into the Coalescer.
type FlushFunc func(entry model.TimelineEntry)

type accumulator struct {
	entry model.TimelineEntry
	timer *time.Timer
	gen   uint64
}

// Coalescer merges bursts of streaming token fragments for the same part into
// one entry. Everything else passes straight through.
//
// A merged entry keeps the sequence index of its first fragment, so before
// anything with a higher index is emitted, older accumulators are flushed.
// Emission order therefore always follows sequence order.
type Coalescer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*accumulator
	flush   FlushFunc
	gen     uint64
}

func New(window time.Duration, flush FlushFunc) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coalescer{
		window:  window,
		pending: make(map[string]*accumulator),
		flush:   flush,
	}
}

// Key returns the coalesce key for an entry, or "" when it must not be merged
func Key(entry model.TimelineEntry) string {
	if entry.Category != model.CategoryToken || entry.PartID == "" {
		return ""
	}
	return "token:" + entry.PartID
}

// Push accepts one normalized entry
func (c *Coalescer) Push(entry model.TimelineEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(entry)
	if key == "" {
		c.flushOlderThan(entry.SequenceIndex)
		c.flush(entry)
		return
	}

	acc, ok := c.pending[key]
	if !ok {
		acc = &accumulator{entry: entry}
		c.pending[key] = acc
	} else {
		acc.entry = merge(acc.entry, entry)
		acc.timer.Stop()
	}

	// generations are unique across keys so a stale timer never matches a newer accumulator
	c.gen++
	gen := c.gen
	acc.gen = gen
	acc.timer = time.AfterFunc(c.window, func() { c.expire(key, gen) })
}

// FlushAll emits every pending accumulator, oldest first
func (c *Coalescer) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushOlderThan(-1)
}

// Close flushes pending accumulators and stops their timers.
// Entries pushed afterwards are handled as usual.
func (c *Coalescer) Close() {
	c.FlushAll()
}

// Pending returns the number of open accumulators
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coalescer) expire(key string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acc, ok := c.pending[key]
	if !ok || acc.gen != gen {
		return
	}
	c.flushOlderThan(acc.entry.SequenceIndex)
	delete(c.pending, key)
	c.flush(acc.entry)
}

// flushOlderThan emits accumulators whose index is below seq.
// A negative seq flushes everything.
func (c *Coalescer) flushOlderThan(seq int64) {
	if len(c.pending) == 0 {
		return
	}

	var due []string
	for key, acc := range c.pending {
		if seq < 0 || acc.entry.SequenceIndex < seq {
			due = append(due, key)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return c.pending[due[i]].entry.SequenceIndex < c.pending[due[j]].entry.SequenceIndex
	})

	for _, key := range due {
		acc := c.pending[key]
		acc.timer.Stop()
		delete(c.pending, key)
		c.flush(acc.entry)
	}
}

func merge(existing, next model.TimelineEntry) model.TimelineEntry {
	merged := existing
	merged.Timestamp = next.Timestamp
	merged.Label = next.Label
	merged.ShortLabel = next.ShortLabel
	merged.SourceEvent = next.SourceEvent

	delta := deltaOf(existing) + deltaOf(next)
	merged.Metadata = existing.Metadata.Merge(next.Metadata)
	if merged.Metadata == nil && delta != "" {
		merged.Metadata = &model.Metadata{}
	}
	if merged.Metadata != nil {
		merged.Metadata.Delta = delta
	}
	return merged
}

func deltaOf(entry model.TimelineEntry) string {
	if entry.Metadata == nil {
		return ""
	}
	return entry.Metadata.Delta
}

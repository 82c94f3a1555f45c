package stream

import (
	"fmt"
	"time"
)

// Retry defaults for the event stream
const (
	DefaultBackoffInitial = 1000 * time.Millisecond
	DefaultBackoffFactor  = 1.5
	DefaultBackoffMax     = 15000 * time.Millisecond
)

// Backoff yields growing retry delays. Next returns the current delay and
// then grows it, so the first retry waits the initial delay.
type Backoff struct {
	initial  time.Duration
	factor   float64
	max      time.Duration
	current  time.Duration
	attempts int
}

func NewBackoff(initial time.Duration, factor float64, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if factor < 1 {
		factor = DefaultBackoffFactor
	}
	if max < initial {
		max = initial
	}
	return &Backoff{initial: initial, factor: factor, max: max, current: initial}
}

// Next returns the delay for the next retry
func (b *Backoff) Next() time.Duration {
	delay := b.current
	b.attempts++

	grown := time.Duration(float64(b.current) * b.factor)
	if grown > b.max {
		grown = b.max
	}
	b.current = grown
	return delay
}

// Reset goes back to the initial delay and zero attempts
func (b *Backoff) Reset() {
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns how many delays were handed out since the last reset
func (b *Backoff) Attempts() int {
	return b.attempts
}

func retryDetail(attempt int, delay time.Duration) string {
	return fmt.Sprintf("Retry #%d in %.1fs", attempt, delay.Seconds())
}

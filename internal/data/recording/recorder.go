package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

// DefaultRecorderBuffer is how many sink writes may queue before callers block
const DefaultRecorderBuffer = 4096

const sinkWriteTimeout = 5 * time.Second

type jobKind int

const (
	jobCreate jobKind = iota
	jobAppend
	jobFinalize
)

type job struct {
	kind  jobKind
	entry model.TimelineEntry
}

// Recorder mirrors a live connection into a Sink. A recording is created
// when the connection becomes connected and finalized when it leaves that
// state. Writes run on one worker goroutine in submission order; failures
// are logged and never reach the caller.
type Recorder struct {
	sink   Sink
	logger util.LoggerInterface
	jobs   chan job
	done   chan struct{}

	mu        sync.Mutex
	connected bool
	closed    bool

	// separate lock: producers may block on jobs while holding mu
	idMu   sync.Mutex
	lastID string

	// owned by the worker
	current string
}

func NewRecorder(sink Sink, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultRecorderBuffer
	}
	r := &Recorder{
		sink:   sink,
		logger: util.Component("recorder"),
		jobs:   make(chan job, buffer),
		done:   make(chan struct{}),
	}
	go r.work()
	return r
}

// OnStateChange follows connection transitions
func (r *Recorder) OnStateChange(state model.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	switch {
	case state == model.StateConnected && !r.connected:
		r.connected = true
		r.jobs <- job{kind: jobCreate}
	case state != model.StateConnected && r.connected:
		r.connected = false
		r.jobs <- job{kind: jobFinalize}
	}
}

// OnEntry queues an entry for the open recording, if any
func (r *Recorder) OnEntry(entry model.TimelineEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.connected {
		return
	}
	r.jobs <- job{kind: jobAppend, entry: entry}
}

// Close finalizes any open recording and waits for queued writes
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.connected {
		r.connected = false
		r.jobs <- job{kind: jobFinalize}
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	<-r.done
}

// LastRecordingID returns the most recently created recording, or ""
func (r *Recorder) LastRecordingID() string {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	return r.lastID
}

func (r *Recorder) work() {
	defer close(r.done)
	for j := range r.jobs {
		r.run(j)
	}
}

func (r *Recorder) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()

	switch j.kind {
	case jobCreate:
		id, err := r.sink.CreateRecording(ctx)
		if err != nil {
			r.current = ""
			r.logger.Error(fmt.Sprintf("Failed to create recording: %v", err))
			return
		}
		r.current = id
		r.idMu.Lock()
		r.lastID = id
		r.idMu.Unlock()
		r.logger.Info(fmt.Sprintf("Recording started: %s", id))

	case jobAppend:
		if r.current == "" {
			return
		}
		if err := r.sink.AppendEvent(ctx, r.current, j.entry); err != nil {
			r.logger.Error(fmt.Sprintf("Failed to record entry %d: %v", j.entry.SequenceIndex, err))
		}

	case jobFinalize:
		if r.current == "" {
			return
		}
		if err := r.sink.FinalizeRecording(ctx, r.current); err != nil {
			r.logger.Error(fmt.Sprintf("Failed to finalize recording %s: %v", r.current, err))
		} else {
			r.logger.Info(fmt.Sprintf("Recording finalized: %s", r.current))
		}
		r.current = ""
	}
}

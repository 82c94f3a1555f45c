package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/data/coalescer"
	"github.com/penwyp/go-agent-timeline/internal/data/normalizer"
	"github.com/penwyp/go-agent-timeline/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/penwyp/go-agent-timeline/internal/data/stream"

// Endpoint and loop defaults
const (
	DefaultHealthPath    = "/health"
	DefaultStreamPath    = "/global/event"
	DefaultProbeTimeout  = 3 * time.Second
	DefaultYieldInterval = 8 * time.Millisecond
)

// ErrUnreachable is returned when neither the health endpoint nor the base URL answers
var ErrUnreachable = errors.New("server not reachable")

// StatusError reports a non-2xx answer from the stream endpoint
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream endpoint returned %s", e.Status)
}

// Config controls endpoints, retry pacing and coalescing
type Config struct {
	BaseURL        string
	HealthPath     string
	StreamPath     string
	ProbeTimeout   time.Duration
	BackoffInitial time.Duration
	BackoffFactor  float64
	BackoffMax     time.Duration
	CoalesceWindow time.Duration
	YieldInterval  time.Duration
	HTTPClient     *http.Client
}

// DefaultConfig returns the stock settings for a server URL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		HealthPath:     DefaultHealthPath,
		StreamPath:     DefaultStreamPath,
		ProbeTimeout:   DefaultProbeTimeout,
		BackoffInitial: DefaultBackoffInitial,
		BackoffFactor:  DefaultBackoffFactor,
		BackoffMax:     DefaultBackoffMax,
		CoalesceWindow: coalescer.DefaultWindow,
		YieldInterval:  DefaultYieldInterval,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig(c.BaseURL)
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HealthPath == "" {
		c.HealthPath = def.HealthPath
	}
	if c.StreamPath == "" {
		c.StreamPath = def.StreamPath
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.YieldInterval <= 0 {
		c.YieldInterval = def.YieldInterval
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
}

// Handlers receive the manager's output. All are optional and are called
// from the manager's goroutines; OnEntry is called in sequence order.
type Handlers struct {
	OnEntry       func(entry model.TimelineEntry)
	OnStateChange func(state model.ConnectionState, detail string)
	OnRawEvent    func(ev normalizer.RawEvent)
	// SequenceFloor returns the first sequence index free for a fresh stream
	SequenceFloor func() int64
}

// Manager keeps one event stream open against the agent server, retrying
// with backoff until Disconnect.
type Manager struct {
	cfg        Config
	handlers   Handlers
	normalizer *normalizer.Normalizer
	coalescer  *coalescer.Coalescer
	backoff    *Backoff
	tracer     trace.Tracer
	logger     util.LoggerInterface

	mu     sync.Mutex
	state  model.ConnectionState
	detail string
	cancel context.CancelFunc
	done   chan struct{}
	// done of the most recent loop, kept after the loop releases itself
	last   chan struct{}
}

func NewManager(cfg Config, handlers Handlers) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:        cfg,
		handlers:   handlers,
		normalizer: normalizer.New(normalizer.NewSequencer()),
		backoff:    NewBackoff(cfg.BackoffInitial, cfg.BackoffFactor, cfg.BackoffMax),
		tracer:     otel.Tracer(tracerName),
		logger:     util.Component("stream"),
		state:      model.StateDisconnected,
	}
	m.coalescer = coalescer.New(cfg.CoalesceWindow, m.emit)
	return m
}

// State returns the connection state and its detail text
func (m *Manager) State() (model.ConnectionState, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.detail
}

// Connected reports whether the stream is currently live
func (m *Manager) Connected() bool {
	state, _ := m.State()
	return state == model.StateConnected
}

// Connect starts the connection loop. It returns immediately; progress is
// reported through OnStateChange. Calling it while running is a no-op. When
// ctx ends the loop stops as if Disconnect had been called.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.last = m.done
	done := m.done
	m.mu.Unlock()

	m.backoff.Reset()
	m.logger.Info(fmt.Sprintf("Connecting to %s", m.cfg.BaseURL))
	go m.run(runCtx, done)
}

// Disconnect stops the loop, waits for it to exit, flushes pending
// coalesced entries and reports disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done := m.cancel, m.last
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	m.coalescer.FlushAll()
	if state, _ := m.State(); state == model.StateDisconnected {
		return
	}
	m.setState(model.StateDisconnected, "")
	m.logger.Info("Disconnected")
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer m.finish(done)

	for attempt := 1; ; attempt++ {
		err := m.attempt(ctx, attempt)
		m.coalescer.FlushAll()
		if ctx.Err() != nil {
			return
		}

		delay := m.backoff.Next()
		detail := retryDetail(m.backoff.Attempts(), delay)
		var statusErr *StatusError
		switch {
		case err == nil:
			m.setState(model.StateWaiting, "Server disconnected. "+detail)
		case errors.As(err, &statusErr):
			m.setState(model.StateError, fmt.Sprintf("HTTP %d. %s", statusErr.StatusCode, detail))
		default:
			m.setState(model.StateWaiting, detail)
		}
		if err != nil {
			m.logger.Warn(fmt.Sprintf("Stream attempt %d failed: %v (%s)", attempt, err, detail))
		} else {
			m.logger.Info(fmt.Sprintf("Server closed the stream (%s)", detail))
		}

		if err := sleepWithContext(ctx, delay); err != nil {
			return
		}
	}
}

// finish releases the loop. When the parent context ended it (no Disconnect
// claimed done), it also flushes and reports disconnected so a later Connect
// starts fresh.
func (m *Manager) finish(done chan struct{}) {
	defer close(done)

	m.mu.Lock()
	owned := m.done == done
	m.mu.Unlock()
	if !owned {
		return
	}
	m.coalescer.FlushAll()

	m.mu.Lock()
	if m.done != done {
		// Disconnect claimed the loop meanwhile and reports for it
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.cancel, m.done = nil, nil
	m.state, m.detail = model.StateDisconnected, ""
	m.mu.Unlock()

	m.notifyState(model.StateDisconnected, "")
	m.logger.Info("Context ended, disconnected")
}

// attempt probes, opens and consumes one stream. A nil error means the
// server ended the stream cleanly.
func (m *Manager) attempt(ctx context.Context, n int) (err error) {
	ctx, span := m.tracer.Start(ctx, "stream.attempt", trace.WithAttributes(
		attribute.Int("stream.attempt", n),
		attribute.String("stream.url", m.cfg.BaseURL),
	))
	defer func() {
		outcome := "eof"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("stream.outcome", outcome))
		span.End()
	}()

	m.setState(model.StateConnecting, "")
	if err := m.probe(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+m.cfg.StreamPath, nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	floor := int64(0)
	if m.handlers.SequenceFloor != nil {
		floor = m.handlers.SequenceFloor()
	}
	m.normalizer.Sequencer().Reset(floor)
	m.backoff.Reset()
	m.setState(model.StateConnected, "")
	m.logger.Info(fmt.Sprintf("Stream connected (attempt %d, sequence floor %d)", n, floor))

	return m.consume(ctx, resp.Body)
}

// probe checks reachability before opening a long-lived stream.
// Any HTTP answer counts, including errors from the health path.
func (m *Manager) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	healthErr := m.ping(probeCtx, m.cfg.BaseURL+m.cfg.HealthPath)
	if healthErr == nil {
		return nil
	}
	if baseErr := m.ping(probeCtx, m.cfg.BaseURL); baseErr != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, baseErr)
	}
	return nil
}

func (m *Manager) ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.Body.Close()
}

func (m *Manager) consume(ctx context.Context, body io.Reader) error {
	decoder := NewDecoder(body)
	lastYield := time.Now()

	for {
		ev, err := decoder.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
		m.handle(ev.Data)

		if time.Since(lastYield) > m.cfg.YieldInterval {
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				return err
			}
			lastYield = time.Now()
		}
	}
}

func (m *Manager) handle(data []byte) {
	raw, err := normalizer.DecodeEnvelope(data)
	if err != nil {
		m.logger.Debugf("Skipping event: %v", err)
		return
	}
	if m.handlers.OnRawEvent != nil {
		m.handlers.OnRawEvent(raw)
	}
	if entry := m.normalizer.Normalize(raw); entry != nil {
		m.coalescer.Push(*entry)
	}
}

func (m *Manager) emit(entry model.TimelineEntry) {
	if m.handlers.OnEntry != nil {
		m.handlers.OnEntry(entry)
	}
}

func (m *Manager) setState(state model.ConnectionState, detail string) {
	m.mu.Lock()
	m.state = state
	m.detail = detail
	m.mu.Unlock()
	m.notifyState(state, detail)
}

func (m *Manager) notifyState(state model.ConnectionState, detail string) {
	if m.handlers.OnStateChange != nil {
		m.handlers.OnStateChange(state, detail)
	}
}

func sleepWithContext(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

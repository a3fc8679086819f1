// Package monitor polls an image source on a background goroutine and reports
// each materially new image exactly once.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kiana/logutil"
	"kiana/screenshot"
)

const (
	DefaultClipboardInterval = 500 * time.Millisecond
	DefaultRegionInterval    = time.Second

	MinInterval  = 500 * time.Millisecond
	MaxInterval  = 10 * time.Second
	IntervalStep = 500 * time.Millisecond
)

// State of a Monitor. There are no intermediate states.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// Config holds the polling cadence.
type Config struct {
	// Interval is the sleep between polls.
	Interval time.Duration
	// RetryDelay is the sleep after a failed capture; defaults to Interval.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultRegionInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = c.Interval
	}
	return c
}

// ValidateInterval checks d against the user-adjustable range: 0.5s to 10s in 0.5s steps.
func ValidateInterval(d time.Duration) error {
	if d < MinInterval || d > MaxInterval || d%IntervalStep != 0 {
		return &ConfigurationError{
			Field: "interval",
			Err:   fmt.Errorf("%v outside %v..%v in steps of %v", d, MinInterval, MaxInterval, IntervalStep),
		}
	}
	return nil
}

// Callback receives each newly detected image. It runs on the monitor's
// goroutine; the next capture starts only after it returns.
type Callback func(img image.Image)

// Option customises a Monitor.
type Option func(*Monitor)

// WithInterval overrides the constructor's default interval. The retry delay follows it.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.cfg = Config{Interval: d}.withDefaults()
		}
	}
}

// WithDetector replaces the default PNG change detector. Nil keeps the default.
func WithDetector(d Detector) Option {
	return func(m *Monitor) {
		if d != nil {
			m.detector = d
		}
	}
}

// WithSource replaces the image source chosen by the constructor.
func WithSource(s Source) Option {
	return func(m *Monitor) {
		m.source = s
		m.log = m.log.With().Str("source", s.Name()).Logger()
	}
}

// Monitor is a Stopped/Running state machine around a single polling goroutine.
type Monitor struct {
	source   Source
	detector Detector
	callback Callback
	log      zerolog.Logger

	mu     sync.Mutex
	cfg    Config
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	// last is only touched by the polling goroutine; successive goroutines
	// hand it over through the previous goroutine's done channel.
	last *Fingerprint
}

// New builds a stopped monitor.
func New(src Source, det Detector, cfg Config, cb Callback, opts ...Option) *Monitor {
	if det == nil {
		det = NewPNGDetector()
	}
	done := make(chan struct{})
	close(done)
	m := &Monitor{
		source:   src,
		detector: det,
		callback: cb,
		cfg:      cfg.withDefaults(),
		done:     done,
	}
	m.log = logutil.Component("monitor").With().Str("source", src.Name()).Logger()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewClipboardMonitor watches the system clipboard every 0.5s.
func NewClipboardMonitor(cb Callback, opts ...Option) *Monitor {
	return New(NewClipboardSource(nil), nil, Config{Interval: DefaultClipboardInterval}, cb, opts...)
}

// NewRegionMonitor watches a screen region, by default every second.
// A region must be set before Start.
func NewRegionMonitor(cb Callback, opts ...Option) *Monitor {
	return New(NewRegionSource(nil), nil, Config{Interval: DefaultRegionInterval}, cb, opts...)
}

// Source returns the image source being polled.
func (m *Monitor) Source() Source { return m.source }

// SetRegion configures the rectangle of a region monitor.
func (m *Monitor) SetRegion(r screenshot.Region) error {
	rs, ok := m.source.(*RegionSource)
	if !ok {
		return &ConfigurationError{Field: "region", Err: fmt.Errorf("%s monitor has no region", m.source.Name())}
	}
	return rs.SetRegion(r)
}

// SetInterval changes the poll interval; it applies from the next sleep.
func (m *Monitor) SetInterval(d time.Duration) error {
	if err := ValidateInterval(d); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg.Interval = d
	m.cfg.RetryDelay = d
	m.mu.Unlock()
	return nil
}

// Interval returns the current poll interval.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Interval
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed once the most recently started polling goroutine has exited.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Start launches the polling goroutine. It is a no-op while Running and fails
// with a *ConfigurationError, before spawning anything, when the source is not ready.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Running {
		return nil
	}
	if r, ok := m.source.(readier); ok {
		if err := r.Ready(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := m.done
	done := make(chan struct{})
	m.state, m.cancel, m.done = Running, cancel, done

	m.log.Info().Dur("interval", m.cfg.Interval).Msg("monitoring started")
	go m.run(ctx, prev, done)
	return nil
}

// Stop returns immediately. An in-flight capture and callback complete
// normally; the goroutine exits before its next poll. Use Done to wait.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Stopped {
		return
	}
	m.state = Stopped
	m.cancel()
	m.log.Info().Msg("monitoring stopped")
}

func (m *Monitor) run(ctx context.Context, prev <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// Wait for the previous goroutine even when already cancelled: done must
	// not close while an older poll is still running.
	<-prev
	if ctx.Err() != nil {
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		timer.Reset(m.poll(ctx))
	}
}

// poll runs one capture, detect, deliver step and returns the delay before the next.
func (m *Monitor) poll(ctx context.Context) time.Duration {
	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()

	img, err := m.source.Capture(ctx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, ErrNoImage):
			m.log.Debug().Msg("no image")
		default:
			m.log.Warn().Err(err).Msg("capture failed")
			return cfg.RetryDelay
		}
		return cfg.Interval
	}

	changed, fp, err := m.detector.HasChanged(img, m.last)
	if err != nil {
		m.log.Warn().Err(err).Msg("change detection failed")
		return cfg.RetryDelay
	}
	if !changed {
		return cfg.Interval
	}

	m.last = &fp
	m.log.Debug().Stringer("fingerprint", fp).Msg("content changed")
	m.deliver(img)
	return cfg.Interval
}

func (m *Monitor) deliver(img image.Image) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("callback panicked")
		}
	}()
	if m.callback != nil {
		m.callback(img)
	}
}

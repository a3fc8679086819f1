// Package eventloop provides the single-goroutine UI context used in headless mode.
package eventloop

import (
	"context"

	"github.com/rs/zerolog"

	"kiana/hotkey"
	"kiana/logutil"
)

// Loop is the single-threaded coordinator: every posted function and hotkey
// action runs on the goroutine that called Run.
type Loop struct {
	tasks    chan func()
	hotkeyCh chan struct{}
	onHotkey func()
	log      zerolog.Logger
}

// New creates a loop with the given task buffer size.
func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 16
	}
	return &Loop{
		tasks:    make(chan func(), buffer),
		hotkeyCh: make(chan struct{}, 4),
		log:      logutil.Component("eventloop"),
	}
}

// Post queues fn for execution on the loop goroutine. It blocks while the
// queue is full.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

// StartHotkey registers a global hotkey whose presses run action on the loop.
// Presses that arrive while earlier ones are still queued are dropped.
func (l *Loop) StartHotkey(combo string, action func()) error {
	if combo == "" {
		return nil
	}
	l.onHotkey = action
	return hotkey.Listen(combo, func() {
		select {
		case l.hotkeyCh <- struct{}{}:
		default:
		}
	})
}

// Run processes posted work until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.exec(fn)
		case <-l.hotkeyCh:
			if l.onHotkey != nil {
				l.exec(l.onHotkey)
			}
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	fn()
}

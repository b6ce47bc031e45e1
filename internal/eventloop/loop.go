// Package eventloop serializes every tab mutation onto one goroutine, the
// way a UI thread would.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
)

// ErrStopped is returned when work is submitted after the loop exited.
var ErrStopped = errors.New("event loop stopped")

// Executor runs funcs one at a time.
type Executor interface {
	// Post queues fn and returns immediately.
	Post(fn func())
}

// Loop is an Executor backed by a single goroutine started with Run.
type Loop struct {
	queue chan func()
	done  chan struct{}
}

func New(depth int) *Loop {
	if depth <= 0 {
		depth = 256
	}
	return &Loop{
		queue: make(chan func(), depth),
		done:  make(chan struct{}),
	}
}

// Run executes queued funcs until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event loop task panicked", "panic", r)
		}
	}()
	fn()
}

// Post queues fn. Work posted after the loop stopped is dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
		slog.Debug("event loop stopped, dropping task")
	}
}

// Do queues fn and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.queue <- wrapped:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline runs posted funcs on the caller's goroutine. Tests use it to
// drive components synchronously.
type Inline struct{}

func (Inline) Post(fn func()) { fn() }

// Package uiloop provides the single goroutine that owns all UI-visible
// state. Workers hand results back with Dispatch; bound methods that read
// or mutate that state go through Call.
package uiloop

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Loop drains queued closures one at a time in submission order.
type Loop struct {
	logger zerolog.Logger

	mu      sync.Mutex
	pending []func()
	stopped bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// New creates a loop. Closures queue up until Run starts.
func New(logger zerolog.Logger) *Loop {
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run executes queued closures until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.markStopped()

	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			l.exec(fn)
		}

		select {
		case <-ctx.Done():
			return
		case <-l.quit:
			return
		case <-l.wake:
		}
	}
}

// Stop ends Run after the closure currently executing. Queued closures
// are dropped.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.quit) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Dispatch enqueues fn without waiting. It is a no-op once the loop stopped.
func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		l.logger.Debug().Msg("dispatch after loop stop dropped")
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop and waits for it. It reports false when the
// loop stopped before fn ran. Call must not be used from inside the loop.
func (l *Loop) Call(fn func()) bool {
	ran := make(chan struct{})
	l.Dispatch(func() {
		defer close(ran)
		fn()
	})

	select {
	case <-ran:
		return true
	case <-l.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped || len(l.pending) == 0 {
		return nil
	}
	select {
	case <-l.quit:
		return nil
	default:
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn
}

func (l *Loop) markStopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.pending = nil
}

// exec runs one closure; a panic is logged and the loop keeps going.
func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("ui loop closure panicked")
		}
	}()
	fn()
}

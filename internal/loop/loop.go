// Package loop provides the single logical event queue every watcher callback runs on.
package loop

import (
	"context"
	"sync"
)

// Dispatcher schedules a callback onto the event queue.
type Dispatcher interface {
	Post(fn func())
}

// Inline runs callbacks immediately on the caller's goroutine.
type Inline struct{}

// Post implements Dispatcher.
func (Inline) Post(fn func()) { fn() }

// Loop executes posted callbacks one at a time, in post order, on the goroutine
// that called Run. The queue is unbounded, so posting from inside a callback
// never blocks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

// New creates an idle loop.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post implements Dispatcher. Callbacks posted after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes callbacks until ctx is cancelled. Pending callbacks are discarded on exit.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Call posts fn to d and waits until it has run. It returns false if ctx ends first.
func Call(ctx context.Context, d Dispatcher, fn func()) bool {
	done := make(chan struct{})
	d.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Call posts fn and waits until it has run. It returns false if ctx ends first.
func (l *Loop) Call(ctx context.Context, fn func()) bool {
	return Call(ctx, l, fn)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Package eventloop provides a single-goroutine task queue.
//
// A Loop runs posted tasks one at a time, in the order they were posted, on
// the goroutine that called Run. It is the consumer side of the view model:
// anything that reads a published snapshot does so from a task on the loop.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrAlreadyRunning is returned by Run when the loop is already running.
	ErrAlreadyRunning = errors.New("event loop already running")

	// ErrStopped is returned by Call when the loop exits before running fn.
	ErrStopped = errors.New("event loop stopped")
)

// Loop is a FIFO executor bound to one goroutine. The queue is unbounded so
// Post never blocks the caller.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	running bool
	stopped bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// New creates a loop. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default().With("component", "eventloop")
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Post queues task to run on the loop goroutine. Tasks posted after Stop are
// dropped and Post returns false.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		l.logger.Debug("dropping task posted after stop")
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes tasks until Stop is called or ctx is cancelled. Tasks already
// queued when Stop is called still run before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	for {
		for task := l.next(); task != nil; task = l.next() {
			l.runTask(task)
		}

		select {
		case <-l.wake:
		case <-l.quit:
			for task := l.next(); task != nil; task = l.next() {
				l.runTask(task)
			}
			return nil
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		}
	}
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start(ctx context.Context) {
	go func() {
		if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error("event loop exited", "error", err)
		}
	}()
}

// Stop stops accepting tasks and asks Run to return once the queue is
// drained. Safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}
	l.stopped = true
	close(l.quit)
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Call posts fn and waits for it to finish on the loop goroutine. It returns
// ctx.Err() if ctx ends first and ErrStopped if the loop exits before fn runs.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", r)
		}
	}()
	task()
}

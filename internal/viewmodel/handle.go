// Package viewmodel provides the lifecycle handle that runs sync cycles in the
// background and publishes their results to the consumer goroutine.
//
// The handle owns the storage handle and fetch client for as long as it
// lives. Each Start runs exactly one cycle; its outcome is posted to the
// consumer through a Poster and delivered to the Observer there, unless the
// handle was stopped in the meantime.
package viewmodel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mschirtzinger/userlist/internal/listvm"
	"github.com/mschirtzinger/userlist/internal/store"
	usersync "github.com/mschirtzinger/userlist/internal/sync"
)

// State is the lifecycle state of a Handle.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Observer receives sync outcomes on the consumer goroutine.
type Observer interface {
	// OnUpdate hands over a fresh snapshot. The observer owns it from here
	// and should Close the one it replaces.
	OnUpdate(snapshot *listvm.Cache)
	OnFailure(err error)
}

// Poster schedules a task on the consumer goroutine. Tasks posted from one
// goroutine must run in the order they were posted. Post reports false when
// the consumer has shut down and the task will never run.
type Poster interface {
	Post(task func()) bool
}

// PosterFunc adapts a function to the Poster interface.
type PosterFunc func(task func()) bool

// Post calls f(task).
func (f PosterFunc) Post(task func()) bool {
	return f(task)
}

// Config holds configuration for a Handle.
type Config struct {
	// MaxPages is the remote page budget per cycle (0 = default)
	MaxPages int

	// CacheOptions are applied to every published snapshot
	CacheOptions []listvm.Option

	// Logger for handle activity
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPages: usersync.DefaultMaxPages,
		Logger:   slog.Default().With("component", "viewmodel"),
	}
}

// Handle runs sync cycles and publishes their results.
type Handle struct {
	db     *store.DB
	syncer usersync.Syncer
	poster Poster
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
}

// New creates an idle handle with default configuration.
func New(database *store.DB, fetcher usersync.Fetcher, poster Poster) *Handle {
	return NewWithConfig(database, fetcher, poster, DefaultConfig())
}

// NewWithConfig creates an idle handle with custom configuration.
func NewWithConfig(database *store.DB, fetcher usersync.Fetcher, poster Poster, config *Config) *Handle {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "viewmodel")
	}

	syncer := usersync.New(database, fetcher, &usersync.Config{
		MaxPages:     config.MaxPages,
		CacheOptions: config.CacheOptions,
		Logger:       logger,
	})

	return &Handle{
		db:     database,
		syncer: syncer,
		poster: poster,
		logger: logger,
	}
}

// DB returns the storage handle owned by h.
func (h *Handle) DB() *store.DB {
	return h.db
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Start begins one sync cycle on a background goroutine and returns
// immediately. The outcome is delivered to observer through the poster.
//
// Start fails with ErrHandleStopped after Stop, and with ErrSyncInProgress
// while an earlier cycle has not been delivered yet.
func (h *Handle) Start(observer Observer) error {
	if observer == nil {
		return ErrNilObserver
	}

	h.mu.Lock()
	switch h.state {
	case StateStopped:
		h.mu.Unlock()
		return ErrHandleStopped
	case StateSyncing:
		h.mu.Unlock()
		return ErrSyncInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.state = StateSyncing
	h.generation++
	gen := h.generation
	h.cancel = cancel
	h.mu.Unlock()

	h.logger.Debug("sync started", "generation", gen)
	go h.run(ctx, gen, observer)
	return nil
}

// Stop cancels any in-flight cycle and moves the handle to StateStopped.
// It never waits for the cycle and is safe to call more than once. When
// called on the consumer goroutine, no observer callback runs after Stop
// returns. From any other goroutine a delivery already past its stop check
// may still complete.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateStopped {
		return
	}
	h.state = StateStopped
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.logger.Debug("handle stopped", "generation", h.generation)
}

func (h *Handle) run(ctx context.Context, gen uint64, observer Observer) {
	res := h.syncer.Sync(ctx)
	if h.poster.Post(func() { h.deliver(gen, observer, res) }) {
		return
	}

	// The consumer is gone, so nobody else will release the result
	h.logger.Debug("poster rejected sync result", "generation", gen)
	res.Discard()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateSyncing && gen == h.generation {
		h.state = StateIdle
		if h.cancel != nil {
			h.cancel()
			h.cancel = nil
		}
	}
}

// deliver runs on the consumer goroutine.
func (h *Handle) deliver(gen uint64, observer Observer, res usersync.Result) {
	h.mu.Lock()
	if h.state == StateStopped || gen != h.generation {
		h.mu.Unlock()
		h.logger.Debug("dropping stale sync result", "generation", gen)
		res.Discard()
		return
	}
	h.state = StateIdle
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.mu.Unlock()

	if res.Err != nil {
		observer.OnFailure(res.Err)
		return
	}
	observer.OnUpdate(res.Snapshot)
}

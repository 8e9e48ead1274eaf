package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mschirtzinger/userlist/internal/listvm"
	"github.com/mschirtzinger/userlist/internal/viewmodel"
)

// Config holds configuration for the daemon.
type Config struct {
	// Interval is how often a sync cycle is started
	Interval time.Duration

	// DebounceInterval is how long a watched file must be quiet before its
	// change triggers a sync. This batches rapid saves together
	DebounceInterval time.Duration

	// WatchFiles trigger a sync when they change (typically the config file)
	WatchFiles []string

	// Logger for daemon activity
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:         5 * time.Minute,
		DebounceInterval: 100 * time.Millisecond,
		Logger:           slog.Default().With("component", "daemon"),
	}
}

// Status is a point-in-time summary of daemon activity.
type Status struct {
	State     string    `json:"state" yaml:"state"`
	Syncs     int       `json:"syncs" yaml:"syncs"`
	Failures  int       `json:"failures" yaml:"failures"`
	Skipped   int       `json:"skipped" yaml:"skipped"`
	Rows      int32     `json:"rows" yaml:"rows"`
	LastSync  time.Time `json:"last_sync,omitempty" yaml:"last_sync,omitempty"`
	LastError string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Daemon refreshes the list on an interval and on demand.
//
// The daemon is the Observer of its handle: it owns every published snapshot,
// closes the one it replaces, and forwards each outcome to subscribers.
// Subscribers are called on the consumer goroutine and may read a snapshot
// until the next OnUpdate, but must not Close it.
type Daemon struct {
	handle *viewmodel.Handle
	poster viewmodel.Poster
	config *Config

	watcher       *FileWatcher
	changeQueue   map[string]time.Time // path -> last event
	changeQueueMu sync.Mutex

	trigger chan struct{}

	mu          sync.Mutex
	subscribers []viewmodel.Observer
	status      Status

	// current is only touched on the consumer goroutine
	current *listvm.Cache

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new Daemon instance.
//
// The handle must post to the same consumer as poster; the daemon uses
// poster to release its last snapshot on shutdown.
//
// Use Start() to begin syncing.
func New(handle *viewmodel.Handle, poster viewmodel.Poster) (*Daemon, error) {
	return NewWithConfig(handle, poster, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(handle *viewmodel.Handle, poster viewmodel.Poster, config *Config) (*Daemon, error) {
	if handle == nil {
		return nil, fmt.Errorf("handle cannot be nil")
	}
	if poster == nil {
		return nil, fmt.Errorf("poster cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", config.Interval)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "daemon")
	}

	d := &Daemon{
		handle:      handle,
		poster:      poster,
		config:      config,
		changeQueue: make(map[string]time.Time),
		trigger:     make(chan struct{}, 1),
		status:      Status{State: viewmodel.StateIdle.String()},
	}

	if len(config.WatchFiles) > 0 {
		watcher, err := NewFileWatcher()
		if err != nil {
			return nil, err
		}
		d.watcher = watcher
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Subscribe registers an observer for every sync outcome.
func (d *Daemon) Subscribe(observer viewmodel.Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, observer)
}

// Trigger requests a sync as soon as possible. Requests made while one is
// already pending are coalesced.
func (d *Daemon) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of daemon activity.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.status
	s.State = d.handle.State().String()
	return s
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Start an initial sync
// 2. Start watching the configured files
// 3. Start a sync on every interval tick and every Trigger
//
// This blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Info("starting daemon", "interval", d.config.Interval)

	if d.watcher != nil {
		if err := d.watcher.Start(d.config.WatchFiles...); err != nil {
			return fmt.Errorf("failed to watch files: %w", err)
		}
		d.config.Logger.Info("watching files", "files", d.config.WatchFiles)

		d.wg.Add(2)
		go d.watchFileEvents()
		go d.processChangeQueue()
	}

	d.startSync("initial")

	d.wg.Add(1)
	go d.runSchedule()

	select {
	case <-ctx.Done():
		d.config.Logger.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon and its handle. Safe to call more
// than once.
func (d *Daemon) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.config.Logger.Info("stopping daemon")

		d.cancel()

		if d.watcher != nil {
			if werr := d.watcher.Stop(); werr != nil {
				d.config.Logger.Warn("error closing watcher", "error", werr)
				err = werr
			}
		}

		d.wg.Wait()
		d.handle.Stop()

		release := func() {
			if d.current != nil {
				_ = d.current.Close()
				d.current = nil
			}
		}
		if !d.poster.Post(release) {
			// No consumer left to race with
			release()
		}

		d.config.Logger.Info("daemon stopped")
	})
	return err
}

// OnUpdate implements viewmodel.Observer.
func (d *Daemon) OnUpdate(snapshot *listvm.Cache) {
	if d.current != nil {
		_ = d.current.Close()
	}
	d.current = snapshot

	rows, err := snapshot.Count()
	if err != nil {
		d.config.Logger.Warn("failed to count snapshot rows", "error", err)
	}

	d.mu.Lock()
	d.status.Syncs++
	d.status.Rows = rows
	d.status.LastSync = time.Now()
	d.status.LastError = ""
	subscribers := append([]viewmodel.Observer(nil), d.subscribers...)
	d.mu.Unlock()

	d.config.Logger.Info("snapshot published", "rows", rows)
	for _, s := range subscribers {
		s.OnUpdate(snapshot)
	}
}

// OnFailure implements viewmodel.Observer.
func (d *Daemon) OnFailure(err error) {
	d.mu.Lock()
	d.status.Failures++
	d.status.LastError = err.Error()
	subscribers := append([]viewmodel.Observer(nil), d.subscribers...)
	d.mu.Unlock()

	d.config.Logger.Error("sync failed", "error", err)
	for _, s := range subscribers {
		s.OnFailure(err)
	}
}

// startSync starts a cycle unless one is already running.
func (d *Daemon) startSync(reason string) {
	err := d.handle.Start(d)
	switch {
	case err == nil:
		d.config.Logger.Debug("sync started", "reason", reason)
	case errors.Is(err, viewmodel.ErrSyncInProgress):
		d.mu.Lock()
		d.status.Skipped++
		d.mu.Unlock()
		d.config.Logger.Debug("sync already in progress, skipping", "reason", reason)
	default:
		d.config.Logger.Warn("failed to start sync", "reason", reason, "error", err)
	}
}

// runSchedule starts a sync on every tick and trigger.
func (d *Daemon) runSchedule() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.startSync("interval")

		case <-d.trigger:
			d.startSync("trigger")
		}
	}
}

// watchFileEvents monitors watched files and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			d.config.Logger.Debug("file event", "op", event.Op, "path", event.Path)
			d.queueChange(event.Path)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Warn("watcher error", "error", err)
		}
	}
}

// queueChange records a file change for debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue processes queued file changes with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges triggers one sync for all files that have been
// quiet for long enough.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	changed := false

	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		d.config.Logger.Info("watched file changed", "path", path)
		delete(d.changeQueue, path)
		changed = true
	}

	if changed {
		d.Trigger()
	}
}

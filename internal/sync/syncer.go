package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mschirtzinger/userlist/internal/domain"
	"github.com/mschirtzinger/userlist/internal/listvm"
	"github.com/mschirtzinger/userlist/internal/store"
)

// DefaultMaxPages bounds how many remote pages one cycle drains.
const DefaultMaxPages = 10

// Config holds configuration for a Syncer.
type Config struct {
	// MaxPages is the page budget per cycle (0 = DefaultMaxPages, <0 = unlimited)
	MaxPages int

	// CacheOptions are applied to every snapshot cache
	CacheOptions []listvm.Option

	// Logger for sync activity
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPages: DefaultMaxPages,
		Logger:   slog.Default().With("component", "sync"),
	}
}

// syncer implements the Syncer interface.
type syncer struct {
	db      *store.DB
	fetcher Fetcher
	config  *Config
}

// New creates a new Syncer.
//
// The database must have its schema initialized. If config is nil,
// DefaultConfig is used; a nil Logger falls back to slog.Default.
//
// Example:
//
//	database, err := store.Open("userlist.db")
//	if err != nil {
//	    return err
//	}
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//	syncer := sync.New(database, github.NewClient(github.Config{}), nil)
func New(database *store.DB, fetcher Fetcher, config *Config) Syncer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "sync")
	}
	if config.MaxPages == 0 {
		config.MaxPages = DefaultMaxPages
	}
	return &syncer{
		db:      database,
		fetcher: fetcher,
		config:  config,
	}
}

// Sync implements Syncer.Sync.
func (s *syncer) Sync(ctx context.Context) Result {
	start := time.Now()
	logger := s.config.Logger
	logger.Info("starting sync")

	var stats Stats

	// Fetch all pages first; the merge covers the whole listing at once
	users, pages, err := s.fetchAll(ctx)
	stats.Pages = pages
	stats.Fetched = len(users)
	if err != nil {
		return s.fail(stats, start, fmt.Errorf("failed to fetch users: %w", err))
	}

	merged, err := s.db.Merge(ctx, users)
	if err != nil {
		return s.fail(stats, start, fmt.Errorf("failed to merge users: %w", err))
	}
	stats.Inserted = merged.Inserted
	stats.Updated = merged.Updated

	// The snapshot belongs to the consumer now, not to this cycle
	snap, err := s.db.OpenSnapshot(context.WithoutCancel(ctx))
	if err != nil {
		return s.fail(stats, start, fmt.Errorf("failed to open snapshot: %w", err))
	}

	stats.Duration = time.Since(start)
	logger.Info("sync complete",
		"pages", stats.Pages,
		"fetched", stats.Fetched,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"duration", stats.Duration,
	)

	return Result{
		Snapshot: listvm.New(snap, snap, s.config.CacheOptions...),
		Stats:    stats,
	}
}

// fetchAll drains remote pages until the last page or the page budget.
func (s *syncer) fetchAll(ctx context.Context) ([]domain.User, int, error) {
	var (
		users []domain.User
		since *int64
		pages int
	)

	for s.config.MaxPages < 0 || pages < s.config.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, pages, err
		}

		page, err := s.fetcher.FetchUsers(ctx, since)
		if err != nil {
			return nil, pages, err
		}
		pages++
		users = append(users, page.Users...)

		if !page.HasNext() {
			return users, pages, nil
		}
		since = page.Next
	}

	s.config.Logger.Warn("page budget reached, listing truncated", "pages", pages, "fetched", len(users))
	return users, pages, nil
}

func (s *syncer) fail(stats Stats, start time.Time, err error) Result {
	stats.Duration = time.Since(start)
	s.config.Logger.Error("sync failed", "error", err, "duration", stats.Duration)
	return Result{Err: err, Stats: stats}
}

// Package loadtest provides load testing utilities for the snapshot read path.
//
// This package populates a store with synthetic users and simulates many
// list views scrolling through their own snapshots, recording Get and Count
// latency through the cache's latency reporter.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mschirtzinger/userlist/internal/domain"
	"github.com/mschirtzinger/userlist/internal/listvm"
	"github.com/mschirtzinger/userlist/internal/store"
)

// mergeBatchSize bounds the size of one Merge transaction while populating.
const mergeBatchSize = 1000

// TestDatabase represents a populated test database for load testing.
type TestDatabase struct {
	DB         *store.DB
	TotalUsers int
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
	Durations    []time.Duration
}

// Report holds per-operation latency from a scroll run.
type Report struct {
	Get   *LatencyStats
	Count *LatencyStats
}

// ScrollOptions describes how each simulated view reads its snapshot.
type ScrollOptions struct {
	// Readers is the number of concurrent views, each with its own snapshot
	Readers int

	// PageSize is how many rows one scroll step requests
	PageSize int

	// Steps is the number of scroll steps per reader
	Steps int

	// JumpPct is the chance that a step jumps to a random position instead
	// of continuing from the previous window
	JumpPct float64
}

// DefaultScrollOptions returns a moderate workload.
func DefaultScrollOptions() ScrollOptions {
	return ScrollOptions{
		Readers:  10,
		PageSize: 50,
		Steps:    20,
		JumpPct:  0.2,
	}
}

// CreateTestDatabase creates a new test database with the specified number
// of users, ids 1..numUsers with logins user-000001 and up.
func CreateTestDatabase(dbPath string, numUsers int) (*TestDatabase, error) {
	database, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection per concurrent reader snapshot plus the writer
	database.RawDB().SetMaxOpenConns(150)
	database.RawDB().SetMaxIdleConns(50)
	database.RawDB().SetConnMaxLifetime(10 * time.Minute)

	if err := database.InitSchema(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	users := generateUsers(numUsers)
	ctx := context.Background()
	for start := 0; start < len(users); start += mergeBatchSize {
		end := min(start+mergeBatchSize, len(users))
		if _, err := database.Merge(ctx, users[start:end]); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to insert users %d-%d: %w", start, end, err)
		}
	}

	return &TestDatabase{
		DB:         database,
		TotalUsers: numUsers,
	}, nil
}

// Close closes the test database connection.
func (td *TestDatabase) Close() error {
	if td.DB != nil {
		return td.DB.Close()
	}
	return nil
}

// RunScroll simulates opts.Readers concurrent views scrolling their own
// snapshots and returns the aggregated latency of the I/O-bound operations.
func (td *TestDatabase) RunScroll(ctx context.Context, opts ScrollOptions) (*Report, error) {
	if opts.Readers <= 0 || opts.PageSize <= 0 || opts.Steps <= 0 {
		return nil, fmt.Errorf("readers, page size and steps must be positive")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		getDurs   []time.Duration
		countDurs []time.Duration
		errCount  int
		firstErr  error
	)

	for i := 0; i < opts.Readers; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			var gets, counts []time.Duration
			report := func(op listvm.Op, elapsed time.Duration) {
				switch op {
				case listvm.OpGet:
					gets = append(gets, elapsed)
				case listvm.OpCount:
					counts = append(counts, elapsed)
				}
			}

			err := td.scroll(ctx, readerID, opts, report)

			mu.Lock()
			defer mu.Unlock()
			getDurs = append(getDurs, gets...)
			countDurs = append(countDurs, counts...)
			if err != nil {
				errCount++
				if firstErr == nil {
					firstErr = fmt.Errorf("reader %d failed: %w", readerID, err)
				}
			}
		}(i)
	}

	wg.Wait()

	if len(getDurs) == 0 && len(countDurs) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("no successful reads completed")
	}

	report := &Report{
		Get:   computeLatencyStats(getDurs),
		Count: computeLatencyStats(countDurs),
	}
	report.Get.Errors = errCount
	return report, nil
}

// scroll runs one reader against its own snapshot.
func (td *TestDatabase) scroll(ctx context.Context, readerID int, opts ScrollOptions, report listvm.LatencyFunc) error {
	snap, err := td.DB.OpenSnapshot(ctx)
	if err != nil {
		return err
	}
	cache := listvm.New(snap, snap, listvm.WithLatencyReporter(report))
	defer cache.Close()

	total, err := cache.Count()
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	// Deterministic per reader for reproducibility
	rng := rand.New(rand.NewSource(int64(42 + readerID)))
	pos := int32(0)

	for step := 0; step < opts.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if rng.Float64() < opts.JumpPct {
			pos = rng.Int31n(total)
		}
		for i := pos; i < pos+int32(opts.PageSize); i++ {
			_, ok, err := cache.Get(i)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
		}

		pos += int32(opts.PageSize)
		if pos >= total {
			pos = 0
		}
	}
	return nil
}

// VerifySnapshotConsistency runs readers against a concurrent writer.
//
// Each reader repeatedly opens a snapshot, takes its count, and reads it to
// the end. The number of rows read must equal the count taken before any
// row was read, whatever the writer merged in between.
func (td *TestDatabase) VerifySnapshotConsistency(numReaders int, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	errorsChan := make(chan error, numReaders+1)

	// Writer: keeps inserting new users and renaming existing ones
	wg.Add(1)
	go func() {
		defer wg.Done()

		next := int64(td.TotalUsers) + 1
		for round := 0; ctx.Err() == nil; round++ {
			batch := []domain.User{
				{ID: next, Login: fmt.Sprintf("user-%06d", next)},
				{ID: int64(round%td.TotalUsers) + 1, Login: fmt.Sprintf("renamed-%d", round)},
			}
			if _, err := td.DB.Merge(ctx, batch); err != nil {
				if ctx.Err() == nil {
					errorsChan <- fmt.Errorf("writer round %d failed: %w", round, err)
				}
				return
			}
			next++
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			for ctx.Err() == nil {
				if err := td.readWhole(ctx); err != nil {
					if ctx.Err() == nil {
						errorsChan <- fmt.Errorf("reader %d: %w", readerID, err)
					}
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errorsChan)

	for err := range errorsChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// readWhole reads one snapshot end to end and checks it against its count.
func (td *TestDatabase) readWhole(ctx context.Context) error {
	snap, err := td.DB.OpenSnapshot(ctx)
	if err != nil {
		return err
	}
	cache := listvm.New(snap, snap)
	defer cache.Close()

	want, err := cache.Count()
	if err != nil {
		return err
	}

	var got int32
	for {
		row, ok, err := cache.Get(got)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if row.Value == "" {
			return fmt.Errorf("row %d has an empty login", got)
		}
		got++
	}

	if got != want {
		return fmt.Errorf("snapshot counted %d rows but yielded %d", want, got)
	}
	return nil
}

// GetStats returns statistics about the test database.
func (td *TestDatabase) GetStats(ctx context.Context) (map[string]interface{}, error) {
	count, err := td.DB.UserCount(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"seeded_users": td.TotalUsers,
		"stored_users": count,
	}, nil
}

// generateUsers creates count users with ascending ids.
func generateUsers(count int) []domain.User {
	users := make([]domain.User, count)
	for i := range users {
		id := int64(i + 1)
		users[i] = domain.User{ID: id, Login: fmt.Sprintf("user-%06d", id)}
	}
	return users
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	mean := sum / time.Duration(len(durations))

	p50 := sorted[len(sorted)*50/100]
	p95 := sorted[len(sorted)*95/100]
	p99 := sorted[len(sorted)*99/100]

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         mean,
		P50:          p50,
		P95:          p95,
		P99:          p99,
		TotalQueries: len(durations),
		Durations:    sorted,
	}
}

// PrintStats formats and writes latency statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer, title string) {
	fmt.Fprintf(w, "%s:\n", title)
	fmt.Fprintf(w, "  Total Queries: %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}

// Print writes both sections of the report to w.
func (r *Report) Print(w io.Writer) {
	r.Get.PrintStats(w, "Get Latency")
	r.Count.PrintStats(w, "Count Latency")
}

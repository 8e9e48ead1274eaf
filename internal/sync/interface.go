package sync

import (
	"context"
	"time"

	"github.com/mschirtzinger/userlist/internal/domain"
	"github.com/mschirtzinger/userlist/internal/listvm"
)

// Fetcher returns one page of remote users starting after since.
//
// A nil since requests the first page; a page with a nil Next is the last.
// github.Client implements Fetcher.
type Fetcher interface {
	FetchUsers(ctx context.Context, since *int64) (domain.UserPage, error)
}

// Syncer runs one synchronization cycle.
//
// The syncer fetches every remote page, merges the batch into the store in a
// single transaction, and builds a brand-new listvm.Cache over the refreshed
// rows. Each call returns exactly one Result: either a snapshot or an error,
// never both, and never a snapshot over a partially merged batch.
type Syncer interface {
	// Sync blocks until the cycle completes or ctx is cancelled.
	//
	// Cancelling ctx aborts the fetch or rolls back the merge. Once merged,
	// the snapshot is opened on a context detached from ctx, so the
	// returned Cache keeps working after the cycle's context ends.
	//
	// Example:
	//   res := syncer.Sync(ctx)
	//   if res.Err != nil {
	//       return res.Err
	//   }
	//   n, _ := res.Snapshot.Count()
	Sync(ctx context.Context) Result
}

// Result is the outcome of one sync cycle.
type Result struct {
	// Snapshot is the new cache (nil when Err is set)
	Snapshot *listvm.Cache
	Err      error
	Stats    Stats
}

// OK reports whether the cycle produced a snapshot.
func (r Result) OK() bool {
	return r.Err == nil && r.Snapshot != nil
}

// Discard releases the snapshot of a result that will not be delivered.
func (r Result) Discard() {
	if r.Snapshot != nil {
		_ = r.Snapshot.Close()
	}
}

// Stats describes one cycle.
type Stats struct {
	Pages    int
	Fetched  int
	Inserted int
	Updated  int
	Duration time.Duration
}

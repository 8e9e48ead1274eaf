// Package sync provides the synchronization cycle between the remote user
// listing and the local SQLite cache.
//
// Overview
//
// One cycle fetches the remote listing, merges it into the store and hands
// back a fresh snapshot for the list view:
//
//	GitHub /users (paged by since=)
//	     │ Fetcher.FetchUsers, until the last page or MaxPages
//	     ↓
//	store.DB.Merge            (one transaction, update-then-insert)
//	     ↓
//	store.DB.OpenSnapshot     (read transaction pinned at this point)
//	     ↓
//	listvm.Cache              → Result.Snapshot
//
// Usage
//
// Basic usage:
//
//	database, err := store.Open("userlist.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//
//	syncer := sync.New(database, github.NewClient(github.Config{}), nil)
//	res := syncer.Sync(ctx)
//	if res.Err != nil {
//	    return res.Err
//	}
//	defer res.Snapshot.Close()
//
// Error Handling
//
// A cycle either fully succeeds or fails without a snapshot:
//
//   - Fetch errors leave the store untouched
//   - Merge errors roll back the whole batch
//   - Errors are never retried here; callers decide whether to run again
//
// Concurrency
//
// Sync blocks and is meant to run on a background goroutine; see
// internal/viewmodel for the handle that posts results to the UI goroutine.
// The returned snapshot is not safe for concurrent use and must only be read
// by its receiver.
//
// Each Cache keeps its own read transaction, so a snapshot from an earlier
// cycle keeps returning the rows and count it started with while a later
// cycle merges new data.
package sync

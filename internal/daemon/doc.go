// Package daemon provides the long-running refresher that keeps the user list
// current.
//
// # Architecture
//
// The daemon consists of two components:
//
//   - Daemon: starts a sync cycle through a viewmodel.Handle on an interval,
//     on Trigger, and when a watched file changes; owns the published snapshot
//     and fans each outcome out to subscribers
//   - FileWatcher: fsnotify-based monitoring of individual files
//
// Basic usage:
//
//	loop := eventloop.New(logger)
//	loop.Start(ctx)
//
//	handle := viewmodel.New(database, github.NewClient(github.Config{}), loop)
//	d, err := daemon.NewWithConfig(handle, loop, &daemon.Config{
//	    Interval:   time.Minute,
//	    WatchFiles: []string{"userlist.yaml"},
//	})
//	if err != nil {
//	    return err
//	}
//	d.Subscribe(dashboardHandler)
//	return d.Start(ctx)
//
// # Scheduling
//
// A sync is started once at startup, then on every Interval tick, on every
// Trigger call, and after a watched file has been quiet for DebounceInterval.
// At most one cycle runs at a time; a request that arrives while one is in
// flight is skipped and counted in Status().Skipped.
//
// # File Watching
//
// FileWatcher watches the parent directory of each file, so an editor that
// saves by writing a temporary file and renaming it over the original is
// still seen. Operations map as follows:
//   - fsnotify.Create → OpCreate
//   - fsnotify.Write → OpModify
//   - fsnotify.Remove, fsnotify.Rename → OpDelete
//
// Events for other files in the same directory are ignored.
//
// # Snapshot Ownership
//
// Subscribers are called on the consumer goroutine (the one the handle
// posts to). They may keep and read the snapshot they are given until the
// next OnUpdate, and must not Close it; the daemon closes each snapshot when
// it is replaced and the last one on Stop.
//
// # Graceful Shutdown
//
// Cancel the context passed to Start, or call Stop():
//  1. The schedule and watcher goroutines exit
//  2. The handle is stopped, cancelling any in-flight cycle
//  3. The current snapshot is released on the consumer goroutine
package daemon

package viewmodel

import "errors"

// Sentinel errors for handle misuse.
var (
	// ErrHandleStopped is returned when Start is called after Stop.
	ErrHandleStopped = errors.New("view model handle is stopped")

	// ErrSyncInProgress is returned when Start is called while a cycle is
	// still running or awaiting delivery.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNilObserver is returned when Start is called without an observer.
	ErrNilObserver = errors.New("observer cannot be nil")
)

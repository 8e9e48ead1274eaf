package store

import (
	"errors"
	"fmt"
)

// ErrSnapshotClosed is returned when a snapshot is read after Close.
var ErrSnapshotClosed = errors.New("snapshot is closed")

// StorageError reports a failed prepare, exec, query or transaction step.
type StorageError struct {
	// Op names the failed step ("begin", "update user", "commit", ...)
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// MergeError reports the record that aborted a merge. The whole batch was
// rolled back when this is returned.
type MergeError struct {
	// Index is the position of the failing record in the batch (-1 when the
	// failure was not tied to a record, e.g. begin or commit)
	Index int
	ID    int64
	Err   error
}

func (e *MergeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("merge failed: %v", e.Err)
	}
	return fmt.Sprintf("merge failed at record %d (id %d): %v", e.Index, e.ID, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

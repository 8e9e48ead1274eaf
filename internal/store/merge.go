package store

import (
	"context"

	"github.com/mschirtzinger/userlist/internal/domain"
)

// MergeStats counts what a successful merge changed.
type MergeStats struct {
	Inserted int
	Updated  int
}

// Merge upserts a batch of remote users in a single transaction.
//
// Each record is first applied as an update of login by id; only when the
// update touches no row is the record inserted. Updating first keeps logins
// current on re-merge, so merging the same batch twice leaves the table
// unchanged.
//
// The batch is all-or-nothing: any failure, including ctx cancellation,
// rolls back every record and returns a *MergeError.
func (db *DB) Merge(ctx context.Context, users []domain.User) (MergeStats, error) {
	var stats MergeStats

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return MergeStats{}, &MergeError{Index: -1, Err: &StorageError{Op: "begin", Err: err}}
	}
	defer tx.Rollback()

	update, err := tx.PrepareContext(ctx, updateUserSQL)
	if err != nil {
		return MergeStats{}, &MergeError{Index: -1, Err: &StorageError{Op: "prepare update", Err: err}}
	}
	defer update.Close()

	insert, err := tx.PrepareContext(ctx, insertUserSQL)
	if err != nil {
		return MergeStats{}, &MergeError{Index: -1, Err: &StorageError{Op: "prepare insert", Err: err}}
	}
	defer insert.Close()

	for i, u := range users {
		res, err := update.ExecContext(ctx, u.ID, u.Login)
		if err != nil {
			return MergeStats{}, &MergeError{Index: i, ID: u.ID, Err: &StorageError{Op: "update user", Err: err}}
		}

		n, err := res.RowsAffected()
		if err != nil {
			return MergeStats{}, &MergeError{Index: i, ID: u.ID, Err: &StorageError{Op: "rows affected", Err: err}}
		}
		if n > 0 {
			stats.Updated++
			continue
		}

		if _, err := insert.ExecContext(ctx, u.ID, u.Login); err != nil {
			return MergeStats{}, &MergeError{Index: i, ID: u.ID, Err: &StorageError{Op: "insert user", Err: err}}
		}
		stats.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return MergeStats{}, &MergeError{Index: -1, Err: &StorageError{Op: "commit", Err: err}}
	}

	return stats, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
)

// Snapshot is a forward-only cursor over the users listing plus a count of
// the same rows, both pinned to one read transaction. Merges committed after
// the snapshot was opened are not visible through it.
//
// A Snapshot is not safe for concurrent use.
type Snapshot struct {
	ctx   context.Context
	tx    *sql.Tx
	rows  *sql.Rows
	login string
	valid bool
	done  bool
}

// OpenSnapshot begins a read transaction and positions a cursor on the first
// user in id order.
//
// ctx bounds the whole lifetime of the snapshot: database/sql rolls the
// transaction back when ctx is cancelled. Pass a context that outlives the
// caller when the snapshot is handed to another goroutine.
func (db *DB) OpenSnapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, &StorageError{Op: "begin snapshot", Err: err}
	}

	rows, err := tx.QueryContext(ctx, listUsersSQL)
	if err != nil {
		_ = tx.Rollback()
		return nil, &StorageError{Op: "list users", Err: err}
	}

	s := &Snapshot{ctx: ctx, tx: tx, rows: rows}
	// The first step also fixes the read snapshot of the transaction.
	if err := s.step(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Valid reports whether the cursor is positioned on a row.
func (s *Snapshot) Valid() bool {
	return s.valid
}

// Value returns the login of the current row.
func (s *Snapshot) Value() string {
	return s.login
}

// Advance moves the cursor to the next row. After the last row Valid
// reports false.
func (s *Snapshot) Advance() error {
	if s.done {
		return ErrSnapshotClosed
	}
	if !s.valid {
		return nil
	}
	return s.step()
}

func (s *Snapshot) step() error {
	if !s.rows.Next() {
		s.valid = false
		s.login = ""
		if err := s.rows.Err(); err != nil {
			return &StorageError{Op: "advance cursor", Err: err}
		}
		return nil
	}

	if err := s.rows.Scan(&s.login); err != nil {
		s.valid = false
		return &StorageError{Op: "scan login", Err: err}
	}
	s.valid = true
	return nil
}

// Count returns the number of users visible to this snapshot.
func (s *Snapshot) Count() (int32, error) {
	if s.done {
		return 0, ErrSnapshotClosed
	}

	var count int32
	if err := s.tx.QueryRowContext(s.ctx, countUsersSQL).Scan(&count); err != nil {
		return 0, &StorageError{Op: "count users", Err: err}
	}
	return count, nil
}

// Close releases the cursor and ends the read transaction. Safe to call more
// than once.
func (s *Snapshot) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.valid = false

	rowsErr := s.rows.Close()
	txErr := s.tx.Rollback()
	if errors.Is(txErr, sql.ErrTxDone) {
		txErr = nil
	}
	if err := errors.Join(rowsErr, txErr); err != nil {
		return &StorageError{Op: "close snapshot", Err: err}
	}
	return nil
}

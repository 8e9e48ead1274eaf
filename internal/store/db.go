// Package store provides the SQLite cache of remote users.
//
// The database runs embedded (ncruces/go-sqlite3, no cgo) in WAL mode so a
// published snapshot can keep reading while a later sync merges new rows.
//
// Architecture:
//   - Database file: userlist.db (configurable)
//   - Table users(id, login), listed and counted in id order
//   - Merge: update-then-insert under one transaction
//   - Snapshot: read transaction pinning one listing cursor and its count
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mschirtzinger/userlist/internal/domain"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// Pragmas are passed in the DSN so every pooled connection gets them, not
// only the first one.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open("userlist.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the users table if it doesn't exist. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return &StorageError{Op: "init schema", Err: err}
	}
	return nil
}

// UserCount returns the number of stored users.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, countUsersSQL).Scan(&count); err != nil {
		return 0, &StorageError{Op: "count users", Err: err}
	}
	return count, nil
}

// ListUsers returns up to limit users in id order, skipping offset rows.
// A limit of 0 or less returns every remaining row.
func (db *DB) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.conn.QueryContext(ctx, pageUsersSQL, limit, offset)
	if err != nil {
		return nil, &StorageError{Op: "list users", Err: err}
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Login); err != nil {
			return nil, &StorageError{Op: "scan user", Err: err}
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate users", Err: err}
	}

	return users, nil
}

// GetUser retrieves a single user by id.
// Returns sql.ErrNoRows if the user is not stored.
func (db *DB) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := db.conn.QueryRowContext(ctx, getUserSQL, id).Scan(&u.ID, &u.Login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, &StorageError{Op: "get user", Err: err}
	}
	return &u, nil
}

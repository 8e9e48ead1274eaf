// Package listvm provides the lazily materialized, index-addressable view of
// one listing snapshot.
//
// A Cache wraps a forward-only RowCursor. Rows are pulled from the cursor
// only when an index beyond what has been seen is requested, and every
// materialized row is kept, so scrolling back never touches storage again.
// A Cache is bound to one cursor for its whole life; a new sync produces a
// new Cache rather than resetting an old one.
//
// A Cache is not safe for concurrent use. It is meant to be read from the
// single goroutine that received it (the UI loop).
package listvm

import (
	"errors"
	"io"
	"time"
)

// ErrNegativeIndex is returned by Get for an index below zero.
var ErrNegativeIndex = errors.New("listvm: negative index")

// Row is one materialized list entry.
type Row struct {
	Index int32
	Value string
}

// RowCursor is a forward-only, single-pass enumerator over an ordered result.
type RowCursor interface {
	// Valid reports whether the cursor is positioned on a row (has more).
	Valid() bool
	// Value returns the value of the current row.
	Value() string
	// Advance moves to the next row.
	Advance() error
}

// Counter computes the total row count of the listing the cursor walks.
type Counter interface {
	Count() (int32, error)
}

// Op identifies the cache operation a latency sample belongs to.
type Op string

const (
	OpCount Op = "count"
	OpGet   Op = "get"
)

// LatencyFunc receives the elapsed time of an operation that did I/O.
type LatencyFunc func(op Op, elapsed time.Duration)

// Option configures a Cache.
type Option func(*Cache)

// WithLatencyReporter reports the duration of every count query and of every
// Get that advanced the cursor and produced a row.
func WithLatencyReporter(fn LatencyFunc) Option {
	return func(c *Cache) {
		c.report = fn
	}
}

// Cache memoizes rows and the total count of one snapshot.
type Cache struct {
	cursor  RowCursor
	counter Counter
	report  LatencyFunc

	// rows[i] is populated for every i < pos
	rows []Row
	pos  int32

	count    int32
	hasCount bool

	exhausted bool
	released  bool
	err       error
}

// New creates a Cache over cursor. counter is consulted at most once, and
// not at all if the cursor is exhausted before Count is first called.
//
// If cursor implements io.Closer it is closed as soon as it is exhausted, or
// by Close.
func New(cursor RowCursor, counter Counter, opts ...Option) *Cache {
	c := &Cache{
		cursor:  cursor,
		counter: counter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Count returns the total number of rows in the snapshot.
func (c *Cache) Count() (int32, error) {
	if c.hasCount {
		return c.count, nil
	}
	if c.released && !c.exhausted {
		return 0, errReleased
	}

	start := time.Now()
	n, err := c.counter.Count()
	if err != nil {
		return 0, err
	}
	c.count = n
	c.hasCount = true
	c.observe(OpCount, start)
	return n, nil
}

// Get returns the row at index. ok is false when index is past the end of
// the snapshot, which is not an error.
//
// Rows already materialized are returned without touching the cursor. For
// a new index the cursor is advanced row by row, storing each row, until the
// index is reached or the cursor runs out. The cursor is advanced at most
// once per row over the life of the Cache.
//
// A cursor error is returned for the request that hit it and every later
// request that needs the cursor; rows materialized before it stay readable.
func (c *Cache) Get(index int32) (row Row, ok bool, err error) {
	if index < 0 {
		return Row{}, false, ErrNegativeIndex
	}
	if index < c.pos {
		return c.rows[index], true, nil
	}
	if c.exhausted {
		return Row{}, false, nil
	}
	if c.err != nil {
		return Row{}, false, c.err
	}
	if c.released {
		return Row{}, false, errReleased
	}

	start := time.Now()
	for c.pos <= index {
		if !c.cursor.Valid() {
			c.finish()
			return Row{}, false, nil
		}

		c.rows = append(c.rows, Row{Index: c.pos, Value: c.cursor.Value()})
		c.pos++

		if err := c.cursor.Advance(); err != nil {
			c.err = err
			break
		}
		if !c.cursor.Valid() {
			c.finish()
			break
		}
	}

	if index < c.pos {
		c.observe(OpGet, start)
		return c.rows[index], true, nil
	}
	if c.err != nil {
		return Row{}, false, c.err
	}
	return Row{}, false, nil
}

// Materialized returns how many leading rows are held in memory.
func (c *Cache) Materialized() int32 {
	return c.pos
}

// Exhausted reports whether the cursor has been read to its end.
func (c *Cache) Exhausted() bool {
	return c.exhausted
}

// Close releases the underlying cursor. Materialized rows, and the count if
// it was already known, remain readable. Safe to call more than once.
func (c *Cache) Close() error {
	return c.release()
}

var errReleased = errors.New("listvm: cache closed before cursor was exhausted")

// finish records exhaustion. The true row count is now the cursor position.
func (c *Cache) finish() {
	c.exhausted = true
	if !c.hasCount {
		c.count = c.pos
		c.hasCount = true
	}
	_ = c.release()
}

func (c *Cache) release() error {
	if c.released {
		return nil
	}
	c.released = true
	if closer, ok := c.cursor.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cache) observe(op Op, start time.Time) {
	if c.report != nil {
		c.report(op, time.Since(start))
	}
}

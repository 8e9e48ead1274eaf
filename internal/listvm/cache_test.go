package listvm

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

// fakeCursor walks a fixed slice and counts every call that does "I/O".
type fakeCursor struct {
	values   []string
	pos      int
	advances int
	closed   int
	failAt   int // Advance fails when leaving this position (-1 = never)
}

func newFakeCursor(values ...string) *fakeCursor {
	return &fakeCursor{values: values, failAt: -1}
}

func (f *fakeCursor) Valid() bool   { return f.pos < len(f.values) }
func (f *fakeCursor) Value() string { return f.values[f.pos] }

func (f *fakeCursor) Advance() error {
	if f.pos == f.failAt {
		return errors.New("disk on fire")
	}
	f.advances++
	f.pos++
	return nil
}

func (f *fakeCursor) Close() error {
	f.closed++
	return nil
}

type fakeCounter struct {
	n     int32
	calls int
	err   error
}

func (f *fakeCounter) Count() (int32, error) {
	f.calls++
	return f.n, f.err
}

func values(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i%26))
	}
	return out
}

func TestGet_Memoized(t *testing.T) {
	cur := newFakeCursor("a", "b", "c")
	c := New(cur, &fakeCounter{n: 3})

	first, ok, err := c.Get(1)
	if err != nil || !ok {
		t.Fatalf("Get(1) = %v, %v, %v", first, ok, err)
	}
	advances := cur.advances

	for i := 0; i < 5; i++ {
		again, ok, err := c.Get(1)
		if err != nil || !ok {
			t.Fatalf("repeat Get(1) = %v, %v, %v", again, ok, err)
		}
		if again != first {
			t.Errorf("repeat Get(1) = %v, want %v", again, first)
		}
	}
	if _, _, err := c.Get(0); err != nil {
		t.Fatalf("Get(0) failed: %v", err)
	}

	if cur.advances != advances {
		t.Errorf("advances = %d after repeats, want %d", cur.advances, advances)
	}
}

func TestGet_MaterializesIntermediateRows(t *testing.T) {
	cur := newFakeCursor("a", "b", "c", "d")
	c := New(cur, &fakeCounter{n: 4})

	row, ok, err := c.Get(2)
	if err != nil || !ok {
		t.Fatalf("Get(2) = %v, %v, %v", row, ok, err)
	}
	if row != (Row{Index: 2, Value: "c"}) {
		t.Errorf("Get(2) = %v, want {2 c}", row)
	}
	if c.Materialized() != 3 {
		t.Errorf("Materialized() = %d, want 3", c.Materialized())
	}
	if cur.advances != 3 {
		t.Errorf("advances = %d, want 3", cur.advances)
	}

	row, ok, _ = c.Get(0)
	if !ok || row != (Row{Index: 0, Value: "a"}) {
		t.Errorf("Get(0) = %v, %v, want {0 a}", row, ok)
	}
}

func TestGet_AdvancesOncePerRowInAnyOrder(t *testing.T) {
	tests := []struct {
		name string
		rows int
	}{
		{"empty", 0},
		{"single", 1},
		{"small", 7},
		{"large", 300},
	}

	rng := rand.New(rand.NewSource(42))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals := values(tt.rows)
			cur := newFakeCursor(vals...)
			c := New(cur, &fakeCounter{n: int32(tt.rows)})

			maxIndex := int32(-1)
			for i := 0; i < 200; i++ {
				idx := int32(rng.Intn(tt.rows + 5))
				if idx > maxIndex {
					maxIndex = idx
				}

				row, ok, err := c.Get(idx)
				if err != nil {
					t.Fatalf("Get(%d) failed: %v", idx, err)
				}
				if int(idx) < tt.rows {
					if !ok || row.Value != vals[idx] || row.Index != idx {
						t.Fatalf("Get(%d) = %v, %v, want {%d %s}", idx, row, ok, idx, vals[idx])
					}
				} else if ok {
					t.Fatalf("Get(%d) = %v, want no value", idx, row)
				}
			}

			want := int(maxIndex) + 1
			if tt.rows < want {
				want = tt.rows
			}
			if cur.advances != want {
				t.Errorf("advances = %d, want min(N, max+1) = %d", cur.advances, want)
			}
		})
	}
}

func TestGet_OutOfRange(t *testing.T) {
	cur := newFakeCursor("a", "b")
	counter := &fakeCounter{n: 99}
	c := New(cur, counter)

	for _, idx := range []int32{2, 1000000, 2} {
		row, ok, err := c.Get(idx)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", idx, err)
		}
		if ok {
			t.Errorf("Get(%d) = %v, want no value", idx, row)
		}
	}

	if !c.Exhausted() {
		t.Error("Exhausted() = false after reading past the end")
	}
	if c.Materialized() != 2 {
		t.Errorf("Materialized() = %d, want 2", c.Materialized())
	}
	if cur.advances != 2 {
		t.Errorf("advances = %d, want 2", cur.advances)
	}
	if cur.closed != 1 {
		t.Errorf("cursor closed %d times, want 1", cur.closed)
	}

	// Rows before the end stay readable after exhaustion.
	if row, ok, _ := c.Get(1); !ok || row.Value != "b" {
		t.Errorf("Get(1) after exhaustion = %v, %v", row, ok)
	}

	// The count comes from the exhausted cursor, not the counter.
	n, err := c.Count()
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 2 || counter.calls != 0 {
		t.Errorf("Count() = %d with %d counter calls, want 2 with 0", n, counter.calls)
	}
}

func TestGet_NegativeIndex(t *testing.T) {
	c := New(newFakeCursor("a"), &fakeCounter{n: 1})

	if _, _, err := c.Get(-1); !errors.Is(err, ErrNegativeIndex) {
		t.Errorf("Get(-1) error = %v, want ErrNegativeIndex", err)
	}
}

func TestCount_Memoized(t *testing.T) {
	counter := &fakeCounter{n: 42}
	c := New(newFakeCursor(values(42)...), counter)

	for i := 0; i < 3; i++ {
		n, err := c.Count()
		if err != nil {
			t.Fatalf("Count() failed: %v", err)
		}
		if n != 42 {
			t.Errorf("Count() = %d, want 42", n)
		}
	}
	if counter.calls != 1 {
		t.Errorf("counter calls = %d, want 1", counter.calls)
	}

	// A count taken before exhaustion is kept.
	counter.n = 7
	if _, _, err := c.Get(100); err != nil {
		t.Fatalf("Get(100) failed: %v", err)
	}
	if n, _ := c.Count(); n != 42 {
		t.Errorf("Count() after exhaustion = %d, want 42", n)
	}
}

func TestCount_ErrorNotMemoized(t *testing.T) {
	counter := &fakeCounter{err: errors.New("locked")}
	c := New(newFakeCursor("a"), counter)

	if _, err := c.Count(); err == nil {
		t.Fatal("Count() succeeded, want error")
	}

	counter.err = nil
	counter.n = 1
	n, err := c.Count()
	if err != nil {
		t.Fatalf("retry Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestGet_CursorErrorIsSticky(t *testing.T) {
	cur := newFakeCursor("a", "b", "c")
	cur.failAt = 1
	c := New(cur, &fakeCounter{n: 3})

	// Row 1 is materialized before the failing advance.
	row, ok, err := c.Get(1)
	if err != nil || !ok || row.Value != "b" {
		t.Fatalf("Get(1) = %v, %v, %v, want {1 b}", row, ok, err)
	}

	if _, _, err := c.Get(2); err == nil {
		t.Fatal("Get(2) succeeded after cursor failure")
	}
	advances := cur.advances
	if _, _, err := c.Get(2); err == nil {
		t.Fatal("repeat Get(2) succeeded after cursor failure")
	}
	if cur.advances != advances {
		t.Errorf("cursor advanced again after failure")
	}

	if row, ok, err := c.Get(0); err != nil || !ok || row.Value != "a" {
		t.Errorf("Get(0) = %v, %v, %v, want {0 a}", row, ok, err)
	}
}

func TestClose_ReleasesCursor(t *testing.T) {
	cur := newFakeCursor("a", "b", "c")
	counter := &fakeCounter{n: 3}
	c := New(cur, counter)

	if _, _, err := c.Get(0); err != nil {
		t.Fatalf("Get(0) failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
	if cur.closed != 1 {
		t.Errorf("cursor closed %d times, want 1", cur.closed)
	}

	if row, ok, err := c.Get(0); err != nil || !ok || row.Value != "a" {
		t.Errorf("Get(0) after Close = %v, %v, %v", row, ok, err)
	}
	if _, _, err := c.Get(2); err == nil {
		t.Error("Get(2) after Close succeeded, want error")
	}
	if _, err := c.Count(); err == nil {
		t.Error("Count() after Close succeeded, want error")
	}
	if counter.calls != 0 {
		t.Errorf("counter called %d times after Close", counter.calls)
	}
}

func TestLatencyReporter(t *testing.T) {
	var ops []Op
	report := func(op Op, elapsed time.Duration) {
		if elapsed < 0 {
			t.Errorf("negative elapsed for %s", op)
		}
		ops = append(ops, op)
	}

	c := New(newFakeCursor("a", "b", "c"), &fakeCounter{n: 3}, WithLatencyReporter(report))

	_, _ = c.Count()
	_, _ = c.Count()    // memoized, no report
	_, _, _ = c.Get(1)  // cursor read, reported
	_, _, _ = c.Get(0)  // cached, no report
	_, _, _ = c.Get(10) // past the end, no report

	want := []Op{OpCount, OpGet}
	if len(ops) != len(want) {
		t.Fatalf("reported ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op[%d] = %s, want %s", i, ops[i], want[i])
		}
	}
}

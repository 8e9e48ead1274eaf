package listvm_test

import (
	"fmt"

	"github.com/mschirtzinger/userlist/internal/listvm"
)

type sliceCursor struct {
	vals []string
	i    int
}

func (s *sliceCursor) Valid() bool   { return s.i < len(s.vals) }
func (s *sliceCursor) Value() string { return s.vals[s.i] }
func (s *sliceCursor) Advance() error {
	s.i++
	return nil
}

type fixedCount int32

func (n fixedCount) Count() (int32, error) { return int32(n), nil }

func ExampleCache_Get() {
	cache := listvm.New(&sliceCursor{vals: []string{"a", "b"}}, fixedCount(2))

	for i := int32(0); i < 3; i++ {
		row, ok, err := cache.Get(i)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		if !ok {
			fmt.Printf("%d: out of range\n", i)
			continue
		}
		fmt.Printf("%d: %s\n", row.Index, row.Value)
	}
	// Output:
	// 0: a
	// 1: b
	// 2: out of range
}

package routing

import (
	"sort"

	"rangedb/pkg/types"
)

// floorIndex returns the largest i in [0, n) with key(i) <= target, or -1 when
// every key exceeds target. Keys must be sorted ascending.
func floorIndex(n int, target types.Key, key func(int) types.Key) int {
	// smallest i with key(i) > target, minus one
	i := sort.Search(n, func(i int) bool { return key(i) > target })
	return i - 1
}

// ceilIndex returns the smallest i in [0, n) with key(i) >= target, or n when
// every key is below target. Keys must be sorted ascending.
func ceilIndex(n int, target types.Key, key func(int) types.Key) int {
	return sort.Search(n, func(i int) bool { return key(i) >= target })
}

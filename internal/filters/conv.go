package filters

import (
	"fmt"
	"sort"
)

// identity returns a comparable key for dedup, keeping 1 and "1" distinct.
func identity(v any) string {
	return fmt.Sprintf("%T\x00%v", v, v)
}

// sortSlice orders items in place with a three-way comparator, keeping
// equal elements in their original order.
func sortSlice(items []any, cmp func(a, b any) int) {
	sort.SliceStable(items, func(i, j int) bool {
		return cmp(items[i], items[j]) < 0
	})
}

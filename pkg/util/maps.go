// Package util holds small generic helpers shared by overcode packages.
package util

import (
	"cmp"
	"maps"
	"slices"
)

// SortedKeys returns the keys of a map in sorted order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// Set is an unordered collection of distinct values.
type Set[K comparable] map[K]struct{}

// NewSet returns a set holding items.
func NewSet[K comparable](items ...K) Set[K] {
	s := make(Set[K], len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Add inserts k.
func (s Set[K]) Add(k K) {
	s[k] = struct{}{}
}

// Has reports whether k is in the set. A nil set is empty.
func (s Set[K]) Has(k K) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the members of an ordered set in ascending order.
func Sorted[K cmp.Ordered](s Set[K]) []K {
	return SortedKeys(s)
}

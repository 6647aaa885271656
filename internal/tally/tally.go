// Package tally counts how many availability sets each order appears in.
package tally

import (
	"fmt"
	"sort"
)

// Key identifies one spacecraft on one day offset of the lookahead window.
type Key struct {
	Spacecraft string
	Day        int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/day%d", k.Spacecraft, k.Day)
}

// Set is a set of order identifiers.
type Set[ID comparable] map[ID]struct{}

// NewSet builds a set from the given identifiers.
func NewSet[ID comparable](ids ...ID) Set[ID] {
	s := make(Set[ID], len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set.
func (s Set[ID]) Add(id ID) {
	s[id] = struct{}{}
}

// Contains reports whether id is in the set.
func (s Set[ID]) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Availability maps each key to the orders visible under it.
type Availability[K comparable, ID comparable] map[K]Set[ID]

// Count returns, for every identifier in the union of all sets, the number of
// keys whose set contains it. Each membership is visited exactly once.
func Count[K comparable, ID comparable](m Availability[K, ID]) map[ID]int {
	counts := make(map[ID]int)
	for _, set := range m {
		for id := range set {
			counts[id]++
		}
	}
	return counts
}

// Union returns every identifier that appears in at least one set.
func Union[K comparable, ID comparable](m Availability[K, ID]) Set[ID] {
	u := make(Set[ID])
	for _, set := range m {
		for id := range set {
			u[id] = struct{}{}
		}
	}
	return u
}

// Histogram maps an access count to the number of orders having it.
func Histogram[ID comparable](counts map[ID]int) map[int]int {
	h := make(map[int]int)
	for _, c := range counts {
		h[c]++
	}
	return h
}

// Entry is one row of a sorted count table.
type Entry struct {
	ID    string
	Count int
}

// Sorted returns the count table ordered by ID.
func Sorted(counts map[string]int) []Entry {
	entries := make([]Entry, 0, len(counts))
	for id, c := range counts {
		entries = append(entries, Entry{ID: id, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Top returns up to n entries with the highest counts, ties broken by ID.
func Top(counts map[string]int, n int) []Entry {
	entries := Sorted(counts)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

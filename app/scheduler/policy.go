package scheduler

import "github.com/habitforge/challenge-engine/pkg/catalog"

// TieBreakPolicy picks the winning option position from per-option vote
// counts. Counts are never empty when called.
type TieBreakPolicy func(counts []int) int

// FirstOptionWins picks the option with the maximum count; ties resolve to
// the lowest position.
var FirstOptionWins TieBreakPolicy = func(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}

// FallbackPolicy picks the next challenge index when voting data is
// unavailable.
type FallbackPolicy func(cat *catalog.Catalog, currentIndex int) int

// SequentialRotation advances one position through the catalog, wrapping at
// the end.
var SequentialRotation FallbackPolicy = func(cat *catalog.Catalog, currentIndex int) int {
	return cat.NextIndex(currentIndex)
}

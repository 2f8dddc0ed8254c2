package grid

import "slices"

// SortByPosition sorts entities ascending by position, in place.
// The sort is stable: entities with equal positions keep the order they
// appear in the source list. Equal positions are a valid transient state
// during drag reordering, so the tie-break must be deterministic.
func SortByPosition[E Entity[E]](entities []E) {
	slices.SortStableFunc(entities, func(a, b E) int {
		return a.EntityPosition() - b.EntityPosition()
	})
}

// NextPosition returns the position a newly added entity should take:
// max(existing positions) + 1, or 0 when the list is empty. Positions
// need not be contiguous; gaps are allowed.
func NextPosition[E Entity[E]](entities []E) int {
	if len(entities) == 0 {
		return 0
	}
	max := entities[0].EntityPosition()
	for _, e := range entities[1:] {
		if p := e.EntityPosition(); p > max {
			max = p
		}
	}
	return max + 1
}

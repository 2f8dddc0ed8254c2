package overlay

import "slices"

// Tombstones records entities that were locally deleted but whose
// deletion the server has not yet confirmed. A tombstoned id is
// suppressed from every merged view until a snapshot arrives that no
// longer contains it.
//
// Entries are removed only by confirmed absence, never by time. A timer
// would reopen the race this set exists to close: a slow round-trip
// resurrecting a just-deleted column for a flicker. The cost is that a
// deletion whose confirming snapshot never arrives leaves the entity
// hidden client-side until a forced refetch re-seeds the overlay.
//
// Not safe for concurrent use on its own; the owning Overlay serializes
// access under its mutex.
type Tombstones struct {
	ids map[string]struct{}
}

// NewTombstones creates an empty tombstone set.
func NewTombstones() *Tombstones {
	return &Tombstones{ids: make(map[string]struct{})}
}

// MarkDeleted records a local deletion of id.
func (t *Tombstones) MarkDeleted(id string) {
	t.ids[id] = struct{}{}
}

// Remove drops id from the set without confirmation. Used only for
// compensation when a delete fails to persist and the entity is
// restored locally.
func (t *Tombstones) Remove(id string) {
	delete(t.ids, id)
}

// IsTombstoned reports whether id is suppressed.
func (t *Tombstones) IsTombstoned(id string) bool {
	_, ok := t.ids[id]
	return ok
}

// Reconcile clears every tombstoned id that is absent from serverIDs:
// the server no longer knows the entity, so the deletion is confirmed.
// Ids still present server-side stay tombstoned; under eventual
// consistency the deletion simply has not propagated yet.
func (t *Tombstones) Reconcile(serverIDs map[string]struct{}) {
	for id := range t.ids {
		if _, present := serverIDs[id]; !present {
			delete(t.ids, id)
		}
	}
}

// Clear drops every tombstone. Used when the overlay adopts a different
// table's snapshot wholesale; the old entries refer to ids the new
// table will never report.
func (t *Tombstones) Clear() {
	clear(t.ids)
}

// Len returns the number of tombstoned ids.
func (t *Tombstones) Len() int {
	return len(t.ids)
}

// IDs returns the tombstoned ids in sorted order, for logs and tests.
func (t *Tombstones) IDs() []string {
	ids := make([]string, 0, len(t.ids))
	for id := range t.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

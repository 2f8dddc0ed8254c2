package overlay

// ApplySnapshot merges a complete, authoritative server snapshot into
// the working set. Called for every snapshot delivery; Seed handles only
// the very first load of an empty overlay.
//
// The merge never fails. Malformed entries (missing id) are dropped
// individually with a diagnostic; the remaining entries still merge.
//
// Merge decision, in order:
//  1. Reconcile tombstones against the snapshot's ids.
//  2. Empty working set: adopt the snapshot directly. The common
//     first-load path, and it must bypass merging entirely so a stale
//     overlay from a different table cannot bleed through.
//  3. Non-empty snapshot sharing no ids with the working set: this is a
//     different table's data (the view switched tables and the overlay
//     is stale). Adopt the snapshot wholesale and clear tombstones,
//     which refer to the old table's ids. A table that legitimately
//     replaced every column in one round-trip is indistinguishable from
//     a table switch here; the heuristic keeps behavioral parity with
//     the system this engine reconciles for (see DESIGN.md).
//  4. Otherwise merge incrementally: keep non-tombstoned local entities
//     (preserving unconfirmed local adds), let the server win on field
//     values for overlapping ids, insert entities the server knows and
//     the overlay does not, and drop tombstoned ids.
func (o *Overlay[E]) ApplySnapshot(snapshot []E) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entities := make([]E, 0, len(snapshot))
	for _, e := range snapshot {
		if e.EntityID() == "" {
			o.logger.Warn("dropping malformed snapshot entry", "reason", "missing id")
			continue
		}
		entities = append(entities, e.Clone())
	}

	serverIDs := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		serverIDs[e.EntityID()] = struct{}{}
	}
	o.tombstones.Reconcile(serverIDs)

	if len(o.optimistic) == 0 {
		o.optimistic = entities
		o.baseline = cloneAll(entities)
		return
	}

	if len(entities) > 0 && !overlaps(o.optimistic, serverIDs) {
		o.logger.Info("snapshot shares no ids with working set, replacing wholesale",
			"local", len(o.optimistic),
			"snapshot", len(entities),
		)
		o.optimistic = entities
		o.baseline = cloneAll(entities)
		o.tombstones.Clear()
		return
	}

	merged := make([]E, 0, len(o.optimistic)+len(entities))
	index := make(map[string]int, len(o.optimistic))
	for _, e := range o.optimistic {
		id := e.EntityID()
		if o.tombstones.IsTombstoned(id) {
			// Can only happen transiently; the invariant is restored here.
			continue
		}
		index[id] = len(merged)
		merged = append(merged, e)
	}
	for _, e := range entities {
		id := e.EntityID()
		if o.tombstones.IsTombstoned(id) {
			continue
		}
		if i, ok := index[id]; ok {
			merged[i] = e
		} else {
			index[id] = len(merged)
			merged = append(merged, e)
		}
	}

	o.optimistic = merged
	o.baseline = cloneAll(entities)
}

func overlaps[E interface{ EntityID() string }](local []E, serverIDs map[string]struct{}) bool {
	for _, e := range local {
		if _, ok := serverIDs[e.EntityID()]; ok {
			return true
		}
	}
	return false
}

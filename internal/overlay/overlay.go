package overlay

import (
	"log/slog"
	"sync"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// Overlay is the optimistic working set for one table's columns or rows.
//
// State:
//   - baseline: last-known-good server snapshot
//   - optimistic: current working set, seeded from baseline, mutated
//     locally; held in insertion order so equal positions iterate
//     deterministically
//   - tombstones: locally deleted ids awaiting server confirmation
//
// INVARIANTS:
//   - No tombstoned id ever appears in optimistic
//   - CurrentView is sorted by position ascending, insertion order on ties
//   - Mutations are synchronous and atomic; none perform I/O
type Overlay[E grid.Entity[E]] struct {
	mu         sync.Mutex
	logger     *slog.Logger
	baseline   []E
	optimistic []E
	tombstones *Tombstones
}

// New creates an empty overlay. A nil logger defaults to slog.Default().
func New[E grid.Entity[E]](logger *slog.Logger) *Overlay[E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay[E]{
		logger:     logger,
		tombstones: NewTombstones(),
	}
}

// Seed initializes the working set from a server snapshot on first load.
// No-op when the overlay already holds entities; after the first load the
// merge path (ApplySnapshot) owns all updates.
func (o *Overlay[E]) Seed(server []E) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.optimistic) > 0 {
		return
	}
	o.optimistic = cloneAll(server)
	o.baseline = cloneAll(server)
}

// ApplyLocalAdd appends an entity at max(existing positions)+1 and
// returns the entity as stored. Idempotent per id: adding an id that is
// already present returns the existing entity and false.
func (o *Overlay[E]) ApplyLocalAdd(e E) (E, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := e.EntityID()
	if id == "" {
		o.logger.Warn("ignoring local add without id")
		var zero E
		return zero, false
	}
	if i := indexOf(o.optimistic, id); i >= 0 {
		return o.optimistic[i].Clone(), false
	}

	added := e.Clone().WithPosition(grid.NextPosition(o.optimistic))
	o.optimistic = append(o.optimistic, added)
	return added.Clone(), true
}

// ApplyLocalUpdate mutates the entity with the given id in place via
// mutate, which receives a copy and returns the replacement. No-op when
// the id is tombstoned or absent. The mutation must not change the
// entity's identity; a mutate that does is rejected.
func (o *Overlay[E]) ApplyLocalUpdate(id string, mutate func(E) E) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.tombstones.IsTombstoned(id) {
		return false
	}
	i := indexOf(o.optimistic, id)
	if i < 0 {
		return false
	}

	updated := mutate(o.optimistic[i].Clone())
	if updated.EntityID() != id {
		o.logger.Warn("rejecting local update that changes identity",
			"id", id,
			"new_id", updated.EntityID(),
		)
		return false
	}
	o.optimistic[i] = updated
	return true
}

// ApplyLocalDelete removes the entity from the working set and records a
// tombstone so a stale server echo cannot resurrect it. Reports whether
// an entity was actually removed; the tombstone is recorded either way.
func (o *Overlay[E]) ApplyLocalDelete(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tombstones.MarkDeleted(id)
	return o.removeLocked(id)
}

// ReplacePlaceholder swaps a locally generated placeholder for the
// server-confirmed entity, preserving the display position the
// placeholder occupied. When the placeholder is absent (a snapshot
// already reconciled it) the call logs and reports false rather than
// failing. When the confirmed id is already present the placeholder is
// removed instead of duplicating the entity.
func (o *Overlay[E]) ReplacePlaceholder(placeholderID string, real E) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	i := indexOf(o.optimistic, placeholderID)
	if i < 0 {
		o.logger.Debug("placeholder already reconciled",
			"placeholder_id", placeholderID,
			"real_id", real.EntityID(),
		)
		return false
	}

	if j := indexOf(o.optimistic, real.EntityID()); j >= 0 && j != i {
		// A snapshot delivered the confirmed entity while the create
		// call was in flight. Drop the placeholder; the confirmed
		// entity is already in place.
		o.optimistic = append(o.optimistic[:i], o.optimistic[i+1:]...)
		return true
	}

	o.optimistic[i] = real.Clone().WithPosition(o.optimistic[i].EntityPosition())
	return true
}

// Restore un-tombstones id and re-inserts the entity at its last known
// position. Compensation path for a delete that failed to persist.
func (o *Overlay[E]) Restore(e E) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := e.EntityID()
	o.tombstones.Remove(id)
	if indexOf(o.optimistic, id) < 0 {
		o.optimistic = append(o.optimistic, e.Clone())
	}
}

// RemoveLocal removes an entity without tombstoning it. Compensation
// path for an add that failed to persist: the entity never existed
// server-side, so there is nothing to suppress.
func (o *Overlay[E]) RemoveLocal(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.removeLocked(id)
}

// Get returns a copy of the entity with the given id.
func (o *Overlay[E]) Get(id string) (E, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if i := indexOf(o.optimistic, id); i >= 0 {
		return o.optimistic[i].Clone(), true
	}
	var zero E
	return zero, false
}

// CurrentView returns the working set sorted ascending by position,
// insertion order breaking ties. The returned slice and its entities are
// copies; callers cannot mutate overlay state through them.
func (o *Overlay[E]) CurrentView() []E {
	o.mu.Lock()
	defer o.mu.Unlock()

	view := cloneAll(o.optimistic)
	grid.SortByPosition(view)
	return view
}

// Len returns the number of entities in the working set.
func (o *Overlay[E]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.optimistic)
}

// Tombstoned reports whether id is currently suppressed.
func (o *Overlay[E]) Tombstoned(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tombstones.IsTombstoned(id)
}

// TombstoneIDs returns the suppressed ids in sorted order.
func (o *Overlay[E]) TombstoneIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tombstones.IDs()
}

// removeLocked removes id from optimistic. Caller holds o.mu.
func (o *Overlay[E]) removeLocked(id string) bool {
	i := indexOf(o.optimistic, id)
	if i < 0 {
		return false
	}
	o.optimistic = append(o.optimistic[:i], o.optimistic[i+1:]...)
	return true
}

func indexOf[E grid.Entity[E]](entities []E, id string) int {
	for i, e := range entities {
		if e.EntityID() == id {
			return i
		}
	}
	return -1
}

func cloneAll[E grid.Entity[E]](entities []E) []E {
	out := make([]E, len(entities))
	for i, e := range entities {
		out[i] = e.Clone()
	}
	return out
}

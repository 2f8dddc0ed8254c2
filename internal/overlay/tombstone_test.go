package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTombstones_MarkAndQuery(t *testing.T) {
	ts := NewTombstones()

	assert.False(t, ts.IsTombstoned("c1"))
	ts.MarkDeleted("c1")
	assert.True(t, ts.IsTombstoned("c1"))
	assert.Equal(t, 1, ts.Len())
}

func TestTombstones_ReconcileClearsOnConfirmedAbsence(t *testing.T) {
	ts := NewTombstones()
	ts.MarkDeleted("c1")
	ts.MarkDeleted("c2")

	// Server still shows c1 (deletion not propagated) but not c2.
	ts.Reconcile(map[string]struct{}{"c1": {}, "c3": {}})

	assert.True(t, ts.IsTombstoned("c1"), "still present server-side, stays tombstoned")
	assert.False(t, ts.IsTombstoned("c2"), "absent server-side, deletion confirmed")
}

func TestTombstones_ReconcileEmptySnapshot(t *testing.T) {
	ts := NewTombstones()
	ts.MarkDeleted("c1")

	ts.Reconcile(map[string]struct{}{})

	assert.Equal(t, 0, ts.Len())
}

func TestTombstones_Remove(t *testing.T) {
	ts := NewTombstones()
	ts.MarkDeleted("c1")
	ts.Remove("c1")

	assert.False(t, ts.IsTombstoned("c1"))
}

func TestTombstones_IDsSorted(t *testing.T) {
	ts := NewTombstones()
	ts.MarkDeleted("c2")
	ts.MarkDeleted("c1")
	ts.MarkDeleted("c3")

	assert.Equal(t, []string{"c1", "c2", "c3"}, ts.IDs())
}

func TestTombstones_Clear(t *testing.T) {
	ts := NewTombstones()
	ts.MarkDeleted("c1")
	ts.MarkDeleted("c2")
	ts.Clear()

	assert.Equal(t, 0, ts.Len())
	assert.Empty(t, ts.IDs())
}

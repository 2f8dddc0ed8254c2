package overlay

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atoms-tech/gridsync/internal/grid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func col(id string, pos int, name string) grid.Column {
	return grid.Column{
		ID:       grid.ColumnID(id),
		Position: pos,
		Property: grid.PropertyRef{Name: name, Kind: grid.KindText},
	}
}

func viewIDs(cols []grid.Column) []string {
	ids := make([]string, len(cols))
	for i, c := range cols {
		ids[i] = string(c.ID)
	}
	return ids
}

func TestSeed_Idempotent(t *testing.T) {
	o := New[grid.Column](testLogger())
	server := []grid.Column{col("c1", 0, "Name"), col("c2", 1, "Status")}

	o.Seed(server)
	once := o.CurrentView()

	o.Seed(server)
	twice := o.CurrentView()

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"c1", "c2"}, viewIDs(twice))
}

func TestSeed_NoOpWhenNonEmpty(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name")})

	o.Seed([]grid.Column{col("x1", 0, "Other")})

	assert.Equal(t, []string{"c1"}, viewIDs(o.CurrentView()))
}

func TestApplyLocalAdd_AssignsNextPosition(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name"), col("c2", 4, "Status")})

	added, ok := o.ApplyLocalAdd(col("tmp1", 0, "New Col"))
	require.True(t, ok)
	assert.Equal(t, 5, added.Position, "max(existing)+1, gaps allowed")
	assert.Equal(t, []string{"c1", "c2", "tmp1"}, viewIDs(o.CurrentView()))
}

func TestApplyLocalAdd_IdempotentPerID(t *testing.T) {
	o := New[grid.Column](testLogger())

	first, ok := o.ApplyLocalAdd(col("tmp1", 0, "New Col"))
	require.True(t, ok)

	second, ok := o.ApplyLocalAdd(col("tmp1", 0, "New Col"))
	assert.False(t, ok, "second add of the same placeholder id is ignored")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, o.Len())
}

func TestApplyLocalAdd_RejectsEmptyID(t *testing.T) {
	o := New[grid.Column](testLogger())

	_, ok := o.ApplyLocalAdd(grid.Column{})
	assert.False(t, ok)
	assert.Equal(t, 0, o.Len())
}

func TestApplyLocalUpdate_Rename(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name")})

	ok := o.ApplyLocalUpdate("c1", func(c grid.Column) grid.Column {
		c.Property.Name = "Title"
		return c
	})
	require.True(t, ok)

	got, ok := o.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "Title", got.Property.Name)
}

func TestApplyLocalUpdate_NoOpWhenTombstoned(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name")})
	o.ApplyLocalDelete("c1")

	ok := o.ApplyLocalUpdate("c1", func(c grid.Column) grid.Column {
		c.Property.Name = "Title"
		return c
	})
	assert.False(t, ok)
}

func TestApplyLocalUpdate_RejectsIdentityChange(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name")})

	ok := o.ApplyLocalUpdate("c1", func(c grid.Column) grid.Column {
		c.ID = "c99"
		return c
	})
	assert.False(t, ok)
	assert.Equal(t, []string{"c1"}, viewIDs(o.CurrentView()))
}

func TestApplyLocalDelete(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name"), col("c2", 1, "Status")})

	removed := o.ApplyLocalDelete("c1")
	assert.True(t, removed)
	assert.Equal(t, []string{"c2"}, viewIDs(o.CurrentView()))
	assert.True(t, o.Tombstoned("c1"))
}

func TestReplacePlaceholder_PreservesOrdinalPosition(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name"), col("c3", 2, "Status")})
	o.ApplyLocalAdd(col("tmp1", 0, "New Col")) // assigned position 3

	ok := o.ReplacePlaceholder("tmp1", col("c2", 3, "New Col"))
	require.True(t, ok)

	ids := viewIDs(o.CurrentView())
	assert.Equal(t, []string{"c1", "c3", "c2"}, ids)
	assert.NotContains(t, ids, "tmp1", "no duplicate for either id")
}

func TestReplacePlaceholder_AbsentPlaceholderIsSilent(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name")})

	ok := o.ReplacePlaceholder("tmp-gone", col("c2", 1, "New Col"))
	assert.False(t, ok)
	assert.Equal(t, []string{"c1"}, viewIDs(o.CurrentView()))
}

func TestReplacePlaceholder_RealIDAlreadyPresent(t *testing.T) {
	// A snapshot delivered the confirmed column while the create call
	// was in flight; replacing must not produce a duplicate.
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name")})
	o.ApplyLocalAdd(col("tmp1", 0, "New Col"))
	o.ApplySnapshot([]grid.Column{col("c1", 0, "Name"), col("c2", 1, "New Col")})

	// Both tmp1 and c2 are present now; the replace collapses them.
	o.ReplacePlaceholder("tmp1", col("c2", 1, "New Col"))

	assert.Equal(t, []string{"c1", "c2"}, viewIDs(o.CurrentView()))
}

func TestRestore_UndoesDelete(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name"), col("c2", 1, "Status")})

	prior, ok := o.Get("c1")
	require.True(t, ok)
	o.ApplyLocalDelete("c1")

	o.Restore(prior)

	assert.False(t, o.Tombstoned("c1"))
	assert.Equal(t, []string{"c1", "c2"}, viewIDs(o.CurrentView()), "re-inserted at last known position")
}

func TestRemoveLocal_NoTombstone(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.ApplyLocalAdd(col("tmp1", 0, "New Col"))

	removed := o.RemoveLocal("tmp1")
	assert.True(t, removed)
	assert.False(t, o.Tombstoned("tmp1"))
	assert.Equal(t, 0, o.Len())
}

func TestCurrentView_SortedWithStableTies(t *testing.T) {
	o := New[grid.Column](testLogger())
	// Equal positions during drag reordering: insertion order decides.
	o.Seed([]grid.Column{
		col("b", 1, "B"),
		col("a", 1, "A"),
		col("z", 0, "Z"),
	})

	assert.Equal(t, []string{"z", "b", "a"}, viewIDs(o.CurrentView()))
}

func TestCurrentView_ReturnsCopies(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name")})

	view := o.CurrentView()
	view[0].Property.Name = "mutated"

	got, _ := o.Get("c1")
	assert.Equal(t, "Name", got.Property.Name)
}

func TestOverlay_RowEntities(t *testing.T) {
	o := New[grid.Row](testLogger())
	o.Seed([]grid.Row{
		{ID: "r1", Position: 0, Fields: map[grid.ColumnID]grid.CellValue{"c1": grid.CellText("a")}},
	})

	ok := o.ApplyLocalUpdate("r1", func(r grid.Row) grid.Row {
		if r.Fields == nil {
			r.Fields = make(map[grid.ColumnID]grid.CellValue)
		}
		r.Fields["c2"] = grid.CellNumber(7)
		return r
	})
	require.True(t, ok)

	got, ok := o.Get("r1")
	require.True(t, ok)
	assert.Equal(t, grid.CellNumber(7), got.Fields["c2"])
}

func TestOverlay_ConcurrentMutations(t *testing.T) {
	o := New[grid.Column](testLogger())
	o.Seed([]grid.Column{col("c1", 0, "Name")})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			o.ApplySnapshot([]grid.Column{col("c1", 0, "Name"), col("c2", 1, "Status")})
		}()
		go func() {
			defer wg.Done()
			_ = o.CurrentView()
			o.ApplyLocalUpdate("c1", func(c grid.Column) grid.Column { return c })
		}()
	}
	wg.Wait()

	assert.Contains(t, viewIDs(o.CurrentView()), "c1")
}

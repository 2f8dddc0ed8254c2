package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atoms-tech/gridsync/internal/grid"
	"github.com/atoms-tech/gridsync/internal/overlay"
)

// fakePersister returns scripted results. A nil error map entry means
// success; server ids are assigned from a counter.
type fakePersister struct {
	failures map[Op]error
	nextID   int
	calls    []Op
}

func newFakePersister() *fakePersister {
	return &fakePersister{failures: make(map[Op]error)}
}

func (f *fakePersister) fail(op Op, err error) { f.failures[op] = err }

func (f *fakePersister) serverID(prefix string) string {
	f.nextID++
	return prefix + string(rune('0'+f.nextID))
}

func (f *fakePersister) CreateColumn(_ context.Context, _ grid.TableID, def grid.PropertyDef, position int) (grid.Column, error) {
	f.calls = append(f.calls, OpAddColumn)
	if err := f.failures[OpAddColumn]; err != nil {
		return grid.Column{}, err
	}
	return grid.Column{
		ID:       grid.ColumnID(f.serverID("col-")),
		Position: position,
		Property: grid.PropertyRef{Name: def.Name, Kind: def.Kind, Options: def.Options},
		Width:    def.Width,
	}, nil
}

func (f *fakePersister) RenameColumn(_ context.Context, _ grid.TableID, _ grid.ColumnID, _ string) error {
	f.calls = append(f.calls, OpRenameColumn)
	return f.failures[OpRenameColumn]
}

func (f *fakePersister) DeleteColumn(_ context.Context, _ grid.TableID, _ grid.ColumnID) error {
	f.calls = append(f.calls, OpDeleteColumn)
	return f.failures[OpDeleteColumn]
}

func (f *fakePersister) CreateRow(_ context.Context, _ grid.TableID, position int) (grid.Row, error) {
	f.calls = append(f.calls, OpAddRow)
	if err := f.failures[OpAddRow]; err != nil {
		return grid.Row{}, err
	}
	return grid.Row{ID: grid.RowID(f.serverID("row-")), Position: position}, nil
}

func (f *fakePersister) DeleteRow(_ context.Context, _ grid.TableID, _ grid.RowID) error {
	f.calls = append(f.calls, OpDeleteRow)
	return f.failures[OpDeleteRow]
}

func (f *fakePersister) UpdateCell(_ context.Context, _ grid.TableID, _ grid.RowID, _ grid.ColumnID, _ grid.CellValue) error {
	f.calls = append(f.calls, OpEditCell)
	return f.failures[OpEditCell]
}

type fixture struct {
	columns *overlay.Overlay[grid.Column]
	rows    *overlay.Overlay[grid.Row]
	persist *fakePersister
	disp    *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		columns: overlay.New[grid.Column](logger),
		rows:    overlay.New[grid.Row](logger),
		persist: newFakePersister(),
	}
	f.disp = New("tbl-1", f.columns, f.rows, f.persist, nil, logger)
	return f
}

func seedColumn(f *fixture, id string, pos int, name string) {
	f.columns.Seed([]grid.Column{{
		ID:       grid.ColumnID(id),
		Position: pos,
		Property: grid.PropertyRef{Name: name, Kind: grid.KindText},
	}})
}

func TestAddColumn_Success(t *testing.T) {
	f := newFixture(t)
	seedColumn(f, "c1", 0, "Name")

	created, err := f.disp.AddColumn(context.Background(), grid.PropertyDef{Name: "Status", Kind: grid.KindText})
	require.NoError(t, err)

	assert.Equal(t, grid.ColumnID("col-1"), created.ID)
	assert.False(t, IsPlaceholder(string(created.ID)))
	assert.Equal(t, 1, created.Position)

	view := f.columns.CurrentView()
	require.Len(t, view, 2)
	assert.Equal(t, grid.ColumnID("col-1"), view[1].ID, "placeholder replaced, no duplicate")
}

func TestAddColumn_FailureRollsBackPlaceholder(t *testing.T) {
	f := newFixture(t)
	seedColumn(f, "c1", 0, "Name")
	f.persist.fail(OpAddColumn, errors.New("network down"))

	_, err := f.disp.AddColumn(context.Background(), grid.PropertyDef{Name: "Status", Kind: grid.KindText})
	require.Error(t, err)
	assert.True(t, IsPersistError(err))

	view := f.columns.CurrentView()
	require.Len(t, view, 1, "placeholder removed entirely")
	assert.Equal(t, grid.ColumnID("c1"), view[0].ID)
	assert.Empty(t, f.columns.TombstoneIDs(), "rollback must not tombstone")
}

func TestRenameColumn_Success(t *testing.T) {
	f := newFixture(t)
	seedColumn(f, "c1", 0, "Name")

	require.NoError(t, f.disp.RenameColumn(context.Background(), "c1", "Title"))

	got, _ := f.columns.Get("c1")
	assert.Equal(t, "Title", got.Property.Name)
}

func TestRenameColumn_FailureRevertsName(t *testing.T) {
	f := newFixture(t)
	seedColumn(f, "c1", 0, "Name")
	f.persist.fail(OpRenameColumn, errors.New("server 500"))

	err := f.disp.RenameColumn(context.Background(), "c1", "Title")
	require.Error(t, err)

	got, _ := f.columns.Get("c1")
	assert.Equal(t, "Name", got.Property.Name, "reverted to prior name")
}

func TestRenameColumn_Unknown(t *testing.T) {
	f := newFixture(t)

	err := f.disp.RenameColumn(context.Background(), "ghost", "Title")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.persist.calls, "no persistence call for unknown entity")
}

func TestDeleteColumn_Success(t *testing.T) {
	f := newFixture(t)
	seedColumn(f, "c1", 0, "Name")

	require.NoError(t, f.disp.DeleteColumn(context.Background(), "c1"))

	assert.Empty(t, f.columns.CurrentView())
	assert.True(t, f.columns.Tombstoned("c1"), "tombstoned until a snapshot confirms absence")
}

func TestDeleteColumn_FailureRestores(t *testing.T) {
	f := newFixture(t)
	seedColumn(f, "c1", 0, "Name")
	f.persist.fail(OpDeleteColumn, errors.New("timeout"))

	err := f.disp.DeleteColumn(context.Background(), "c1")
	require.Error(t, err)

	view := f.columns.CurrentView()
	require.Len(t, view, 1)
	assert.Equal(t, grid.ColumnID("c1"), view[0].ID)
	assert.Equal(t, 0, view[0].Position, "re-inserted at last known position")
	assert.False(t, f.columns.Tombstoned("c1"), "un-tombstoned on rollback")
}

func TestAddRow_Success(t *testing.T) {
	f := newFixture(t)

	created, err := f.disp.AddRow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, grid.RowID("row-1"), created.ID)
	assert.Len(t, f.rows.CurrentView(), 1)
}

func TestAddRow_FailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.persist.fail(OpAddRow, errors.New("conflict"))

	_, err := f.disp.AddRow(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.rows.CurrentView())
}

func TestDeleteRow_FailureRestores(t *testing.T) {
	f := newFixture(t)
	f.rows.Seed([]grid.Row{{ID: "r1", Position: 0}})
	f.persist.fail(OpDeleteRow, errors.New("timeout"))

	err := f.disp.DeleteRow(context.Background(), "r1")
	require.Error(t, err)
	assert.Len(t, f.rows.CurrentView(), 1)
	assert.False(t, f.rows.Tombstoned("r1"))
}

func TestEditCell_Success(t *testing.T) {
	f := newFixture(t)
	f.rows.Seed([]grid.Row{{ID: "r1", Position: 0}})

	err := f.disp.EditCell(context.Background(), "r1", "c1", grid.CellText("high"))
	require.NoError(t, err)

	got, _ := f.rows.Get("r1")
	assert.Equal(t, grid.CellText("high"), got.Fields["c1"])
}

func TestEditCell_FailureRevertsToAbsence(t *testing.T) {
	f := newFixture(t)
	f.rows.Seed([]grid.Row{{ID: "r1", Position: 0}})
	f.persist.fail(OpEditCell, errors.New("constraint"))

	err := f.disp.EditCell(context.Background(), "r1", "c1", grid.CellText("high"))
	require.Error(t, err)

	got, _ := f.rows.Get("r1")
	assert.NotContains(t, got.Fields, grid.ColumnID("c1"), "cell that had no value reverts to absence")
}

func TestEditCell_FailureRevertsToPriorValue(t *testing.T) {
	f := newFixture(t)
	f.rows.Seed([]grid.Row{{
		ID:     "r1",
		Fields: map[grid.ColumnID]grid.CellValue{"c1": grid.CellText("low")},
	}})
	f.persist.fail(OpEditCell, errors.New("constraint"))

	err := f.disp.EditCell(context.Background(), "r1", "c1", grid.CellText("high"))
	require.Error(t, err)

	got, _ := f.rows.Get("r1")
	assert.Equal(t, grid.CellText("low"), got.Fields["c1"])
}

func TestEditCell_ClearCell(t *testing.T) {
	f := newFixture(t)
	f.rows.Seed([]grid.Row{{
		ID:     "r1",
		Fields: map[grid.ColumnID]grid.CellValue{"c1": grid.CellText("low")},
	}})

	err := f.disp.EditCell(context.Background(), "r1", "c1", nil)
	require.NoError(t, err)

	got, _ := f.rows.Get("r1")
	assert.NotContains(t, got.Fields, grid.ColumnID("c1"))
}

func TestPlaceholderID(t *testing.T) {
	gen := UUIDv7Generator{}
	id := PlaceholderID(gen)
	assert.True(t, IsPlaceholder(id))
	assert.False(t, IsPlaceholder("col-1"))
	assert.NotEqual(t, id, PlaceholderID(gen))
}

package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/atoms-tech/gridsync/internal/dispatch"
	"github.com/atoms-tech/gridsync/internal/grid"
	"github.com/atoms-tech/gridsync/internal/testutil"
)

// errScripted is the injected failure for steps marked fail: true.
var errScripted = errors.New("scripted persistence failure")

// scriptedPersister is an in-memory Persister with deterministic server
// ids and per-call failure injection. It keeps enough state that a
// harness snapshot step can echo what "the server" now holds.
type scriptedPersister struct {
	ids      *testutil.SequenceGenerator
	failNext bool

	columns map[grid.ColumnID]grid.Column
	rows    map[grid.RowID]grid.Row
}

func newScriptedPersister() *scriptedPersister {
	return &scriptedPersister{
		ids:     testutil.NewSequenceGenerator("srv"),
		columns: make(map[grid.ColumnID]grid.Column),
		rows:    make(map[grid.RowID]grid.Row),
	}
}

// seedColumns installs server-side state without going through a
// persistence call. Seeded entities behave as if the server already
// held them when the session opened.
func (p *scriptedPersister) seedColumns(columns []grid.Column) {
	for _, col := range columns {
		p.columns[col.ID] = col
	}
}

func (p *scriptedPersister) seedRows(rows []grid.Row) {
	for _, row := range rows {
		p.rows[row.ID] = row
	}
}

// armFailure makes the next persistence call fail.
func (p *scriptedPersister) armFailure() {
	p.failNext = true
}

func (p *scriptedPersister) check() error {
	if p.failNext {
		p.failNext = false
		return errScripted
	}
	return nil
}

func (p *scriptedPersister) CreateColumn(_ context.Context, _ grid.TableID, def grid.PropertyDef, position int) (grid.Column, error) {
	if err := p.check(); err != nil {
		return grid.Column{}, err
	}
	id := p.ids.Generate()
	col := grid.Column{
		ID:       grid.ColumnID(id),
		Position: position,
		Width:    def.Width,
		Property: def.Ref(id),
	}
	p.columns[col.ID] = col
	return col, nil
}

func (p *scriptedPersister) RenameColumn(_ context.Context, _ grid.TableID, id grid.ColumnID, name string) error {
	if err := p.check(); err != nil {
		return err
	}
	col, ok := p.columns[id]
	if !ok {
		return fmt.Errorf("column %s: %w", id, dispatch.ErrNotFound)
	}
	col.Property.Name = grid.NormalizeName(name)
	p.columns[id] = col
	return nil
}

func (p *scriptedPersister) DeleteColumn(_ context.Context, _ grid.TableID, id grid.ColumnID) error {
	if err := p.check(); err != nil {
		return err
	}
	delete(p.columns, id)
	return nil
}

func (p *scriptedPersister) CreateRow(_ context.Context, _ grid.TableID, position int) (grid.Row, error) {
	if err := p.check(); err != nil {
		return grid.Row{}, err
	}
	id := grid.RowID(p.ids.Generate())
	row := grid.Row{ID: id, Position: position}
	p.rows[id] = row
	return row, nil
}

func (p *scriptedPersister) DeleteRow(_ context.Context, _ grid.TableID, id grid.RowID) error {
	if err := p.check(); err != nil {
		return err
	}
	delete(p.rows, id)
	return nil
}

func (p *scriptedPersister) UpdateCell(_ context.Context, _ grid.TableID, rowID grid.RowID, columnID grid.ColumnID, value grid.CellValue) error {
	if err := p.check(); err != nil {
		return err
	}
	row, ok := p.rows[rowID]
	if !ok {
		// Cells against rows the server never saw are silently kept out
		// of server state; the overlay still holds them locally.
		return nil
	}
	if value == nil {
		delete(row.Fields, columnID)
	} else {
		if row.Fields == nil {
			row.Fields = make(map[grid.ColumnID]grid.CellValue)
		}
		row.Fields[columnID] = value
	}
	p.rows[rowID] = row
	return nil
}

var _ dispatch.Persister = (*scriptedPersister)(nil)

package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atoms-tech/gridsync/internal/grid"
	"github.com/atoms-tech/gridsync/internal/overlay"
)

// Dispatcher serializes local user actions for one table into overlay
// updates plus outbound persistence calls.
//
// Thread-safety: the overlays serialize their own state; the dispatcher
// itself holds no mutable state and is safe from any goroutine. Local
// mutations are applied in the order issued by each caller.
type Dispatcher struct {
	table   grid.TableID
	columns *overlay.Overlay[grid.Column]
	rows    *overlay.Overlay[grid.Row]
	persist Persister
	ids     IDGenerator
	logger  *slog.Logger
}

// New creates a dispatcher bound to one table's overlays. A nil ids
// generator defaults to UUIDv7Generator; a nil logger to slog.Default().
func New(
	table grid.TableID,
	columns *overlay.Overlay[grid.Column],
	rows *overlay.Overlay[grid.Row],
	persist Persister,
	ids IDGenerator,
	logger *slog.Logger,
) *Dispatcher {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		table:   table,
		columns: columns,
		rows:    rows,
		persist: persist,
		ids:     ids,
		logger:  logger,
	}
}

// AddColumn appends a column optimistically under a placeholder id,
// persists it, and swaps in the server-assigned identity on success.
// On failure the placeholder is removed entirely and the error returned.
func (d *Dispatcher) AddColumn(ctx context.Context, def grid.PropertyDef) (grid.Column, error) {
	pid := PlaceholderID(d.ids)
	pending := grid.Column{
		ID:       grid.ColumnID(pid),
		Property: grid.PropertyRef{Name: def.Name, Kind: def.Kind, Options: def.Options},
		Width:    def.Width,
	}

	stored, ok := d.columns.ApplyLocalAdd(pending)
	if !ok {
		return grid.Column{}, fmt.Errorf("add column: placeholder %s rejected", pid)
	}

	real, err := d.persist.CreateColumn(ctx, d.table, def, stored.Position)
	if err != nil {
		d.columns.RemoveLocal(pid)
		d.logger.Warn("column create failed, placeholder rolled back",
			"table", d.table,
			"placeholder_id", pid,
			"error", err,
		)
		return grid.Column{}, &PersistError{Op: OpAddColumn, Table: d.table, EntityID: pid, Err: err}
	}

	d.columns.ReplacePlaceholder(pid, real)
	d.logger.Debug("column created",
		"table", d.table,
		"id", real.ID,
		"position", real.Position,
	)
	return real, nil
}

// RenameColumn applies the rename optimistically and reverts to the
// prior name if persistence fails.
func (d *Dispatcher) RenameColumn(ctx context.Context, id grid.ColumnID, name string) error {
	prior, ok := d.columns.Get(string(id))
	if !ok {
		return fmt.Errorf("rename column %s: %w", id, ErrNotFound)
	}

	applied := d.columns.ApplyLocalUpdate(string(id), func(c grid.Column) grid.Column {
		c.Property.Name = name
		return c
	})
	if !applied {
		return fmt.Errorf("rename column %s: %w", id, ErrNotFound)
	}

	if err := d.persist.RenameColumn(ctx, d.table, id, name); err != nil {
		d.columns.ApplyLocalUpdate(string(id), func(c grid.Column) grid.Column {
			c.Property.Name = prior.Property.Name
			return c
		})
		return &PersistError{Op: OpRenameColumn, Table: d.table, EntityID: string(id), Err: err}
	}
	return nil
}

// DeleteColumn tombstones and removes the column immediately. If
// persistence fails the column is un-tombstoned and re-inserted at its
// last known position.
func (d *Dispatcher) DeleteColumn(ctx context.Context, id grid.ColumnID) error {
	prior, ok := d.columns.Get(string(id))
	if !ok {
		return fmt.Errorf("delete column %s: %w", id, ErrNotFound)
	}

	d.columns.ApplyLocalDelete(string(id))

	if err := d.persist.DeleteColumn(ctx, d.table, id); err != nil {
		d.columns.Restore(prior)
		return &PersistError{Op: OpDeleteColumn, Table: d.table, EntityID: string(id), Err: err}
	}
	return nil
}

// AddRow appends a row optimistically under a placeholder id, persists
// it, and swaps in the server-assigned identity on success. On failure
// the placeholder is removed and the error returned.
func (d *Dispatcher) AddRow(ctx context.Context) (grid.Row, error) {
	pid := PlaceholderID(d.ids)

	stored, ok := d.rows.ApplyLocalAdd(grid.Row{ID: grid.RowID(pid)})
	if !ok {
		return grid.Row{}, fmt.Errorf("add row: placeholder %s rejected", pid)
	}

	real, err := d.persist.CreateRow(ctx, d.table, stored.Position)
	if err != nil {
		d.rows.RemoveLocal(pid)
		return grid.Row{}, &PersistError{Op: OpAddRow, Table: d.table, EntityID: pid, Err: err}
	}

	d.rows.ReplacePlaceholder(pid, real)
	return real, nil
}

// DeleteRow tombstones and removes the row immediately, restoring it if
// persistence fails.
func (d *Dispatcher) DeleteRow(ctx context.Context, id grid.RowID) error {
	prior, ok := d.rows.Get(string(id))
	if !ok {
		return fmt.Errorf("delete row %s: %w", id, ErrNotFound)
	}

	d.rows.ApplyLocalDelete(string(id))

	if err := d.persist.DeleteRow(ctx, d.table, id); err != nil {
		d.rows.Restore(prior)
		return &PersistError{Op: OpDeleteRow, Table: d.table, EntityID: string(id), Err: err}
	}
	return nil
}

// EditCell writes a cell value optimistically and reverts to the prior
// value (or prior absence) if persistence fails. A nil value clears the
// cell.
func (d *Dispatcher) EditCell(ctx context.Context, rowID grid.RowID, columnID grid.ColumnID, value grid.CellValue) error {
	prior, ok := d.rows.Get(string(rowID))
	if !ok {
		return fmt.Errorf("edit cell %s/%s: %w", rowID, columnID, ErrNotFound)
	}
	priorValue, hadValue := prior.Fields[columnID]

	applied := d.rows.ApplyLocalUpdate(string(rowID), func(r grid.Row) grid.Row {
		return setCell(r, columnID, value)
	})
	if !applied {
		return fmt.Errorf("edit cell %s/%s: %w", rowID, columnID, ErrNotFound)
	}

	if err := d.persist.UpdateCell(ctx, d.table, rowID, columnID, value); err != nil {
		d.rows.ApplyLocalUpdate(string(rowID), func(r grid.Row) grid.Row {
			if !hadValue {
				return setCell(r, columnID, nil)
			}
			return setCell(r, columnID, priorValue)
		})
		return &PersistError{Op: OpEditCell, Table: d.table, EntityID: string(rowID), Err: err}
	}
	return nil
}

// setCell writes or clears one field on a row copy.
func setCell(r grid.Row, columnID grid.ColumnID, value grid.CellValue) grid.Row {
	if value == nil {
		delete(r.Fields, columnID)
		return r
	}
	if r.Fields == nil {
		r.Fields = make(map[grid.ColumnID]grid.CellValue, 1)
	}
	r.Fields[columnID] = value
	return r
}

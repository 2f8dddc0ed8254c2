package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// ErrNotFound indicates the targeted row or column does not exist.
var ErrNotFound = errors.New("not found")

// EnsureTable registers a table id, keeping the existing name when the
// table is already known. Idempotent via ON CONFLICT.
func (s *Store) EnsureTable(ctx context.Context, table grid.TableID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tables (id, name)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, string(table), name)
	if err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	return nil
}

// CreateColumn persists a new column with a server-assigned id and
// returns it. The requesting client computed position from its own view;
// the server accepts it as-is (positions may transiently collide, the
// view layer tie-breaks deterministically).
func (s *Store) CreateColumn(ctx context.Context, table grid.TableID, def grid.PropertyDef, position int) (grid.Column, error) {
	if !grid.ValidKinds[def.Kind] {
		return grid.Column{}, fmt.Errorf("create column: unknown kind %q", def.Kind)
	}

	if err := s.EnsureTable(ctx, table, ""); err != nil {
		return grid.Column{}, fmt.Errorf("create column: %w", err)
	}

	options, err := json.Marshal(optionsOrEmpty(def.Options))
	if err != nil {
		return grid.Column{}, fmt.Errorf("create column: marshal options: %w", err)
	}

	id := s.ids.Generate()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO columns (id, table_id, name, kind, options, position, width)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, string(table), grid.NormalizeName(def.Name), string(def.Kind), string(options), position, def.Width)
	if err != nil {
		return grid.Column{}, fmt.Errorf("create column: %w", err)
	}

	return grid.Column{
		ID:       grid.ColumnID(id),
		Position: position,
		Property: def.Ref(id),
		Width:    def.Width,
	}, nil
}

// RenameColumn updates a column's display name.
func (s *Store) RenameColumn(ctx context.Context, table grid.TableID, id grid.ColumnID, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE columns SET name = ?
		WHERE id = ? AND table_id = ?
	`, grid.NormalizeName(name), string(id), string(table))
	if err != nil {
		return fmt.Errorf("rename column %s: %w", id, err)
	}
	return requireAffected(res, "rename column", string(id))
}

// DeleteColumn removes a column. Cells cascade via foreign keys.
func (s *Store) DeleteColumn(ctx context.Context, table grid.TableID, id grid.ColumnID) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM columns
		WHERE id = ? AND table_id = ?
	`, string(id), string(table))
	if err != nil {
		return fmt.Errorf("delete column %s: %w", id, err)
	}
	return requireAffected(res, "delete column", string(id))
}

// CreateRow persists a new row with a server-assigned id and returns it.
func (s *Store) CreateRow(ctx context.Context, table grid.TableID, position int) (grid.Row, error) {
	if err := s.EnsureTable(ctx, table, ""); err != nil {
		return grid.Row{}, fmt.Errorf("create row: %w", err)
	}

	id := s.ids.Generate()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rows (id, table_id, position)
		VALUES (?, ?, ?)
	`, id, string(table), position)
	if err != nil {
		return grid.Row{}, fmt.Errorf("create row: %w", err)
	}

	return grid.Row{ID: grid.RowID(id), Position: position}, nil
}

// DeleteRow removes a row. Cells cascade via foreign keys.
func (s *Store) DeleteRow(ctx context.Context, table grid.TableID, id grid.RowID) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rows
		WHERE id = ? AND table_id = ?
	`, string(id), string(table))
	if err != nil {
		return fmt.Errorf("delete row %s: %w", id, err)
	}
	return requireAffected(res, "delete row", string(id))
}

// UpdateCell writes one cell value as a tagged JSON envelope. A nil
// value clears the cell. Upserts via ON CONFLICT so repeated writes of
// the same cell are idempotent.
func (s *Store) UpdateCell(ctx context.Context, table grid.TableID, row grid.RowID, column grid.ColumnID, value grid.CellValue) error {
	if value == nil {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM cells WHERE row_id = ? AND column_id = ?
		`, string(row), string(column))
		if err != nil {
			return fmt.Errorf("clear cell %s/%s: %w", row, column, err)
		}
		return nil
	}

	encoded, err := grid.EncodeCellValue(value)
	if err != nil {
		return fmt.Errorf("update cell %s/%s: %w", row, column, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cells (row_id, column_id, value)
		VALUES (?, ?, ?)
		ON CONFLICT(row_id, column_id) DO UPDATE SET value = excluded.value
	`, string(row), string(column), string(encoded))
	if err != nil {
		return fmt.Errorf("update cell %s/%s: %w", row, column, err)
	}
	return nil
}

// MoveColumn updates a column's position (drag reordering).
func (s *Store) MoveColumn(ctx context.Context, table grid.TableID, id grid.ColumnID, position int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE columns SET position = ?
		WHERE id = ? AND table_id = ?
	`, position, string(id), string(table))
	if err != nil {
		return fmt.Errorf("move column %s: %w", id, err)
	}
	return requireAffected(res, "move column", string(id))
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return nil
}

func optionsOrEmpty(options []string) []string {
	if options == nil {
		return []string{}
	}
	return options
}

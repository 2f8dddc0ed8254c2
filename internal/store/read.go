package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// SnapshotColumns returns the complete, authoritative column list for a
// table, ordered by position with insertion order (rowid) breaking ties.
// Malformed option blobs degrade to no options rather than failing the
// snapshot.
func (s *Store) SnapshotColumns(ctx context.Context, table grid.TableID) ([]grid.Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, options, position, width
		FROM columns
		WHERE table_id = ?
		ORDER BY position, rowid
	`, string(table))
	if err != nil {
		return nil, fmt.Errorf("snapshot columns for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []grid.Column
	for rows.Next() {
		var (
			id, name, kind, options string
			position, width         int
		)
		if err := rows.Scan(&id, &name, &kind, &options, &position, &width); err != nil {
			return nil, fmt.Errorf("snapshot columns for %s: scan: %w", table, err)
		}

		var opts []string
		if err := json.Unmarshal([]byte(options), &opts); err != nil {
			slog.Warn("dropping malformed column options",
				"table", table,
				"column", id,
				"error", err,
			)
			opts = nil
		}
		if len(opts) == 0 {
			opts = nil
		}

		columns = append(columns, grid.Column{
			ID:       grid.ColumnID(id),
			Position: position,
			Property: grid.PropertyRef{
				ID:      id,
				Name:    name,
				Kind:    grid.PropertyKind(kind),
				Options: opts,
			},
			Width: width,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot columns for %s: %w", table, err)
	}
	return columns, nil
}

// SnapshotRows returns the complete, authoritative row list for a table,
// cells included, ordered by position with insertion order breaking
// ties. Cells that fail to decode are dropped individually with a
// diagnostic; the row and snapshot survive.
func (s *Store) SnapshotRows(ctx context.Context, table grid.TableID) ([]grid.Row, error) {
	rowRows, err := s.db.QueryContext(ctx, `
		SELECT id, position
		FROM rows
		WHERE table_id = ?
		ORDER BY position, rowid
	`, string(table))
	if err != nil {
		return nil, fmt.Errorf("snapshot rows for %s: %w", table, err)
	}
	defer rowRows.Close()

	var result []grid.Row
	index := make(map[grid.RowID]int)
	for rowRows.Next() {
		var (
			id       string
			position int
		)
		if err := rowRows.Scan(&id, &position); err != nil {
			return nil, fmt.Errorf("snapshot rows for %s: scan: %w", table, err)
		}
		index[grid.RowID(id)] = len(result)
		result = append(result, grid.Row{ID: grid.RowID(id), Position: position})
	}
	if err := rowRows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot rows for %s: %w", table, err)
	}

	cellRows, err := s.db.QueryContext(ctx, `
		SELECT c.row_id, c.column_id, c.value
		FROM cells c
		JOIN rows r ON r.id = c.row_id
		WHERE r.table_id = ?
	`, string(table))
	if err != nil {
		return nil, fmt.Errorf("snapshot cells for %s: %w", table, err)
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var rowID, columnID, value string
		if err := cellRows.Scan(&rowID, &columnID, &value); err != nil {
			return nil, fmt.Errorf("snapshot cells for %s: scan: %w", table, err)
		}

		i, ok := index[grid.RowID(rowID)]
		if !ok {
			continue
		}
		decoded, err := grid.DecodeCellValue([]byte(value))
		if err != nil {
			slog.Warn("dropping malformed cell",
				"table", table,
				"row", rowID,
				"column", columnID,
				"error", err,
			)
			continue
		}
		if result[i].Fields == nil {
			result[i].Fields = make(map[grid.ColumnID]grid.CellValue)
		}
		result[i].Fields[grid.ColumnID(columnID)] = decoded
	}
	if err := cellRows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot cells for %s: %w", table, err)
	}
	return result, nil
}

// ListTables returns the known table ids in insertion order.
func (s *Store) ListTables(ctx context.Context) ([]grid.TableID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tables ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []grid.TableID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list tables: scan: %w", err)
		}
		tables = append(tables, grid.TableID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

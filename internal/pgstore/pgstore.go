// Package pgstore persists grid state in PostgreSQL. It offers the same
// surface as the sqlite store so the dispatcher and server can run against
// either backend.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atoms-tech/gridsync/internal/dispatch"
	"github.com/atoms-tech/gridsync/internal/grid"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound indicates the targeted row or column does not exist.
var ErrNotFound = errors.New("not found")

// Store is a PostgreSQL-backed grid persister.
type Store struct {
	pool *pgxpool.Pool
	ids  dispatch.IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the server-side id generator. Tests use this
// to get deterministic ids.
func WithIDGenerator(gen dispatch.IDGenerator) Option {
	return func(s *Store) {
		s.ids = gen
	}
}

// Connect opens a pool against url and applies the schema.
func Connect(ctx context.Context, url string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: apply schema: %w", err)
	}

	s := &Store{pool: pool, ids: dispatch.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureTable registers a table id. Idempotent via ON CONFLICT.
func (s *Store) EnsureTable(ctx context.Context, table grid.TableID, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tables (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, string(table), name)
	if err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	return nil
}

// CreateColumn persists a new column with a server-assigned id and returns it.
func (s *Store) CreateColumn(ctx context.Context, table grid.TableID, def grid.PropertyDef, position int) (grid.Column, error) {
	if !grid.ValidKinds[def.Kind] {
		return grid.Column{}, fmt.Errorf("create column: unknown kind %q", def.Kind)
	}
	if err := s.EnsureTable(ctx, table, ""); err != nil {
		return grid.Column{}, fmt.Errorf("create column: %w", err)
	}

	options, err := json.Marshal(optionsOrEmpty(def.Options))
	if err != nil {
		return grid.Column{}, fmt.Errorf("create column: encode options: %w", err)
	}

	id := s.ids.Generate()
	name := grid.NormalizeName(def.Name)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO columns (id, table_id, name, kind, options, position, width)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, string(table), name, string(def.Kind), options, position, def.Width)
	if err != nil {
		return grid.Column{}, fmt.Errorf("create column %s: %w", id, err)
	}

	canonical := def
	canonical.Name = name
	return grid.Column{
		ID:       grid.ColumnID(id),
		Position: position,
		Width:    def.Width,
		Property: canonical.Ref(id),
	}, nil
}

// RenameColumn updates a column's display name.
func (s *Store) RenameColumn(ctx context.Context, table grid.TableID, id grid.ColumnID, name string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE columns SET name = $1 WHERE id = $2 AND table_id = $3
	`, grid.NormalizeName(name), string(id), string(table))
	if err != nil {
		return fmt.Errorf("rename column %s: %w", id, err)
	}
	return requireAffected(tag.RowsAffected())
}

// DeleteColumn removes a column and its cells.
func (s *Store) DeleteColumn(ctx context.Context, table grid.TableID, id grid.ColumnID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM columns WHERE id = $1 AND table_id = $2
	`, string(id), string(table))
	if err != nil {
		return fmt.Errorf("delete column %s: %w", id, err)
	}
	return requireAffected(tag.RowsAffected())
}

// MoveColumn updates a column's ordinal position.
func (s *Store) MoveColumn(ctx context.Context, table grid.TableID, id grid.ColumnID, position int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE columns SET position = $1 WHERE id = $2 AND table_id = $3
	`, position, string(id), string(table))
	if err != nil {
		return fmt.Errorf("move column %s: %w", id, err)
	}
	return requireAffected(tag.RowsAffected())
}

// CreateRow persists a new row with a server-assigned id and returns it.
func (s *Store) CreateRow(ctx context.Context, table grid.TableID, position int) (grid.Row, error) {
	if err := s.EnsureTable(ctx, table, ""); err != nil {
		return grid.Row{}, fmt.Errorf("create row: %w", err)
	}

	id := s.ids.Generate()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rows (id, table_id, position)
		VALUES ($1, $2, $3)
	`, id, string(table), position)
	if err != nil {
		return grid.Row{}, fmt.Errorf("create row %s: %w", id, err)
	}
	return grid.Row{ID: grid.RowID(id), Position: position}, nil
}

// DeleteRow removes a row and its cells.
func (s *Store) DeleteRow(ctx context.Context, table grid.TableID, id grid.RowID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM rows WHERE id = $1 AND table_id = $2
	`, string(id), string(table))
	if err != nil {
		return fmt.Errorf("delete row %s: %w", id, err)
	}
	return requireAffected(tag.RowsAffected())
}

// UpdateCell writes a single cell value. A nil value clears the cell.
func (s *Store) UpdateCell(ctx context.Context, table grid.TableID, row grid.RowID, column grid.ColumnID, value grid.CellValue) error {
	if value == nil {
		_, err := s.pool.Exec(ctx, `
			DELETE FROM cells WHERE row_id = $1 AND column_id = $2
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO cells (row_id, column_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (row_id, column_id) DO UPDATE SET value = excluded.value
	`, string(row), string(column), encoded)
	if err != nil {
		return fmt.Errorf("update cell %s/%s: %w", row, column, err)
	}
	return nil
}

// SnapshotColumns returns the authoritative column set ordered by position.
func (s *Store) SnapshotColumns(ctx context.Context, table grid.TableID) ([]grid.Column, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, kind, options, position, width
		FROM columns
		WHERE table_id = $1
		ORDER BY position, created_at
	`, string(table))
	if err != nil {
		return nil, fmt.Errorf("snapshot columns: %w", err)
	}
	defer rows.Close()

	var result []grid.Column
	for rows.Next() {
		var (
			id, name, kind string
			rawOptions     []byte
			position       int
			width          int
		)
		if err := rows.Scan(&id, &name, &kind, &rawOptions, &position, &width); err != nil {
			return nil, fmt.Errorf("snapshot columns: scan: %w", err)
		}
		var options []string
		if err := json.Unmarshal(rawOptions, &options); err != nil {
			slog.Warn("snapshot: dropping malformed column options", "column", id, "error", err)
			options = nil
		}
		result = append(result, grid.Column{
			ID:       grid.ColumnID(id),
			Position: position,
			Width:    width,
			Property: grid.PropertyRef{
				ID:      id,
				Name:    name,
				Kind:    grid.PropertyKind(kind),
				Options: options,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot columns: %w", err)
	}
	return result, nil
}

// SnapshotRows returns the authoritative row set with cell values,
// ordered by position.
func (s *Store) SnapshotRows(ctx context.Context, table grid.TableID) ([]grid.Row, error) {
	rowRows, err := s.pool.Query(ctx, `
		SELECT id, position
		FROM rows
		WHERE table_id = $1
		ORDER BY position, created_at
	`, string(table))
	if err != nil {
		return nil, fmt.Errorf("snapshot rows: %w", err)
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
			return nil, fmt.Errorf("snapshot rows: scan: %w", err)
		}
		index[grid.RowID(id)] = len(result)
		result = append(result, grid.Row{ID: grid.RowID(id), Position: position})
	}
	if err := rowRows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot rows: %w", err)
	}

	cellRows, err := s.pool.Query(ctx, `
		SELECT c.row_id, c.column_id, c.value
		FROM cells c
		JOIN rows r ON r.id = c.row_id
		WHERE r.table_id = $1
	`, string(table))
	if err != nil {
		return nil, fmt.Errorf("snapshot rows: cells: %w", err)
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var (
			rowID, columnID string
			raw             []byte
		)
		if err := cellRows.Scan(&rowID, &columnID, &raw); err != nil {
			return nil, fmt.Errorf("snapshot rows: scan cell: %w", err)
		}
		i, ok := index[grid.RowID(rowID)]
		if !ok {
			continue
		}
		decoded, err := grid.DecodeCellValue(raw)
		if err != nil {
			slog.Warn("snapshot: dropping malformed cell", "row", rowID, "column", columnID, "error", err)
			continue
		}
		if result[i].Fields == nil {
			result[i].Fields = make(map[grid.ColumnID]grid.CellValue)
		}
		result[i].Fields[grid.ColumnID(columnID)] = decoded
	}
	if err := cellRows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot rows: cells: %w", err)
	}
	return result, nil
}

// ListTables returns the known table ids.
func (s *Store) ListTables(ctx context.Context) ([]grid.TableID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM tables ORDER BY created_at`)
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

func requireAffected(n int64) error {
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func optionsOrEmpty(options []string) []string {
	if options == nil {
		return []string{}
	}
	return options
}

var _ dispatch.Persister = (*Store)(nil)

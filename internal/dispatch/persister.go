package dispatch

import (
	"context"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// Persister is the outbound persistence boundary. Implementations carry
// their own timeout and retry policy; the dispatcher treats a timeout
// surfaced as an error exactly like an explicit failure and compensates
// the same way.
//
// Implemented by store.Store (SQLite) and pgstore.Store (Postgres);
// tests use scripted fakes.
type Persister interface {
	// CreateColumn persists a new column and returns it with the
	// server-assigned identity.
	CreateColumn(ctx context.Context, table grid.TableID, def grid.PropertyDef, position int) (grid.Column, error)

	// RenameColumn updates a column's display name.
	RenameColumn(ctx context.Context, table grid.TableID, id grid.ColumnID, name string) error

	// DeleteColumn removes a column and its cells.
	DeleteColumn(ctx context.Context, table grid.TableID, id grid.ColumnID) error

	// CreateRow persists a new row and returns it with the
	// server-assigned identity.
	CreateRow(ctx context.Context, table grid.TableID, position int) (grid.Row, error)

	// DeleteRow removes a row and its cells.
	DeleteRow(ctx context.Context, table grid.TableID, id grid.RowID) error

	// UpdateCell writes a single cell value. A nil value clears the cell.
	UpdateCell(ctx context.Context, table grid.TableID, row grid.RowID, column grid.ColumnID, value grid.CellValue) error
}

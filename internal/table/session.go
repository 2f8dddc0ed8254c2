// Package table binds one table view's reconciliation state into a
// session: a column overlay, a row overlay, and the mutation dispatcher
// that feeds them.
//
// A session is created when a table view mounts and closed when it
// unmounts. It is never shared between two concurrently rendered views
// of the same table; each view owns its own session, reconciled
// independently against the same server data stream.
package table

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/atoms-tech/gridsync/internal/dispatch"
	"github.com/atoms-tech/gridsync/internal/grid"
	"github.com/atoms-tech/gridsync/internal/overlay"
)

// ErrClosed indicates a mutation was attempted on a closed session.
var ErrClosed = errors.New("session closed")

// Session is the per-view reconciliation unit for one table.
type Session struct {
	table   grid.TableID
	columns *overlay.Overlay[grid.Column]
	rows    *overlay.Overlay[grid.Row]
	disp    *dispatch.Dispatcher
	logger  *slog.Logger
	closed  atomic.Bool
}

// Option configures a session.
type Option func(*options)

type options struct {
	logger *slog.Logger
	ids    dispatch.IDGenerator
}

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithIDGenerator sets the placeholder id generator. Defaults to
// UUIDv7; tests inject a deterministic sequence.
func WithIDGenerator(gen dispatch.IDGenerator) Option {
	return func(o *options) { o.ids = gen }
}

// NewSession creates a session for one table backed by the given
// persister.
func NewSession(table grid.TableID, persist dispatch.Persister, opts ...Option) *Session {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	columns := overlay.New[grid.Column](o.logger)
	rows := overlay.New[grid.Row](o.logger)
	return &Session{
		table:   table,
		columns: columns,
		rows:    rows,
		disp:    dispatch.New(table, columns, rows, persist, o.ids, o.logger),
		logger:  o.logger,
	}
}

// Table returns the table this session reconciles.
func (s *Session) Table() grid.TableID { return s.table }

// SeedColumns initializes the column overlay on first load.
func (s *Session) SeedColumns(server []grid.Column) {
	if s.closed.Load() {
		return
	}
	s.columns.Seed(server)
}

// SeedRows initializes the row overlay on first load.
func (s *Session) SeedRows(server []grid.Row) {
	if s.closed.Load() {
		return
	}
	s.rows.Seed(server)
}

// OnColumnSnapshot merges an authoritative column snapshot.
// Implements feed.Applier; the transport calls this for every delivery.
func (s *Session) OnColumnSnapshot(snapshot []grid.Column) {
	if s.closed.Load() {
		s.logger.Debug("dropping snapshot for closed session", "table", s.table)
		return
	}
	s.columns.ApplySnapshot(snapshot)
}

// OnRowSnapshot merges an authoritative row snapshot.
func (s *Session) OnRowSnapshot(snapshot []grid.Row) {
	if s.closed.Load() {
		s.logger.Debug("dropping snapshot for closed session", "table", s.table)
		return
	}
	s.rows.ApplySnapshot(snapshot)
}

// Columns returns the merged column view, ordered for rendering.
func (s *Session) Columns() []grid.Column {
	return s.columns.CurrentView()
}

// Rows returns the merged row view, ordered for rendering.
func (s *Session) Rows() []grid.Row {
	return s.rows.CurrentView()
}

// TombstonedColumns returns column ids awaiting deletion confirmation.
func (s *Session) TombstonedColumns() []string {
	return s.columns.TombstoneIDs()
}

// TombstonedRows returns row ids awaiting deletion confirmation.
func (s *Session) TombstonedRows() []string {
	return s.rows.TombstoneIDs()
}

// AddColumn creates a column optimistically. See dispatch.Dispatcher.
func (s *Session) AddColumn(ctx context.Context, def grid.PropertyDef) (grid.Column, error) {
	if s.closed.Load() {
		return grid.Column{}, ErrClosed
	}
	return s.disp.AddColumn(ctx, def)
}

// RenameColumn renames a column optimistically.
func (s *Session) RenameColumn(ctx context.Context, id grid.ColumnID, name string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.disp.RenameColumn(ctx, id, name)
}

// DeleteColumn deletes a column optimistically.
func (s *Session) DeleteColumn(ctx context.Context, id grid.ColumnID) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.disp.DeleteColumn(ctx, id)
}

// AddRow creates a row optimistically.
func (s *Session) AddRow(ctx context.Context) (grid.Row, error) {
	if s.closed.Load() {
		return grid.Row{}, ErrClosed
	}
	return s.disp.AddRow(ctx)
}

// DeleteRow deletes a row optimistically.
func (s *Session) DeleteRow(ctx context.Context, id grid.RowID) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.disp.DeleteRow(ctx, id)
}

// EditCell writes a cell optimistically.
func (s *Session) EditCell(ctx context.Context, rowID grid.RowID, columnID grid.ColumnID, value grid.CellValue) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.disp.EditCell(ctx, rowID, columnID, value)
}

// Close discards the session. Subsequent mutations return ErrClosed and
// snapshots are dropped. The overlay state is a transient buffer; there
// is nothing to flush.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.logger.Debug("session closed", "table", s.table)
	}
}

package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// Snapshotter produces authoritative entity sets. Both the sqlite and
// postgres stores satisfy it.
type Snapshotter interface {
	SnapshotColumns(ctx context.Context, table grid.TableID) ([]grid.Column, error)
	SnapshotRows(ctx context.Context, table grid.TableID) ([]grid.Row, error)
}

// Applier consumes snapshots. A table session satisfies it; so does the
// websocket hub, which forwards snapshots to remote sessions.
type Applier interface {
	OnColumnSnapshot(columns []grid.Column)
	OnRowSnapshot(rows []grid.Row)
}

// Feed connects one table's store snapshots to one Applier. Refresh
// notices arrive from a Notifier subscription or direct Poke calls; each
// distinct notice triggers a snapshot pull.
type Feed struct {
	table    grid.TableID
	src      Snapshotter
	dst      Applier
	notifier Notifier
	queue    *refreshQueue
	logger   *slog.Logger
}

// New builds a feed for table. notifier may be nil when only Poke is used.
func New(table grid.TableID, src Snapshotter, dst Applier, notifier Notifier, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		table:    table,
		src:      src,
		dst:      dst,
		notifier: notifier,
		queue:    newRefreshQueue(),
		logger:   logger,
	}
}

// Poke schedules a snapshot pull without going through the notifier.
// Local mutations use it to refresh their own session immediately.
func (f *Feed) Poke(kind EntityKind) {
	f.queue.Enqueue(Refresh{Table: f.table, Kind: kind})
}

// Run subscribes to the notifier and processes notices until ctx is
// cancelled. A failed snapshot pull is logged and the notice dropped;
// the next mutation will schedule another pull.
func (f *Feed) Run(ctx context.Context) error {
	defer f.queue.Close()

	var notices <-chan Refresh
	if f.notifier != nil {
		ch, cancel, err := f.notifier.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("feed %s: %w", f.table, err)
		}
		defer cancel()
		notices = ch
	}

	for {
		// Drain everything pending before blocking again.
		for {
			r, ok := f.queue.TryDequeue()
			if !ok {
				break
			}
			if err := f.pull(ctx, r.Kind); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.logger.Warn("snapshot pull failed",
					"table", f.table, "kind", r.Kind, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			if r.Table != f.table {
				continue
			}
			f.queue.Enqueue(r)
		case <-f.queue.Wait():
		}
	}
}

// pull fetches one snapshot and applies it.
func (f *Feed) pull(ctx context.Context, kind EntityKind) error {
	switch kind {
	case KindColumns:
		columns, err := f.src.SnapshotColumns(ctx, f.table)
		if err != nil {
			return err
		}
		f.dst.OnColumnSnapshot(columns)
	case KindRows:
		rows, err := f.src.SnapshotRows(ctx, f.table)
		if err != nil {
			return err
		}
		f.dst.OnRowSnapshot(rows)
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return nil
}

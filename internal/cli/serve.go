package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/atoms-tech/gridsync/internal/feed"
	"github.com/atoms-tech/gridsync/internal/grid"
	"github.com/atoms-tech/gridsync/internal/pgstore"
	"github.com/atoms-tech/gridsync/internal/schema"
	"github.com/atoms-tech/gridsync/internal/server"
	"github.com/atoms-tech/gridsync/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen    string
	DBPath    string
	PGURL     string
	RedisAddr string
	SchemaDir string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve grid tables over HTTP",
		Long: `Serve grid tables over HTTP with websocket snapshot feeds.

By default state lives in a local SQLite file. Pass --pg-url to use
PostgreSQL instead, and --redis-addr to fan refresh notices out across
multiple server processes.

Examples:
  gridsync serve --listen :8080 --db grids.db
  gridsync serve --pg-url postgres://localhost/gridsync --redis-addr localhost:6379
  gridsync serve --db grids.db --schemas ./schemas`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", ":8080", "address to listen on")
	cmd.Flags().StringVar(&opts.DBPath, "db", "gridsync.db", "SQLite database path")
	cmd.Flags().StringVar(&opts.PGURL, "pg-url", "", "PostgreSQL connection URL (overrides --db)")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis-addr", "", "Redis address for cross-process refresh notices")
	cmd.Flags().StringVar(&opts.SchemaDir, "schemas", "", "CUE schema directory; declared tables are created at startup")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd, opts.Verbose)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, closeBackend, err := openBackend(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening store", err)
	}
	defer closeBackend()

	if opts.SchemaDir != "" {
		if err := applySchemas(ctx, be, opts.SchemaDir, logger); err != nil {
			return WrapExitError(ExitCommandError, "applying schemas", err)
		}
	}

	notifier, closeNotifier, err := openNotifier(ctx, opts, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "connecting notifier", err)
	}
	defer closeNotifier()

	srv := server.New(be, notifier, logger)
	srv.Start(ctx)

	httpServer := &http.Server{
		Addr:              opts.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitFailure, "shutdown", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitCommandError, "serving", err)
	}
}

// newLogger builds the server logger. Verbose enables debug records.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func openBackend(ctx context.Context, opts *ServeOptions) (server.Backend, func(), error) {
	if opts.PGURL != "" {
		pg, err := pgstore.Connect(ctx, opts.PGURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	s, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func openNotifier(ctx context.Context, opts *ServeOptions, logger *slog.Logger) (feed.Notifier, func(), error) {
	if opts.RedisAddr == "" {
		local := feed.NewLocalNotifier()
		return local, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return feed.NewRedisNotifier(client, logger), func() { _ = client.Close() }, nil
}

// applySchemas ensures every table declared in the CUE schema directory
// exists with its declared columns. Existing columns are matched by
// property name and left alone; schemas never delete.
func applySchemas(ctx context.Context, be server.Backend, dir string, logger *slog.Logger) error {
	result, loadErrors := schema.LoadDir(dir, schema.LoadModeFailFast)
	if result == nil {
		if len(loadErrors) > 0 {
			return loadErrors[0]
		}
		return fmt.Errorf("schema load failed")
	}
	if len(loadErrors) > 0 {
		return loadErrors[0]
	}

	for _, table := range result.Tables {
		if err := be.EnsureTable(ctx, table.ID, table.Name); err != nil {
			return fmt.Errorf("ensure table %s: %w", table.ID, err)
		}

		existing, err := be.SnapshotColumns(ctx, table.ID)
		if err != nil {
			return fmt.Errorf("snapshot columns for %s: %w", table.ID, err)
		}
		present := make(map[string]bool, len(existing))
		for _, col := range existing {
			present[col.Property.Name] = true
		}

		position := grid.NextPosition(existing)
		for _, def := range table.Properties {
			if present[def.Name] {
				continue
			}
			col, err := be.CreateColumn(ctx, table.ID, def, position)
			if err != nil {
				return fmt.Errorf("create column %s on %s: %w", def.Name, table.ID, err)
			}
			logger.Info("created column from schema",
				"table", table.ID, "column", col.ID, "name", def.Name)
			position++
		}
	}
	return nil
}

// Package server exposes grid state over HTTP. Mutations persist through
// a store backend, then publish refresh notices so every subscribed
// session, local or remote, pulls the new snapshot.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/atoms-tech/gridsync/internal/dispatch"
	"github.com/atoms-tech/gridsync/internal/feed"
	"github.com/atoms-tech/gridsync/internal/grid"
	"github.com/atoms-tech/gridsync/internal/pgstore"
	"github.com/atoms-tech/gridsync/internal/store"
)

// Backend is the persistence surface the server needs. Both the sqlite
// and postgres stores satisfy it.
type Backend interface {
	dispatch.Persister
	feed.Snapshotter
	MoveColumn(ctx context.Context, table grid.TableID, id grid.ColumnID, position int) error
	EnsureTable(ctx context.Context, table grid.TableID, name string) error
	ListTables(ctx context.Context) ([]grid.TableID, error)
}

// Server routes grid requests. One websocket hub per table fans
// snapshots out to subscribers.
type Server struct {
	backend  Backend
	notifier feed.Notifier
	logger   *slog.Logger
	router   *mux.Router

	mu      sync.Mutex
	hubs    map[grid.TableID]*feed.Hub
	runCtx  context.Context
	started bool
}

// New builds a server. notifier may be a LocalNotifier for single-binary
// deployments or a RedisNotifier when several processes share a store.
func New(backend Backend, notifier feed.Notifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		hubs:     make(map[grid.TableID]*feed.Hub),
	}
	s.router = s.routes()
	return s
}

// Start binds hub lifecycles to ctx. Must be called before serving.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCtx = ctx
	s.started = true
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/tables", s.handleListTables).Methods(http.MethodGet)
	api.HandleFunc("/tables/{table}", s.handleCreateTable).Methods(http.MethodPut)

	api.HandleFunc("/tables/{table}/columns", s.handleSnapshotColumns).Methods(http.MethodGet)
	api.HandleFunc("/tables/{table}/columns", s.handleCreateColumn).Methods(http.MethodPost)
	api.HandleFunc("/tables/{table}/columns/{id}", s.handlePatchColumn).Methods(http.MethodPatch)
	api.HandleFunc("/tables/{table}/columns/{id}", s.handleDeleteColumn).Methods(http.MethodDelete)

	api.HandleFunc("/tables/{table}/rows", s.handleSnapshotRows).Methods(http.MethodGet)
	api.HandleFunc("/tables/{table}/rows", s.handleCreateRow).Methods(http.MethodPost)
	api.HandleFunc("/tables/{table}/rows/{id}", s.handleDeleteRow).Methods(http.MethodDelete)

	api.HandleFunc("/tables/{table}/rows/{row}/cells/{column}", s.handlePutCell).Methods(http.MethodPut)

	r.HandleFunc("/ws/{table}", s.handleWebsocket)
	return r
}

// hub returns the websocket hub for table, creating it and its feed on
// first use.
func (s *Server) hub(table grid.TableID) (*feed.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.hubs[table]; ok {
		return h, nil
	}
	if !s.started {
		return nil, errors.New("server not started")
	}

	h := feed.NewHub(table, s.logger)
	f := feed.New(table, s.backend, h, s.notifier, s.logger)
	go h.Run(s.runCtx)
	go func() {
		if err := f.Run(s.runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("feed stopped", "table", table, "error", err)
		}
	}()

	s.hubs[table] = h
	return h, nil
}

// notifyRefresh publishes an invalidation after a successful mutation.
// Delivery failure is logged, not surfaced: the mutation is already
// durable and pollers will catch up.
func (s *Server) notifyRefresh(ctx context.Context, table grid.TableID, kind feed.EntityKind) {
	if s.notifier == nil {
		return
	}
	// Make sure a hub exists so ws subscribers of this table get pushes.
	if _, err := s.hub(table); err != nil {
		s.logger.Warn("hub unavailable", "table", table, "error", err)
	}
	if err := s.notifier.Publish(ctx, feed.Refresh{Table: table, Kind: kind}); err != nil {
		s.logger.Warn("refresh publish failed", "table", table, "kind", kind, "error", err)
	}
}

// notFound reports whether err is a missing-entity error from either
// store backend.
func notFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, pgstore.ErrNotFound)
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atoms-tech/gridsync/internal/feed"
	"github.com/atoms-tech/gridsync/internal/grid"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if notFound(err) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.logger.Error("store operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Reject trailing garbage.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.backend.ListTables(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if tables == nil {
		tables = []grid.TableID{}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	table := grid.TableID(mux.Vars(r)["table"])

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.backend.EnsureTable(r.Context(), table, req.Name); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSnapshotColumns(w http.ResponseWriter, r *http.Request) {
	table := grid.TableID(mux.Vars(r)["table"])
	columns, err := s.backend.SnapshotColumns(r.Context(), table)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if columns == nil {
		columns = []grid.Column{}
	}
	writeJSON(w, http.StatusOK, columns)
}

func (s *Server) handleSnapshotRows(w http.ResponseWriter, r *http.Request) {
	table := grid.TableID(mux.Vars(r)["table"])
	rows, err := s.backend.SnapshotRows(r.Context(), table)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if rows == nil {
		rows = []grid.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	table := grid.TableID(mux.Vars(r)["table"])

	var req struct {
		Name     string   `json:"name"`
		Kind     string   `json:"kind"`
		Options  []string `json:"options"`
		Width    int      `json:"width"`
		Position *int     `json:"position"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if grid.NormalizeName(req.Name) == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	def := grid.PropertyDef{
		Name:    req.Name,
		Kind:    grid.PropertyKind(req.Kind),
		Options: req.Options,
		Width:   req.Width,
	}
	if !grid.ValidKinds[def.Kind] {
		writeError(w, http.StatusBadRequest, errors.New("unknown property kind"))
		return
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		existing, err := s.backend.SnapshotColumns(r.Context(), table)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		position = grid.NextPosition(existing)
	}

	col, err := s.backend.CreateColumn(r.Context(), table, def, position)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.notifyRefresh(r.Context(), table, feed.KindColumns)
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) handlePatchColumn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table := grid.TableID(vars["table"])
	id := grid.ColumnID(vars["id"])

	var req struct {
		Name     *string `json:"name"`
		Position *int    `json:"position"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == nil && req.Position == nil {
		writeError(w, http.StatusBadRequest, errors.New("nothing to change"))
		return
	}

	if req.Name != nil {
		if grid.NormalizeName(*req.Name) == "" {
			writeError(w, http.StatusBadRequest, errors.New("name must not be empty"))
			return
		}
		if err := s.backend.RenameColumn(r.Context(), table, id, *req.Name); err != nil {
			s.writeStoreError(w, err)
			return
		}
	}
	if req.Position != nil {
		if err := s.backend.MoveColumn(r.Context(), table, id, *req.Position); err != nil {
			s.writeStoreError(w, err)
			return
		}
	}
	s.notifyRefresh(r.Context(), table, feed.KindColumns)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table := grid.TableID(vars["table"])
	id := grid.ColumnID(vars["id"])

	if err := s.backend.DeleteColumn(r.Context(), table, id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	// Cell values hang off columns, so row snapshots change too.
	s.notifyRefresh(r.Context(), table, feed.KindColumns)
	s.notifyRefresh(r.Context(), table, feed.KindRows)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	table := grid.TableID(mux.Vars(r)["table"])

	var req struct {
		Position *int `json:"position"`
	}
	if err := decodeBody(r, &req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		existing, err := s.backend.SnapshotRows(r.Context(), table)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		position = grid.NextPosition(existing)
	}

	row, err := s.backend.CreateRow(r.Context(), table, position)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.notifyRefresh(r.Context(), table, feed.KindRows)
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table := grid.TableID(vars["table"])
	id := grid.RowID(vars["id"])

	if err := s.backend.DeleteRow(r.Context(), table, id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.notifyRefresh(r.Context(), table, feed.KindRows)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePutCell(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table := grid.TableID(vars["table"])
	row := grid.RowID(vars["row"])
	column := grid.ColumnID(vars["column"])

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var value grid.CellValue
	if len(raw) > 0 && string(raw) != "null" {
		value, err = grid.DecodeCellValue(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := s.backend.UpdateCell(r.Context(), table, row, column, value); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.notifyRefresh(r.Context(), table, feed.KindRows)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	table := grid.TableID(mux.Vars(r)["table"])
	h, err := s.hub(table)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	h.ServeHTTP(w, r)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atoms-tech/gridsync/internal/feed"
	"github.com/atoms-tech/gridsync/internal/grid"
	"github.com/atoms-tech/gridsync/internal/store"
	"github.com/atoms-tech/gridsync/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *feed.LocalNotifier) {
	t.Helper()

	backend, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequenceGenerator("srv")))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	notifier := feed.NewLocalNotifier()
	srv := New(backend, notifier, testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.Start(ctx)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, notifier
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestColumnEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	base := ts.URL + "/api/tables/tbl-1"

	resp := doJSON(t, http.MethodPost, base+"/columns", map[string]any{
		"name":    "Priority",
		"kind":    "single_select",
		"options": []string{"low", "high"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created grid.Column
	decodeInto(t, resp, &created)
	assert.Equal(t, grid.ColumnID("srv-1"), created.ID)
	assert.Equal(t, 0, created.Position)

	// Second column gets the next ordinal automatically.
	resp = doJSON(t, http.MethodPost, base+"/columns", map[string]any{
		"name": "Name", "kind": "text",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var second grid.Column
	decodeInto(t, resp, &second)
	assert.Equal(t, 1, second.Position)

	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/columns/%s", base, created.ID), map[string]any{
		"name": "Severity",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, base+"/columns", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var columns []grid.Column
	decodeInto(t, resp, &columns)
	require.Len(t, columns, 2)
	assert.Equal(t, "Severity", columns[0].Property.Name)

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/columns/%s", base, created.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/columns/%s", base, created.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestColumnValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	base := ts.URL + "/api/tables/tbl-1"

	resp := doJSON(t, http.MethodPost, base+"/columns", map[string]any{
		"name": "  ", "kind": "text",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base+"/columns", map[string]any{
		"name": "Location", "kind": "geo",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPatch, base+"/columns/whatever", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRowAndCellEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	base := ts.URL + "/api/tables/tbl-1"

	resp := doJSON(t, http.MethodPost, base+"/columns", map[string]any{
		"name": "Name", "kind": "text",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var col grid.Column
	decodeInto(t, resp, &col)

	resp = doJSON(t, http.MethodPost, base+"/rows", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var row grid.Row
	decodeInto(t, resp, &row)

	cellURL := fmt.Sprintf("%s/rows/%s/cells/%s", base, row.ID, col.ID)
	payload, err := grid.EncodeCellValue(grid.CellText("hello"))
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, cellURL, bytes.NewReader(payload))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, base+"/rows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []grid.Row
	decodeInto(t, resp, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, grid.CellText("hello"), rows[0].Fields[col.ID])

	// null clears the cell.
	req, err = http.NewRequest(http.MethodPut, cellURL, bytes.NewReader([]byte("null")))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, base+"/rows", nil)
	decodeInto(t, resp, &rows)
	assert.Empty(t, rows[0].Fields)

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/rows/%s", base, row.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/rows/%s", base, row.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestMutationsPublishRefreshNotices(t *testing.T) {
	ts, notifier := newTestServer(t)
	base := ts.URL + "/api/tables/tbl-1"

	ch, cancel, err := notifier.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	resp := doJSON(t, http.MethodPost, base+"/columns", map[string]any{
		"name": "Name", "kind": "text",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	r := <-ch
	assert.Equal(t, feed.Refresh{Table: "tbl-1", Kind: feed.KindColumns}, r)
}

func TestListTables(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/tables", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tables []grid.TableID
	decodeInto(t, resp, &tables)
	assert.Empty(t, tables)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/tables/tbl-1", map[string]any{"name": "Requirements"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/tables", nil)
	decodeInto(t, resp, &tables)
	assert.Equal(t, []grid.TableID{"tbl-1"}, tables)
}

func TestEndToEndSnapshotFlowOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)
	base := ts.URL + "/api/tables/tbl-1"

	resp := doJSON(t, http.MethodPost, base+"/columns", map[string]any{
		"name": "Name", "kind": "text",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var col grid.Column
	decodeInto(t, resp, &col)

	// A fresh snapshot seeds an overlay session exactly as the ws path does.
	resp = doJSON(t, http.MethodGet, base+"/columns", nil)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	var columns []grid.Column
	require.NoError(t, json.Unmarshal(body, &columns))
	require.Len(t, columns, 1)
	assert.Equal(t, col.ID, columns[0].ID)
	assert.Equal(t, grid.KindText, columns[0].Property.Kind)
}

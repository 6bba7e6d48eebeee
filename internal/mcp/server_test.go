package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablestore/internal/domain"
	"tablestore/internal/service"
	"tablestore/internal/storage"
)

func newTestServer(t *testing.T, defaultUser string) *Server {
	return newTestServerWith(t, defaultUser, func(s *storage.Store) domain.BackingStore { return s })
}

func newTestServerWith(t *testing.T, defaultUser string, wrap func(*storage.Store) domain.BackingStore) *Server {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "mcp.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notifier := NewNotifier(nil)
	svcs := service.New(service.Deps{Store: wrap(storage.NewStore(db)), Emitter: notifier})
	s := New(Deps{Services: svcs, Notifier: notifier, DefaultUser: defaultUser})
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err, "tool errors must not surface as protocol errors")
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	return res
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var v T
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &v))
	return v
}

func requireOK(t *testing.T, res *mcp.CallToolResult) {
	t.Helper()
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", res.Content[0].(mcp.TextContent).Text)
	}
}

func errorKind(t *testing.T, res *mcp.CallToolResult) domain.ErrorKind {
	t.Helper()
	require.True(t, res.IsError)
	body := decode[struct {
		Error errorBody `json:"error"`
	}](t, res)
	return body.Error.Kind
}

func createBugs(t *testing.T, s *Server) string {
	t.Helper()
	res := call(t, s.handleCreateDatabase, map[string]any{
		"name": "Bugs",
		"columns": `[{"name":"Title","type":"text"},
			{"name":"Severity","type":"select","options":{"choices":[{"label":"Low"},{"label":"High"}]}}]`,
	})
	requireOK(t, res)
	return decode[domain.Database](t, res).ID
}

// ─────────────────────────────────────────────────────────────
// Argument helpers
// ─────────────────────────────────────────────────────────────

func TestParseJSON_StringOrValue(t *testing.T) {
	var a, b map[string]any
	ok, err := parseJSON(map[string]any{"cells": `{"x":1}`}, "cells", &a)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = parseJSON(map[string]any{"cells": map[string]any{"x": 1.0}}, "cells", &b)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, a, b)

	ok, err = parseJSON(map[string]any{}, "cells", &a)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = parseJSON(map[string]any{"cells": "{nope"}, "cells", &a)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRowIDs(t *testing.T) {
	ids, err := rowIDs(map[string]any{"rowIds": `["a","b"]`})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = rowIDs(map[string]any{"rowIds": "a, b,"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = rowIDs(map[string]any{"rowIds": []any{"c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)
}

func TestDatabaseIDFromURI(t *testing.T) {
	assert.Equal(t, "abc", databaseIDFromURI("tablestore://database/abc/schema"))
	assert.Empty(t, databaseIDFromURI("tablestore://database/abc"))
	assert.Empty(t, databaseIDFromURI("tablestore://database/a/b/schema"))
	assert.Empty(t, databaseIDFromURI("notes://page/abc/blocks"))
}

func TestErrorResult(t *testing.T) {
	res := errorResult(domain.Validation("column %q already exists", "Title"))
	assert.Equal(t, domain.KindValidation, errorKind(t, res))
	body := decode[map[string]errorBody](t, res)
	assert.Equal(t, `column "Title" already exists`, body["error"].Message)

	assert.Equal(t, domain.KindConflict, errorKind(t, errorResult(service.ErrPurgeRunning)))
}

// ─────────────────────────────────────────────────────────────
// Tools
// ─────────────────────────────────────────────────────────────

func TestTools_UserIdentity(t *testing.T) {
	s := newTestServer(t, "")
	res := call(t, s.handleListDatabases, map[string]any{})
	assert.Equal(t, domain.KindAccessDenied, errorKind(t, res))

	res = call(t, s.handleListDatabases, map[string]any{"userId": "alice"})
	requireOK(t, res)
}

func TestTools_DatabaseLifecycle(t *testing.T) {
	s := newTestServer(t, "alice")
	id := createBugs(t, s)

	res := call(t, s.handleListDatabases, map[string]any{})
	requireOK(t, res)
	list := decode[map[string][]map[string]any](t, res)
	require.Len(t, list["databases"], 1)
	assert.Equal(t, id, list["databases"][0]["id"])

	res = call(t, s.handleGetDatabaseSchema, map[string]any{"databaseId": id})
	requireOK(t, res)
	db := decode[domain.Database](t, res)
	sev := db.ColumnByName("Severity")
	require.NotNil(t, sev)
	assert.Equal(t, "low", sev.Options.Choices[0].ID)

	res = call(t, s.handleDeleteDatabase, map[string]any{"databaseId": id})
	assert.Equal(t, domain.KindConfirmationRequired, errorKind(t, res))

	res = call(t, s.handleDeleteDatabase, map[string]any{"databaseId": id, "confirm": true})
	requireOK(t, res)

	res = call(t, s.handleGetDatabaseSchema, map[string]any{"databaseId": id})
	assert.Equal(t, domain.KindNotFound, errorKind(t, res))

	res = call(t, s.handleListTrash, map[string]any{})
	requireOK(t, res)
	trash := decode[map[string][]domain.TrashItem](t, res)
	require.Len(t, trash["items"], 1)

	res = call(t, s.handleRestoreTrashItem, map[string]any{"trashItemId": trash["items"][0].ID})
	requireOK(t, res)
	res = call(t, s.handleGetDatabaseSchema, map[string]any{"databaseId": id})
	requireOK(t, res)
}

func TestTools_Columns(t *testing.T) {
	s := newTestServer(t, "alice")
	id := createBugs(t, s)

	res := call(t, s.handleAddColumn, map[string]any{"databaseId": id, "name": "Title", "type": "text"})
	assert.Equal(t, domain.KindValidation, errorKind(t, res))

	res = call(t, s.handleAddColumn, map[string]any{
		"databaseId": id, "name": "Tags", "type": "multi-select",
		"options": `{"choices":[{"label":"UI"},{"label":"Backend"}]}`,
	})
	requireOK(t, res)
	added := decode[service.SchemaChange](t, res)
	require.NotNil(t, added.Column)
	assert.NotEmpty(t, added.SnapshotToken)

	res = call(t, s.handleUpdateColumn, map[string]any{
		"databaseId": id, "columnId": added.Column.ID, "name": "Labels", "visible": false, "width": 220.0,
	})
	requireOK(t, res)
	updated := decode[service.SchemaChange](t, res)
	assert.Equal(t, "Labels", updated.Column.Name)
	assert.False(t, updated.Column.Visible)
	assert.Equal(t, 220, updated.Column.Width)

	res = call(t, s.handleDeleteColumn, map[string]any{"databaseId": id, "columnId": added.Column.ID})
	requireOK(t, res)
	res = call(t, s.handleDeleteColumn, map[string]any{"databaseId": id, "columnId": added.Column.ID})
	assert.Equal(t, domain.KindNotFound, errorKind(t, res))
}

func TestTools_Rows(t *testing.T) {
	s := newTestServer(t, "alice")
	id := createBugs(t, s)

	res := call(t, s.handleAddDatabaseRow, map[string]any{"databaseId": id, "cells": `{"Title":"crash","Severity":"high"}`})
	requireOK(t, res)
	row := decode[map[string]any](t, res)
	rowID := row["_id"].(string)

	res = call(t, s.handleAddDatabaseRow, map[string]any{"databaseId": id, "cells": `{"Severity":"High"}`})
	assert.Equal(t, domain.KindValidation, errorKind(t, res))

	res = call(t, s.handleUpdateDatabaseRow, map[string]any{
		"databaseId": id, "rowId": rowID, "cells": `{"Title":"crash on save"}`, "expectedVersion": 1.0,
	})
	requireOK(t, res)
	upd := decode[service.RowUpdate](t, res)
	assert.NotEmpty(t, upd.SnapshotToken)

	res = call(t, s.handleUpdateDatabaseRow, map[string]any{
		"databaseId": id, "rowId": rowID, "cells": `{"Title":"stale"}`, "expectedVersion": 1.0,
	})
	assert.Equal(t, domain.KindConflict, errorKind(t, res))

	res = call(t, s.handleGetSnapshot, map[string]any{"token": upd.SnapshotToken})
	requireOK(t, res)
	snap := decode[domain.Snapshot](t, res)
	var prior domain.Row
	require.NoError(t, json.Unmarshal(snap.PriorState, &prior))
	assert.Equal(t, "crash", prior.Cells[decodeSchemaColumn(t, s, id, "Title")])

	res = call(t, s.handleGetDatabaseRows, map[string]any{"databaseId": id, "limit": 500.0, "sortOrder": "desc"})
	requireOK(t, res)
	page := decode[service.RowPage](t, res)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, service.MaxRowLimit, page.Limit)
	assert.Equal(t, "crash on save", page.Rows[0]["Title"])

	res = call(t, s.handleGetDatabaseRows, map[string]any{"databaseId": id, "sortOrder": "sideways"})
	assert.Equal(t, domain.KindValidation, errorKind(t, res))

	res = call(t, s.handleDeleteDatabaseRows, map[string]any{"databaseId": id, "rowIds": `["` + rowID + `"]`})
	requireOK(t, res)
	deleted := decode[map[string][]service.DeletedEntity](t, res)
	require.Len(t, deleted["deleted"], 1)
	assert.NotEmpty(t, deleted["deleted"][0].SnapshotToken)

	res = call(t, s.handleGetDatabaseRows, map[string]any{"databaseId": id})
	requireOK(t, res)
	assert.Equal(t, 0, decode[service.RowPage](t, res).TotalCount)
}

func TestTools_AddColumnWithChoiceArray(t *testing.T) {
	s := newTestServer(t, "alice")
	res := call(t, s.handleCreateDatabase, map[string]any{"name": "Issues"})
	requireOK(t, res)
	id := decode[domain.Database](t, res).ID

	res = call(t, s.handleAddColumn, map[string]any{
		"databaseId": id, "name": "Severity", "type": "select",
		"options": `[{"label":"Low"},{"label":"High"}]`,
	})
	requireOK(t, res)
	ch := decode[service.SchemaChange](t, res)
	require.Len(t, ch.Column.Options.Choices, 2)
	assert.Equal(t, "low", ch.Column.Options.Choices[0].ID)
	assert.Equal(t, "high", ch.Column.Options.Choices[1].ID)

	// Clients that send decoded JSON get the same treatment.
	res = call(t, s.handleAddColumn, map[string]any{
		"databaseId": id, "name": "Stage", "type": "select",
		"options": []any{map[string]any{"label": "In Review"}},
	})
	requireOK(t, res)
	assert.Equal(t, "in_review", decode[service.SchemaChange](t, res).Column.Options.Choices[0].ID)

	res = call(t, s.handleUpdateColumn, map[string]any{
		"databaseId": id, "columnId": ch.Column.ID, "options": `[{"label":"Critical"}]`,
	})
	requireOK(t, res)
	updated := decode[service.SchemaChange](t, res)
	require.Len(t, updated.Column.Options.Choices, 1)
	assert.Equal(t, "critical", updated.Column.Options.Choices[0].ID)
}

func TestTools_NullCellReadsBackAbsent(t *testing.T) {
	s := newTestServer(t, "alice")
	id := createBugs(t, s)

	res := call(t, s.handleAddDatabaseRow, map[string]any{"databaseId": id, "cells": `{"Title":null,"Severity":"low"}`})
	requireOK(t, res)
	added := decode[map[string]any](t, res)
	assert.NotContains(t, added, "Title")

	res = call(t, s.handleGetDatabaseRows, map[string]any{"databaseId": id})
	requireOK(t, res)
	page := decode[service.RowPage](t, res)
	require.Len(t, page.Rows, 1)
	got := page.Rows[0]
	assert.Equal(t, added["_id"], got["_id"])
	assert.NotContains(t, got, "Title")
	assert.Equal(t, "low", got["Severity"])
	for k := range added {
		assert.Contains(t, got, k, "add and read must agree on keys")
	}
}

func TestTools_GetRowsDeniedForNonOwner(t *testing.T) {
	s := newTestServer(t, "alice")
	res := call(t, s.handleCreateDocument, map[string]any{"title": "Private"})
	requireOK(t, res)
	docID := decode[domain.Document](t, res).ID

	res = call(t, s.handleCreateDatabase, map[string]any{"name": "Secrets", "documentId": docID})
	requireOK(t, res)
	id := decode[domain.Database](t, res).ID
	requireOK(t, call(t, s.handleAddDatabaseRow, map[string]any{"databaseId": id, "cells": `{}`}))

	res = call(t, s.handleGetDatabaseRows, map[string]any{"databaseId": id, "userId": "bob"})
	assert.Equal(t, domain.KindAccessDenied, errorKind(t, res))
	body := decode[map[string]json.RawMessage](t, res)
	assert.NotContains(t, body, "rows")
	assert.NotContains(t, body, "totalCount")
}

// trashLedgerFailsAfter lets the first n trash writes through, then fails.
type trashLedgerFailsAfter struct {
	*storage.Store
	n int
}

func (s *trashLedgerFailsAfter) AddTrashItem(ctx context.Context, item *domain.TrashItem) error {
	if s.n == 0 {
		return errors.New("ledger unavailable")
	}
	s.n--
	return s.Store.AddTrashItem(ctx, item)
}

func TestTools_PartialRowDeleteKeepsTokens(t *testing.T) {
	s := newTestServerWith(t, "alice", func(st *storage.Store) domain.BackingStore {
		return &trashLedgerFailsAfter{Store: st, n: 1}
	})
	id := createBugs(t, s)
	var ids []string
	for _, title := range []string{"one", "two"} {
		res := call(t, s.handleAddDatabaseRow, map[string]any{"databaseId": id, "cells": `{"Title":"` + title + `"}`})
		requireOK(t, res)
		ids = append(ids, decode[map[string]any](t, res)["_id"].(string))
	}

	rowIDs, _ := json.Marshal(ids)
	res := call(t, s.handleDeleteDatabaseRows, map[string]any{"databaseId": id, "rowIds": string(rowIDs)})
	assert.Equal(t, domain.KindBackingStore, errorKind(t, res))
	body := decode[struct {
		Deleted []service.DeletedEntity `json:"deleted"`
	}](t, res)
	require.Len(t, body.Deleted, 1)
	assert.Equal(t, ids[0], body.Deleted[0].ID)
	requireOK(t, call(t, s.handleGetSnapshot, map[string]any{"token": body.Deleted[0].SnapshotToken}))

	res = call(t, s.handleGetDatabaseRows, map[string]any{"databaseId": id})
	requireOK(t, res)
	page := decode[service.RowPage](t, res)
	require.Len(t, page.Rows, 1, "the row whose ledger write failed stays live")
	assert.Equal(t, ids[1], page.Rows[0]["_id"])
}

func TestTools_RecordFileDeletion(t *testing.T) {
	s := newTestServer(t, "alice")
	id := createBugs(t, s)

	res := call(t, s.handleRecordFileDeletion, map[string]any{"fileId": "f-1", "location": "uploads/f-1.pdf", "databaseId": id})
	requireOK(t, res)
	item := decode[domain.TrashItem](t, res)
	assert.Equal(t, domain.TrashFile, item.ItemType)
	assert.Equal(t, "f-1", item.DisplayName)
	assert.Equal(t, "Bugs", item.ParentInfo.DatabaseName)

	res = call(t, s.handleListTrash, map[string]any{})
	requireOK(t, res)
	assert.Len(t, decode[map[string][]domain.TrashItem](t, res)["items"], 1)

	res = call(t, s.handleRecordFileDeletion, map[string]any{})
	assert.Equal(t, domain.KindValidation, errorKind(t, res))
}

func decodeSchemaColumn(t *testing.T, s *Server, dbID, name string) string {
	t.Helper()
	res := call(t, s.handleGetDatabaseSchema, map[string]any{"databaseId": dbID})
	requireOK(t, res)
	db := decode[domain.Database](t, res)
	c := db.ColumnByName(name)
	require.NotNil(t, c)
	return c.ID
}

func TestTools_ImportCSV(t *testing.T) {
	s := newTestServer(t, "alice")
	id := createBugs(t, s)

	res := call(t, s.handleImportCSV, map[string]any{"databaseId": id, "csvText": "Title,Owner\na,bob\n"})
	assert.Equal(t, domain.KindValidation, errorKind(t, res))

	res = call(t, s.handleImportCSV, map[string]any{
		"databaseId": id, "csvText": "Title,Owner\na,bob\nb,carol\n", "skipUnknownColumns": true,
	})
	requireOK(t, res)
	imported := decode[service.ImportResult](t, res)
	assert.Equal(t, 2, imported.Imported)
	assert.Equal(t, []string{"Owner"}, imported.SkippedColumns)
}

func TestTools_WatchCSVValidation(t *testing.T) {
	s := newTestServer(t, "alice")
	id := createBugs(t, s)

	res := call(t, s.handleWatchCSV, map[string]any{"databaseId": id, "path": filepath.Join(t.TempDir(), "missing.csv")})
	assert.Equal(t, domain.KindValidation, errorKind(t, res))

	res = call(t, s.handleUnwatchCSV, map[string]any{"path": "/nowhere.csv"})
	assert.Equal(t, domain.KindNotFound, errorKind(t, res))
}

func TestTools_PurgeExpiredTrash(t *testing.T) {
	s := newTestServer(t, "alice")
	res := call(t, s.handlePurgeExpiredTrash, map[string]any{})
	requireOK(t, res)
	report := decode[service.PurgeReport](t, res)
	assert.Equal(t, service.PurgeReport{}, report)
}

func TestNotifierParams(t *testing.T) {
	params, err := toParams(service.DatabaseChange{DatabaseID: "d1", Operation: "addRow", RowIDs: []string{"r1"}})
	require.NoError(t, err)
	assert.Equal(t, "d1", params["databaseId"])
	assert.Equal(t, []any{"r1"}, params["rowIds"])

	params, err = toParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)

	// Detached notifiers drop events silently.
	NewNotifier(nil).Emit(context.Background(), service.EventDatabaseChanged, nil)
}

func TestInstrumentCountsOutcomes(t *testing.T) {
	h := instrument("instrumented_tool", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return errorResult(domain.NotFound("nothing")), nil
	})
	before := testutil.ToFloat64(toolCallsTotal.WithLabelValues("instrumented_tool", "error"))
	call(t, h, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(toolCallsTotal.WithLabelValues("instrumented_tool", "error")))
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablestore/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func newTestDatabase(t *testing.T, s *Store, id string) *domain.Database {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	d := &domain.Database{
		ID:                id,
		Name:              "Bugs",
		Kind:              domain.KindGeneric,
		PhysicalTableName: domain.PhysicalTableName(id),
		CreatedBy:         "u1",
		Columns: []domain.Column{
			{ID: "title", Name: "Title", Type: domain.ColTypeText, Visible: true},
			{ID: "n", Name: "Count", Type: domain.ColTypeNumber, Visible: true, Order: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateDatabase(ctx, d))
	require.NoError(t, s.ProvisionTable(ctx, id, d.Slots()))
	return d
}

func newRow(id string, order int64, cells map[string]any) *domain.Row {
	now := time.Now().UTC()
	return &domain.Row{ID: id, Order: order, Version: 1, Cells: cells, CreatedAt: now, UpdatedAt: now}
}

// ─────────────────────────────────────────────────────────────
// Dialect
// ─────────────────────────────────────────────────────────────

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", Postgres.Rebind(q))
}

func TestDialect_AddColumn(t *testing.T) {
	assert.Equal(t, "ALTER TABLE db_x ADD COLUMN c_a TEXT NULL", SQLite.AddColumn("db_x", "c_a"))
	assert.Contains(t, Postgres.AddColumn("db_x", "c_a"), "IF NOT EXISTS")
	assert.Contains(t, MySQL.AddColumn("db_x", "c_a"), "LONGTEXT")
}

// ─────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────

func TestRegistry_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := newTestDatabase(t, s, "db-1")

	got, err := s.GetDatabase(ctx, "db-1")
	require.NoError(t, err)
	assert.Equal(t, d.Name, got.Name)
	assert.Equal(t, d.PhysicalTableName, got.PhysicalTableName)
	require.Len(t, got.Columns, 2)
	assert.Equal(t, "Count", got.Columns[1].Name)
	assert.Nil(t, got.DeletedAt)

	got.Name = "Issues"
	require.NoError(t, s.UpdateDatabase(ctx, got))
	again, err := s.GetDatabase(ctx, "db-1")
	require.NoError(t, err)
	assert.Equal(t, "Issues", again.Name)
}

func TestRegistry_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDatabase(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_ListHidesDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "a")
	newTestDatabase(t, s, "b")

	now := time.Now().UTC()
	require.NoError(t, s.SetDatabaseDeleted(ctx, "a", &now))

	live, err := s.ListDatabases(ctx, domain.DatabaseFilter{})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "b", live[0].ID)

	all, err := s.ListDatabases(ctx, domain.DatabaseFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDocument(ctx, &domain.Document{
		ID: "doc-1", Title: "Roadmap", OwnerUserID: "u1", CreatedAt: time.Now(),
	}))
	doc, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", doc.Title)

	_, err = s.GetDocument(ctx, "doc-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─────────────────────────────────────────────────────────────
// Rows
// ─────────────────────────────────────────────────────────────

func TestRows_InsertAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "db-1")

	require.NoError(t, s.InsertRows(ctx, "db-1", []*domain.Row{
		newRow("r1", 1, map[string]any{"title": "first", "n": 3}),
		newRow("r2", 2, map[string]any{"title": "second"}),
	}))

	rows, total, err := s.ListRows(ctx, "db-1", domain.RowQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "r1", rows[0].ID)
	assert.Equal(t, "first", rows[0].Cells["title"])
	assert.Equal(t, float64(3), rows[0].Cells["n"])
	_, hasN := rows[1].Cells["n"]
	assert.False(t, hasN)

	desc, _, err := s.ListRows(ctx, "db-1", domain.RowQuery{Limit: 1, SortBy: domain.SortByOrder, Descending: true})
	require.NoError(t, err)
	require.Len(t, desc, 1)
	assert.Equal(t, "r2", desc[0].ID)
}

func TestRows_InsertIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "db-1")

	err := s.InsertRows(ctx, "db-1", []*domain.Row{
		newRow("r1", 1, map[string]any{"title": "ok"}),
		newRow("r2", 2, map[string]any{"ghost": "no such slot"}),
	})
	require.Error(t, err)

	_, total, err := s.ListRows(ctx, "db-1", domain.RowQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestRows_SoftDeleteAndMaxOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "db-1")
	require.NoError(t, s.InsertRows(ctx, "db-1", []*domain.Row{
		newRow("r1", 1, nil), newRow("r2", 2, nil),
	}))

	now := time.Now().UTC()
	require.NoError(t, s.SetRowDeleted(ctx, "db-1", "r2", &now))

	rows, total, err := s.ListRows(ctx, "db-1", domain.RowQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, rows, 1)

	max, err := s.MaxOrder(ctx, "db-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), max)

	r, err := s.GetRow(ctx, "db-1", "r2")
	require.NoError(t, err)
	assert.NotNil(t, r.DeletedAt)

	require.NoError(t, s.SetRowDeleted(ctx, "db-1", "r2", nil))
	_, total, _ = s.ListRows(ctx, "db-1", domain.RowQuery{Limit: 10})
	assert.Equal(t, 2, total)
}

func TestRows_AppendAssignsContiguousOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "db-1")
	require.NoError(t, s.InsertRows(ctx, "db-1", []*domain.Row{newRow("r0", 7, nil)}))

	batch := []*domain.Row{newRow("r1", 0, nil), newRow("r2", 0, nil), newRow("r3", 0, nil)}
	require.NoError(t, s.AppendRows(ctx, "db-1", batch))
	assert.Equal(t, []int64{8, 9, 10}, []int64{batch[0].Order, batch[1].Order, batch[2].Order})

	err := s.InsertRows(ctx, "db-1", []*domain.Row{newRow("dup", 9, nil)})
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "row_order is unique: %v", err)
}

func TestRows_ConcurrentAppendsNeverShareOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "db-1")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.AppendRows(ctx, "db-1", []*domain.Row{newRow(fmt.Sprintf("r%d", i), 0, nil)})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, total, err := s.ListRows(ctx, "db-1", domain.RowQuery{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 20, total)
	orders := make([]int64, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, r.Order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i] < orders[j] })
	for i, o := range orders {
		assert.Equal(t, int64(i+1), o)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "42P01"}))
	assert.True(t, isUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isUniqueViolation(&mysql.MySQLError{Number: 1146}))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: db_x.row_order")))
	assert.False(t, isUniqueViolation(nil))
}

func TestRows_UpdateStampsGivenTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "db-1")
	require.NoError(t, s.InsertRows(ctx, "db-1", []*domain.Row{newRow("r1", 1, nil)}))

	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &domain.Row{ID: "r1", Cells: map[string]any{"title": "b"}, UpdatedAt: at}
	require.NoError(t, s.UpdateRow(ctx, "db-1", r, 0))
	assert.True(t, at.Equal(r.UpdatedAt), "got %s", r.UpdatedAt)
}

func TestRows_UpdateVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "db-1")
	require.NoError(t, s.InsertRows(ctx, "db-1", []*domain.Row{
		newRow("r1", 1, map[string]any{"title": "a"}),
	}))

	r := &domain.Row{ID: "r1", Cells: map[string]any{"title": "b"}}
	require.NoError(t, s.UpdateRow(ctx, "db-1", r, 1))
	assert.Equal(t, int64(2), r.Version)
	assert.Equal(t, "b", r.Cells["title"])

	stale := &domain.Row{ID: "r1", Cells: map[string]any{"title": "c"}}
	err := s.UpdateRow(ctx, "db-1", stale, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.GetRow(ctx, "db-1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Cells["title"])

	clear := &domain.Row{ID: "r1", Cells: map[string]any{"title": nil}}
	require.NoError(t, s.UpdateRow(ctx, "db-1", clear, 0))
	_, has := clear.Cells["title"]
	assert.False(t, has)

	err = s.UpdateRow(ctx, "db-1", &domain.Row{ID: "nope", Cells: map[string]any{"title": "x"}}, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRows_AddSlotAndDropTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestDatabase(t, s, "db-1")

	slot := domain.SlotName("extra")
	require.NoError(t, s.AddSlot(ctx, "db-1", slot))
	require.NoError(t, s.AddSlot(ctx, "db-1", slot), "adding an existing slot is a no-op")

	require.NoError(t, s.InsertRows(ctx, "db-1", []*domain.Row{
		newRow("r1", 1, map[string]any{"extra": []any{"a", "b"}}),
	}))
	r, err := s.GetRow(ctx, "db-1", "r1")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, r.Cells["extra"])

	require.NoError(t, s.DropTable(ctx, "db-1"))
	require.NoError(t, s.DropTable(ctx, "db-1"))
	_, err = s.GetRow(ctx, "db-1", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─────────────────────────────────────────────────────────────
// Trash & snapshots
// ─────────────────────────────────────────────────────────────

func TestTrash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour).UTC()
	fresh := time.Now().UTC()

	items := []domain.TrashItem{
		{ID: "t1", ItemType: domain.TrashRow, ItemID: "r1", PhysicalLocation: "db_a", DisplayName: "row", OwnerUserID: "u1", DeletedAt: old},
		{ID: "t2", ItemType: domain.TrashDatabase, ItemID: "a", PhysicalLocation: "db_a", DisplayName: "A", OwnerUserID: "u1", DeletedAt: old,
			ParentInfo: domain.ParentInfo{DocumentID: "doc"}},
		{ID: "t3", ItemType: domain.TrashRow, ItemID: "r9", PhysicalLocation: "db_b", DisplayName: "row", OwnerUserID: "u2", DeletedAt: fresh},
	}
	for i := range items {
		require.NoError(t, s.AddTrashItem(ctx, &items[i]))
	}

	mine, err := s.ListTrash(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	expired, err := s.ListExpiredTrash(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, domain.TrashDatabase, expired[0].ItemType, "databases are purged first")
	assert.Equal(t, "doc", expired[0].ParentInfo.DocumentID)

	require.NoError(t, s.DeleteTrashAt(ctx, "db_a"))
	_, err = s.GetTrashItem(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.DeleteTrashItem(ctx, "t3"))
	rest, err := s.ListTrash(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestSnapshots_PriorStateVerbatim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	prior := json.RawMessage(`{"id":"r1","cells":{"b":2,"a":1}}`)

	require.NoError(t, s.SaveSnapshot(ctx, &domain.Snapshot{
		Token: "tok", EntityType: domain.EntityRow, EntityID: "r1", PhysicalLocation: "db_a",
		SourceOperation: "updateRow", OperationKind: domain.OpUpdate, PriorState: prior,
		OwnerUserID: "u1", CapturedAt: time.Now(),
	}))

	snap, err := s.GetSnapshot(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, string(prior), string(snap.PriorState))
	assert.Equal(t, domain.OpUpdate, snap.OperationKind)

	require.NoError(t, s.DeleteSnapshotsFor(ctx, domain.EntityRow, "r1"))
	_, err = s.GetSnapshot(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

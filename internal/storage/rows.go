package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"tablestore/internal/domain"
)

// RowStore keeps one physical table per database. Bookkeeping columns are
// fixed; every logical column gets a nullable text slot holding JSON.
type RowStore struct {
	db *DB
}

// NewRowStore creates a new RowStore.
func NewRowStore(db *DB) *RowStore {
	return &RowStore{db: db}
}

var sortColumns = map[domain.RowSortField]string{
	domain.SortByOrder:     "row_order",
	domain.SortByCreatedAt: "created_at",
	domain.SortByUpdatedAt: "updated_at",
}

// ── Provisioning ───────────────────────────────────────────

func (s *RowStore) ProvisionTable(ctx context.Context, databaseID string, slots []string) error {
	d := s.db.dialect
	table := domain.PhysicalTableName(databaseID)

	cols := []string{
		"id " + d.IDType + " PRIMARY KEY",
		"row_order BIGINT NOT NULL",
		"version BIGINT NOT NULL DEFAULT 1",
		"created_at " + d.TimeType + " NOT NULL",
		"updated_at " + d.TimeType + " NOT NULL",
		"deleted_at " + d.TimeType + " NULL",
	}
	for _, slot := range slots {
		if !domain.IsSlot(slot) {
			return fmt.Errorf("invalid slot name %q", slot)
		}
		cols = append(cols, slot+" "+d.LongText+" NULL")
	}

	ddl := "CREATE TABLE IF NOT EXISTS " + table + " (\n\t" + strings.Join(cols, ",\n\t") + "\n)"
	if _, err := s.db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	idx := d.CreateUniqueIndex("uq_"+table+"_order", table, "row_order")
	if _, err := s.db.conn.ExecContext(ctx, idx); err != nil && !isDuplicate(err) {
		return fmt.Errorf("index table %s: %w", table, err)
	}
	s.db.log.Debug("provisioned table")
	return nil
}

func (s *RowStore) AddSlot(ctx context.Context, databaseID, slot string) error {
	if !domain.IsSlot(slot) {
		return fmt.Errorf("invalid slot name %q", slot)
	}
	table := domain.PhysicalTableName(databaseID)
	_, err := s.db.conn.ExecContext(ctx, s.db.dialect.AddColumn(table, slot))
	if err != nil && !isDuplicate(err) {
		return fmt.Errorf("add slot %s to %s: %w", slot, table, err)
	}
	return nil
}

func (s *RowStore) DropTable(ctx context.Context, databaseID string) error {
	table := domain.PhysicalTableName(databaseID)
	if _, err := s.db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}

// ── Row CRUD ───────────────────────────────────────────────

func (s *RowStore) InsertRows(ctx context.Context, databaseID string, rows []*domain.Row) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.insertTx(ctx, tx, databaseID, rows); err != nil {
		return err
	}
	return tx.Commit()
}

// appendAttempts bounds retries when a concurrent append took the same
// order values first.
const appendAttempts = 5

func (s *RowStore) AppendRows(ctx context.Context, databaseID string, rows []*domain.Row) error {
	if len(rows) == 0 {
		return nil
	}
	var err error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		if err = s.appendOnce(ctx, databaseID, rows); err == nil || !isUniqueViolation(err) {
			return err
		}
		s.db.log.Debug("row order taken, retrying append")
	}
	return domain.Conflict("could not append rows to %s: %v", databaseID, err)
}

func (s *RowStore) appendOnce(ctx context.Context, databaseID string, rows []*domain.Row) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var max int64
	q := "SELECT COALESCE(MAX(row_order), 0) FROM " + domain.PhysicalTableName(databaseID)
	if err := tx.QueryRowContext(ctx, q).Scan(&max); err != nil {
		return fmt.Errorf("read max order: %w", err)
	}
	for i, r := range rows {
		r.Order = max + int64(i) + 1
	}
	if err := s.insertTx(ctx, tx, databaseID, rows); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *RowStore) insertTx(ctx context.Context, tx *sql.Tx, databaseID string, rows []*domain.Row) error {
	table := domain.PhysicalTableName(databaseID)
	for _, r := range rows {
		cols := []string{"id", "row_order", "version", "created_at", "updated_at"}
		args := []any{r.ID, r.Order, r.Version, r.CreatedAt.UTC(), r.UpdatedAt.UTC()}
		slots, values, err := encodeCells(r.Cells)
		if err != nil {
			return err
		}
		cols = append(cols, slots...)
		args = append(args, values...)

		q := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
		if _, err := tx.ExecContext(ctx, s.db.dialect.Rebind(q), args...); err != nil {
			return fmt.Errorf("insert row %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *RowStore) GetRow(ctx context.Context, databaseID, rowID string) (*domain.Row, error) {
	table := domain.PhysicalTableName(databaseID)
	rows, err := s.db.query(ctx, "SELECT * FROM "+table+" WHERE id = ?", rowID)
	if isMissingTable(err) {
		return nil, domain.NotFound("no table for database %s", databaseID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := scanRows(rows, databaseID)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, domain.NotFound("row not found: %s", rowID)
	}
	return &result[0], nil
}

func (s *RowStore) ListRows(ctx context.Context, databaseID string, q domain.RowQuery) ([]domain.Row, int, error) {
	table := domain.PhysicalTableName(databaseID)

	var total int
	if err := s.db.queryRow(ctx,
		"SELECT COUNT(*) FROM "+table+" WHERE deleted_at IS NULL",
	).Scan(&total); err != nil {
		if isMissingTable(err) {
			return nil, 0, domain.NotFound("no table for database %s", databaseID)
		}
		return nil, 0, err
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "row_order"
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	rows, err := s.db.query(ctx,
		"SELECT * FROM "+table+" WHERE deleted_at IS NULL ORDER BY "+col+" "+dir+", id ASC LIMIT ? OFFSET ?",
		q.Limit, q.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result, err := scanRows(rows, databaseID)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *RowStore) MaxOrder(ctx context.Context, databaseID string) (int64, error) {
	var max int64
	err := s.db.queryRow(ctx,
		"SELECT COALESCE(MAX(row_order), 0) FROM "+domain.PhysicalTableName(databaseID),
	).Scan(&max)
	return max, err
}

func (s *RowStore) UpdateRow(ctx context.Context, databaseID string, r *domain.Row, expectedVersion int64) error {
	table := domain.PhysicalTableName(databaseID)
	slots, values, err := encodeCells(r.Cells)
	if err != nil {
		return err
	}

	now := r.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	sets := []string{"version = version + 1", "updated_at = ?"}
	args := []any{now.UTC()}
	for i, slot := range slots {
		sets = append(sets, slot+" = ?")
		args = append(args, values[i])
	}
	q := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, r.ID)
	if expectedVersion > 0 {
		q += " AND version = ?"
		args = append(args, expectedVersion)
	}

	res, err := s.db.exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update row %s: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		current, err := s.GetRow(ctx, databaseID, r.ID)
		if err != nil {
			return err
		}
		return domain.Conflict("row %s is at version %d, expected %d", r.ID, current.Version, expectedVersion)
	}

	updated, err := s.GetRow(ctx, databaseID, r.ID)
	if err != nil {
		return err
	}
	*r = *updated
	return nil
}

func (s *RowStore) SetRowDeleted(ctx context.Context, databaseID, rowID string, at *time.Time) error {
	res, err := s.db.exec(ctx,
		"UPDATE "+domain.PhysicalTableName(databaseID)+" SET deleted_at = ? WHERE id = ?",
		nullTime(at), rowID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "row", rowID)
}

func (s *RowStore) PurgeRow(ctx context.Context, databaseID, rowID string) error {
	_, err := s.db.exec(ctx, "DELETE FROM "+domain.PhysicalTableName(databaseID)+" WHERE id = ?", rowID)
	return err
}

// ── encoding ───────────────────────────────────────────────

// encodeCells turns id-keyed cells into slot names and JSON text values, in
// a stable order. Nil cells become NULL.
func encodeCells(cells map[string]any) ([]string, []any, error) {
	ids := make([]string, 0, len(cells))
	for id := range cells {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	slots := make([]string, 0, len(ids))
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		v := cells[id]
		slots = append(slots, domain.SlotName(id))
		if v == nil {
			values = append(values, nil)
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, nil, domain.Validation("cell %q is not JSON-encodable: %v", id, err)
		}
		values = append(values, string(b))
	}
	return slots, values, nil
}

func scanRows(rows *sql.Rows, databaseID string) ([]domain.Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []domain.Row
	for rows.Next() {
		var (
			r         = domain.Row{DatabaseID: databaseID, Cells: map[string]any{}}
			deletedAt sql.NullTime
			cells     = make([]sql.NullString, len(names))
			dest      = make([]any, len(names))
		)
		for i, name := range names {
			switch strings.ToLower(name) {
			case "id":
				dest[i] = &r.ID
			case "row_order":
				dest[i] = &r.Order
			case "version":
				dest[i] = &r.Version
			case "created_at":
				dest[i] = &r.CreatedAt
			case "updated_at":
				dest[i] = &r.UpdatedAt
			case "deleted_at":
				dest[i] = &deletedAt
			default:
				dest[i] = &cells[i]
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			r.DeletedAt = &t
		}
		for i, name := range names {
			if !domain.IsSlot(name) || !cells[i].Valid {
				continue
			}
			id, err := domain.ColumnIDFromSlot(name)
			if err != nil {
				return nil, err
			}
			var v any
			if err := json.Unmarshal([]byte(cells[i].String), &v); err != nil {
				return nil, fmt.Errorf("decode cell %s of row %s: %w", id, r.ID, err)
			}
			r.Cells[id] = v
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// isMissingTable matches "no such table" style failures across engines.
func isMissingTable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "doesn't exist")
}

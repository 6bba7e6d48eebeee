package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"tablestore/internal/domain"
	"tablestore/internal/schema"
)

// Row paging limits.
const (
	DefaultRowLimit = 50
	MaxRowLimit     = 100
)

// ─────────────────────────────────────────────────────────────
// RowService: row CRUD with name/id translation
// ─────────────────────────────────────────────────────────────

// RowService reads and writes rows. Callers see cells keyed by column name;
// storage sees them keyed by column id. A fresh mapper is built from the
// schema on every call.
type RowService struct {
	Deps
	gate  *AccessGate
	snaps *SnapshotService
}

// NewRowService creates a RowService.
func NewRowService(deps Deps, gate *AccessGate, snaps *SnapshotService) *RowService {
	deps.defaults()
	return &RowService{Deps: deps, gate: gate, snaps: snaps}
}

// RowsQuery pages through a database's live rows.
type RowsQuery struct {
	Limit      int
	Offset     int
	SortBy     domain.RowSortField
	Descending bool
}

// RowPage is one page of denormalized rows.
type RowPage struct {
	Rows       []map[string]any `json:"rows"`
	TotalCount int              `json:"totalCount"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// RowUpdate is the result of UpdateRow.
type RowUpdate struct {
	Row           map[string]any `json:"row"`
	SnapshotToken string         `json:"snapshotToken"`
}

// AddRow appends a row at the end of the database. Names that match no
// column are dropped, and so are null cells: an unset column reads back
// absent, the same as one never supplied.
func (s *RowService) AddRow(ctx context.Context, userID, databaseID string, cells map[string]any) (map[string]any, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	m := schema.NewMapper(db)
	byID, unknown := m.ToIDs(cells)
	for id, v := range byID {
		if v == nil {
			delete(byID, id)
		}
	}
	if len(unknown) > 0 {
		s.Logger.Debug("dropping unknown columns",
			zap.String("databaseId", databaseID), zap.Strings("columns", unknown))
	}
	if err := m.ValidateCells(byID); err != nil {
		return nil, err
	}
	if missing := m.MissingRequired(byID); len(missing) > 0 {
		sort.Strings(missing)
		return nil, domain.Validation("missing required column(s): %s", strings.Join(missing, ", "))
	}

	now := s.Now()
	row := &domain.Row{
		ID:         s.NewID(),
		DatabaseID: databaseID,
		Version:    1,
		Cells:      byID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.AppendRows(ctx, databaseID, []*domain.Row{row}); err != nil {
		return nil, domain.Backing("insert row", err)
	}

	s.Logger.Info("row added", zap.String("databaseId", databaseID), zap.String("rowId", row.ID))
	s.emit(ctx, databaseID, "addRow", row.ID)
	return m.Denormalize(row), nil
}

// UpdateRow merges cells into an existing row; columns not named keep their
// values. The full prior row is snapshotted first. With expectedVersion > 0
// the update only applies if the row is still at that version. A failed
// write after the snapshot still returns the RowUpdate carrying its token.
func (s *RowService) UpdateRow(ctx context.Context, userID, databaseID, rowID string, cells map[string]any, expectedVersion int64) (*RowUpdate, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	m := schema.NewMapper(db)
	byID, unknown := m.ToIDs(cells)
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, domain.Validation("unknown column(s): %s", strings.Join(unknown, ", "))
	}
	if len(byID) == 0 {
		return nil, domain.Validation("no cells to update")
	}
	if err := m.ValidateCells(byID); err != nil {
		return nil, err
	}
	if missing := m.ClearedRequired(byID); len(missing) > 0 {
		return nil, domain.Validation("required column(s) cannot be cleared: %s", strings.Join(missing, ", "))
	}

	current, err := s.Store.GetRow(ctx, databaseID, rowID)
	if err != nil {
		return nil, domain.Backing("load row", err)
	}
	if current.DeletedAt != nil {
		return nil, domain.NotFound("row not found: %s", rowID)
	}
	if expectedVersion > 0 && current.Version != expectedVersion {
		return nil, domain.Conflict("row %s is at version %d, expected %d", rowID, current.Version, expectedVersion)
	}

	token, err := s.snaps.CaptureRow(ctx, userID, "updateRow", domain.OpUpdate, current)
	if err != nil {
		return nil, err
	}
	patch := &domain.Row{ID: rowID, DatabaseID: databaseID, Cells: byID, UpdatedAt: s.Now()}
	if err := s.Store.UpdateRow(ctx, databaseID, patch, expectedVersion); err != nil {
		return &RowUpdate{SnapshotToken: token}, domain.Backing("update row", err)
	}

	s.Logger.Info("row updated",
		zap.String("databaseId", databaseID),
		zap.String("rowId", rowID),
		zap.Int64("version", patch.Version))
	s.emit(ctx, databaseID, "updateRow", rowID)
	return &RowUpdate{Row: m.Denormalize(patch), SnapshotToken: token}, nil
}

// GetRows returns a page of live rows, by order ascending unless asked
// otherwise.
func (s *RowService) GetRows(ctx context.Context, userID, databaseID string, q RowsQuery) (*RowPage, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	if q.SortBy == "" {
		q.SortBy = domain.SortByOrder
	}
	if !q.SortBy.Valid() {
		return nil, domain.Validation("cannot sort by %q", q.SortBy)
	}
	q.Limit = ClampLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}

	rows, total, err := s.Store.ListRows(ctx, databaseID, domain.RowQuery{
		Limit:      q.Limit,
		Offset:     q.Offset,
		SortBy:     q.SortBy,
		Descending: q.Descending,
	})
	if err != nil {
		return nil, domain.Backing("list rows", err)
	}

	m := schema.NewMapper(db)
	page := &RowPage{Rows: make([]map[string]any, 0, len(rows)), TotalCount: total, Limit: q.Limit, Offset: q.Offset}
	for i := range rows {
		page.Rows = append(page.Rows, m.Denormalize(&rows[i]))
	}
	return page, nil
}

// ClampLimit applies the default and the upper bound to a page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRowLimit
	case limit > MaxRowLimit:
		return MaxRowLimit
	}
	return limit
}

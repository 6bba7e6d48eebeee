package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"tablestore/internal/domain"
	"tablestore/internal/schema"
)

// ─────────────────────────────────────────────────────────────
// ImportService: bulk CSV ingest
// ─────────────────────────────────────────────────────────────

// ImportService loads CSV text into a database. The header row is matched
// against column names; every data row is validated before any is written,
// and the batch lands in one AppendRows call with contiguous orders.
type ImportService struct {
	Deps
	gate *AccessGate
}

// NewImportService creates an ImportService.
func NewImportService(deps Deps, gate *AccessGate) *ImportService {
	deps.defaults()
	return &ImportService{Deps: deps, gate: gate}
}

// ImportResult reports a committed import.
type ImportResult struct {
	Imported       int      `json:"imported"`
	RowIDs         []string `json:"rowIds"`
	SkippedColumns []string `json:"skippedColumns,omitempty"`
}

// ImportCSV parses csvText and appends its rows. Headers that match no
// column fail the import unless skipUnknown is set, in which case those
// columns are ignored. Values stay strings; empty cells are left unset.
func (s *ImportService) ImportCSV(ctx context.Context, userID, databaseID, csvText string, skipUnknown bool) (*ImportResult, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(csvText, "\ufeff")))
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.Validation("csv has no header row")
	}
	if err != nil {
		return nil, domain.Validation("parse csv header: %v", err)
	}

	m := schema.NewMapper(db)
	colIDs, skipped, err := matchHeader(m, header, skipUnknown)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	var rows []*domain.Row
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.Validation("parse csv: %v", err)
		}
		cells := make(map[string]any, len(rec))
		for i, v := range rec {
			if colIDs[i] == "" || v == "" {
				continue
			}
			cells[colIDs[i]] = v
		}
		if err := m.ValidateCells(cells); err != nil {
			return nil, domain.Validation("line %d: %v", line, err)
		}
		if missing := m.MissingRequired(cells); len(missing) > 0 {
			sort.Strings(missing)
			return nil, domain.Validation("line %d: missing required column(s): %s", line, strings.Join(missing, ", "))
		}
		rows = append(rows, &domain.Row{
			ID:         s.NewID(),
			DatabaseID: databaseID,
			Version:    1,
			Cells:      cells,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	res := &ImportResult{RowIDs: make([]string, len(rows)), SkippedColumns: skipped}
	for i, row := range rows {
		res.RowIDs[i] = row.ID
	}
	if len(rows) == 0 {
		return res, nil
	}
	if err := s.Store.AppendRows(ctx, databaseID, rows); err != nil {
		return nil, domain.Backing("insert rows", err)
	}
	res.Imported = len(rows)

	s.Logger.Info("csv imported",
		zap.String("databaseId", databaseID),
		zap.Int("rows", res.Imported),
		zap.Strings("skippedColumns", skipped))
	s.emit(ctx, databaseID, "importCsv", res.RowIDs...)
	return res, nil
}

// ImportFile reads path and imports it with ImportCSV.
func (s *ImportService) ImportFile(ctx context.Context, userID, databaseID, path string, skipUnknown bool) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Validation("read %s: %v", path, err)
	}
	return s.ImportCSV(ctx, userID, databaseID, string(data), skipUnknown)
}

// matchHeader maps each header cell to a column id. Skipped positions map
// to "".
func matchHeader(m *schema.Mapper, header []string, skipUnknown bool) ([]string, []string, error) {
	ids := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	var unknown []string
	for i, h := range header {
		name := strings.TrimSpace(h)
		c := m.ColumnByName(name)
		if c == nil {
			unknown = append(unknown, name)
			continue
		}
		if seen[c.ID] {
			return nil, nil, domain.Validation("column %q appears twice in the csv header", name)
		}
		seen[c.ID] = true
		ids[i] = c.ID
	}
	if len(unknown) > 0 && !skipUnknown {
		return nil, nil, domain.Validation("csv header has unknown column(s): %s", strings.Join(unknown, ", "))
	}
	return ids, unknown, nil
}

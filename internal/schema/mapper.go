package schema

import (
	"time"

	"tablestore/internal/domain"
)

// Row metadata keys added to denormalized rows.
const (
	MetaID        = "_id"
	MetaOrder     = "_order"
	MetaVersion   = "_version"
	MetaCreatedAt = "_createdAt"
	MetaUpdatedAt = "_updatedAt"
)

// Mapper converts between name-keyed cells (what callers see) and id-keyed
// cells (what storage holds). Build a new one from the current schema at
// every read/write boundary; never keep one across calls.
type Mapper struct {
	byName map[string]*domain.Column
	byID   map[string]*domain.Column
}

// NewMapper snapshots db's columns.
func NewMapper(db *domain.Database) *Mapper {
	m := &Mapper{
		byName: make(map[string]*domain.Column, len(db.Columns)),
		byID:   make(map[string]*domain.Column, len(db.Columns)),
	}
	for i := range db.Columns {
		c := db.Columns[i]
		m.byName[c.Name] = &c
		m.byID[c.ID] = &c
	}
	return m
}

// ColumnByName returns the column with name, or nil.
func (m *Mapper) ColumnByName(name string) *domain.Column { return m.byName[name] }

// ColumnByID returns the column with id, or nil.
func (m *Mapper) ColumnByID(id string) *domain.Column { return m.byID[id] }

// ToIDs keys cells by column id. Unrecognized names are returned separately.
func (m *Mapper) ToIDs(byName map[string]any) (byID map[string]any, unknown []string) {
	byID = make(map[string]any, len(byName))
	for name, v := range byName {
		c, ok := m.byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		byID[c.ID] = v
	}
	return byID, unknown
}

// ToNames keys cells by column name. Cells of columns that no longer exist
// are dropped.
func (m *Mapper) ToNames(byID map[string]any) map[string]any {
	out := make(map[string]any, len(byID))
	for id, v := range byID {
		if c, ok := m.byID[id]; ok {
			out[c.Name] = v
		}
	}
	return out
}

// Denormalize renders row in name-keyed form with metadata fields.
func (m *Mapper) Denormalize(row *domain.Row) map[string]any {
	out := m.ToNames(row.Cells)
	out[MetaID] = row.ID
	out[MetaOrder] = row.Order
	out[MetaVersion] = row.Version
	out[MetaCreatedAt] = row.CreatedAt.UTC().Format(time.RFC3339Nano)
	out[MetaUpdatedAt] = row.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return out
}

package domain

import "time"

// DatabaseKind selects the column/view template used when a database is created.
type DatabaseKind string

const (
	KindTask    DatabaseKind = "task"
	KindEvent   DatabaseKind = "event"
	KindGeneric DatabaseKind = "generic"
)

// Valid reports whether k is a known kind.
func (k DatabaseKind) Valid() bool {
	switch k {
	case KindTask, KindEvent, KindGeneric:
		return true
	}
	return false
}

// ViewType defines how a view lays out rows.
type ViewType string

const (
	ViewTable    ViewType = "table"
	ViewKanban   ViewType = "kanban"
	ViewCalendar ViewType = "calendar"
)

// ViewConfig holds type-specific view settings.
type ViewConfig struct {
	GroupBy      string `json:"groupBy,omitempty"`      // kanban: column id
	DateColumnID string `json:"dateColumnId,omitempty"` // calendar: column id
}

// View is a named display configuration over a database's rows.
type View struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Type   ViewType   `json:"type"`
	Config ViewConfig `json:"config"`
}

// Database is a user-defined table. Columns, views, default view and pinned
// columns are persisted together as the registry record's config.
type Database struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Kind              DatabaseKind `json:"kind"`
	OwnerDocumentID   string       `json:"ownerDocumentId,omitempty"` // empty → standalone
	PhysicalTableName string       `json:"physicalTableName"`
	CreatedBy         string       `json:"createdBy"`
	Columns           []Column     `json:"columns"`
	Views             []View       `json:"views"`
	DefaultView       string       `json:"defaultView"`
	PinnedColumns     []string     `json:"pinnedColumns"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
	DeletedAt         *time.Time   `json:"deletedAt,omitempty"`
}

// Deleted reports whether the database sits in the trash.
func (d *Database) Deleted() bool { return d.DeletedAt != nil }

// DatabaseConfig is the serialized form of a database's schema.
type DatabaseConfig struct {
	Columns       []Column `json:"columns"`
	Views         []View   `json:"views"`
	DefaultView   string   `json:"defaultView"`
	PinnedColumns []string `json:"pinnedColumns"`
}

// Config extracts the schema part of d.
func (d *Database) Config() DatabaseConfig {
	return DatabaseConfig{
		Columns:       d.Columns,
		Views:         d.Views,
		DefaultView:   d.DefaultView,
		PinnedColumns: d.PinnedColumns,
	}
}

// ApplyConfig replaces d's schema with c.
func (d *Database) ApplyConfig(c DatabaseConfig) {
	d.Columns = c.Columns
	d.Views = c.Views
	d.DefaultView = c.DefaultView
	d.PinnedColumns = c.PinnedColumns
}

// ColumnByID returns the column with the given id, or nil.
func (d *Database) ColumnByID(id string) *Column {
	for i := range d.Columns {
		if d.Columns[i].ID == id {
			return &d.Columns[i]
		}
	}
	return nil
}

// ColumnByName returns the column with the given name (case-sensitive), or nil.
func (d *Database) ColumnByName(name string) *Column {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i]
		}
	}
	return nil
}

// NextColumnOrder is one past the highest column order in use.
func (d *Database) NextColumnOrder() int {
	next := 0
	for _, c := range d.Columns {
		if c.Order >= next {
			next = c.Order + 1
		}
	}
	return next
}

// Slots lists the physical slot of every column.
func (d *Database) Slots() []string {
	slots := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		slots[i] = SlotName(c.ID)
	}
	return slots
}

// Document is the owning container a database may be embedded in.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	OwnerUserID string    `json:"ownerUserId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DatabaseFilter narrows ListDatabases.
type DatabaseFilter struct {
	DocumentID     string
	Kind           DatabaseKind
	IncludeDeleted bool
}

package domain

import (
	"context"
	"time"
)

// RegistryStore persists one metadata record per database.
type RegistryStore interface {
	CreateDatabase(ctx context.Context, db *Database) error
	GetDatabase(ctx context.Context, id string) (*Database, error)
	ListDatabases(ctx context.Context, f DatabaseFilter) ([]Database, error)
	UpdateDatabase(ctx context.Context, db *Database) error
	SetDatabaseDeleted(ctx context.Context, id string, at *time.Time) error
	DeleteDatabaseRecord(ctx context.Context, id string) error
}

// DocumentStore persists the documents databases can be embedded in.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
}

// TableProvisioner creates and destroys the physical table behind a database.
// The core calls it and trusts it; how a table is laid out is its business.
type TableProvisioner interface {
	ProvisionTable(ctx context.Context, databaseID string, slots []string) error
	AddSlot(ctx context.Context, databaseID, slot string) error
	DropTable(ctx context.Context, databaseID string) error
}

// RowStore is row-level CRUD against a database's physical table. Cells are
// keyed by column id on both sides of the interface.
type RowStore interface {
	// InsertRows writes all rows in one batch; either all land or none do.
	InsertRows(ctx context.Context, databaseID string, rows []*Row) error
	// AppendRows is InsertRows with orders assigned by the store: the batch
	// gets contiguous values after the current maximum, and concurrent
	// appends never share one.
	AppendRows(ctx context.Context, databaseID string, rows []*Row) error
	GetRow(ctx context.Context, databaseID, rowID string) (*Row, error)
	// ListRows excludes soft-deleted rows and returns the total matching count.
	ListRows(ctx context.Context, databaseID string, q RowQuery) ([]Row, int, error)
	// MaxOrder includes soft-deleted rows so order values are never reused.
	MaxOrder(ctx context.Context, databaseID string) (int64, error)
	// UpdateRow overwrites the stored cells, stamps row.UpdatedAt and bumps
	// the version. When expectedVersion > 0 the write only applies if it
	// matches.
	UpdateRow(ctx context.Context, databaseID string, row *Row, expectedVersion int64) error
	SetRowDeleted(ctx context.Context, databaseID, rowID string, at *time.Time) error
	PurgeRow(ctx context.Context, databaseID, rowID string) error
}

// TrashStore is the soft-delete ledger.
type TrashStore interface {
	AddTrashItem(ctx context.Context, item *TrashItem) error
	GetTrashItem(ctx context.Context, id string) (*TrashItem, error)
	ListTrash(ctx context.Context, ownerUserID string) ([]TrashItem, error)
	ListExpiredTrash(ctx context.Context, before time.Time) ([]TrashItem, error)
	DeleteTrashItem(ctx context.Context, id string) error
	DeleteTrashAt(ctx context.Context, physicalLocation string) error
}

// SnapshotStore is the append-only pre-mutation log.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s *Snapshot) error
	GetSnapshot(ctx context.Context, token string) (*Snapshot, error)
	DeleteSnapshotsFor(ctx context.Context, entityType, entityID string) error
	DeleteSnapshotsAt(ctx context.Context, physicalLocation string) error
}

// BackingStore is everything the core needs from the relational store.
type BackingStore interface {
	RegistryStore
	DocumentStore
	TableProvisioner
	RowStore
	TrashStore
	SnapshotStore
	Close() error
}

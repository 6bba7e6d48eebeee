package storage

import "tablestore/internal/domain"

// Store bundles the SQL-backed stores into one domain.BackingStore.
type Store struct {
	*DB
	*RegistryStore
	*DocumentStore
	*RowStore
	*TrashStore
	*SnapshotStore
}

// NewStore wires every per-concern store to db.
func NewStore(db *DB) *Store {
	return &Store{
		DB:            db,
		RegistryStore: NewRegistryStore(db),
		DocumentStore: NewDocumentStore(db),
		RowStore:      NewRowStore(db),
		TrashStore:    NewTrashStore(db),
		SnapshotStore: NewSnapshotStore(db),
	}
}

var _ domain.BackingStore = (*Store)(nil)

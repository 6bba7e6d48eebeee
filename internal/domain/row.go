package domain

import (
	"encoding/json"
	"time"
)

// Row is a single record in a database. Cells are keyed by column id so that
// renaming a column never touches stored data.
type Row struct {
	ID         string         `json:"id"`
	DatabaseID string         `json:"databaseId"`
	Order      int64          `json:"order"`
	Version    int64          `json:"version"`
	Cells      map[string]any `json:"cells"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  *time.Time     `json:"deletedAt,omitempty"`
}

// RowSortField is a bookkeeping field rows can be sorted by.
type RowSortField string

const (
	SortByOrder     RowSortField = "order"
	SortByCreatedAt RowSortField = "createdAt"
	SortByUpdatedAt RowSortField = "updatedAt"
)

// Valid reports whether f is a known sort field.
func (f RowSortField) Valid() bool {
	switch f {
	case SortByOrder, SortByCreatedAt, SortByUpdatedAt:
		return true
	}
	return false
}

// RowQuery pages through a database's rows.
type RowQuery struct {
	Limit      int
	Offset     int
	SortBy     RowSortField
	Descending bool
}

// TrashItemType is the kind of entity a trash entry refers to.
type TrashItemType string

const (
	TrashDatabase TrashItemType = "database"
	TrashRow      TrashItemType = "row"
	TrashFile     TrashItemType = "file"
)

// ParentInfo is denormalized context shown next to a trash entry.
type ParentInfo struct {
	DatabaseID   string `json:"databaseId,omitempty"`
	DatabaseName string `json:"databaseName,omitempty"`
	DocumentID   string `json:"documentId,omitempty"`
}

// TrashItem is the ledger record written for every soft delete.
type TrashItem struct {
	ID               string        `json:"id"`
	ItemType         TrashItemType `json:"itemType"`
	ItemID           string        `json:"itemId"`
	PhysicalLocation string        `json:"physicalLocation"`
	DisplayName      string        `json:"displayName"`
	ParentInfo       ParentInfo    `json:"parentInfo"`
	OwnerUserID      string        `json:"ownerUserId"`
	DeletedAt        time.Time     `json:"deletedAt"`
}

// OperationKind classifies the mutation a snapshot guards.
type OperationKind string

const (
	OpUpdate     OperationKind = "update"
	OpSoftDelete OperationKind = "soft_delete"
)

// Snapshot entity types.
const (
	EntityDatabase = "database"
	EntityRow      = "row"
)

// Snapshot is an immutable capture of an entity taken before a mutation.
// PriorState is kept byte-for-byte as it was serialized.
type Snapshot struct {
	Token            string          `json:"token"`
	EntityType       string          `json:"entityType"`
	EntityID         string          `json:"entityId"`
	PhysicalLocation string          `json:"physicalLocation"`
	SourceOperation  string          `json:"sourceOperation"`
	OperationKind    OperationKind   `json:"operationKind"`
	PriorState       json.RawMessage `json:"priorState"`
	OwnerUserID      string          `json:"ownerUserId"`
	CapturedAt       time.Time       `json:"capturedAt"`
}

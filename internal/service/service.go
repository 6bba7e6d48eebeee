// Package service holds the business logic behind every tool: the access
// gate, schema management, rows, trash, snapshots and CSV import.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tablestore/internal/domain"
)

// DefaultRetention is how long soft-deleted entities stay in the trash.
const DefaultRetention = 30 * 24 * time.Hour

// Deps are the collaborators shared by all services.
type Deps struct {
	Store     domain.BackingStore
	Emitter   EventEmitter
	Logger    *zap.Logger
	Retention time.Duration
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func (d *Deps) defaults() {
	if d.Emitter == nil {
		d.Emitter = nopEmitter{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Retention <= 0 {
		d.Retention = DefaultRetention
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.New().String() }
	}
}

func (d *Deps) emit(ctx context.Context, databaseID, op string, rowIDs ...string) {
	d.Emitter.Emit(ctx, EventDatabaseChanged, DatabaseChange{
		DatabaseID: databaseID,
		Operation:  op,
		RowIDs:     rowIDs,
	})
}

// Services bundles every service built over one backing store.
type Services struct {
	Gate      *AccessGate
	Snapshots *SnapshotService
	Schema    *SchemaService
	Rows      *RowService
	Trash     *TrashService
	Import    *ImportService
}

// New wires all services to deps.
func New(deps Deps) *Services {
	deps.defaults()
	gate := NewAccessGate(deps.Store, deps.Store, deps.Logger)
	snaps := NewSnapshotService(deps)
	return &Services{
		Gate:      gate,
		Snapshots: snaps,
		Schema:    NewSchemaService(deps, gate, snaps),
		Rows:      NewRowService(deps, gate, snaps),
		Trash:     NewTrashService(deps, gate, snaps),
		Import:    NewImportService(deps, gate),
	}
}

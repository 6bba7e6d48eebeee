package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tablestore/internal/domain"
)

// SnapshotStore keeps the append-only pre-mutation log. Rows are never
// updated once written; they only go away when their entity is purged.
type SnapshotStore struct {
	db *DB
}

func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// SaveSnapshot appends a snapshot. PriorState is stored verbatim.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	_, err := s.db.exec(ctx,
		`INSERT INTO snapshots (token, entity_type, entity_id, physical_location, source_operation,
			operation_kind, prior_state, owner_user_id, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Token, snap.EntityType, snap.EntityID, snap.PhysicalLocation, snap.SourceOperation,
		string(snap.OperationKind), string(snap.PriorState), snap.OwnerUserID, snap.CapturedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, token string) (*domain.Snapshot, error) {
	var (
		snap  domain.Snapshot
		kind  string
		prior string
	)
	err := s.db.queryRow(ctx,
		`SELECT token, entity_type, entity_id, physical_location, source_operation,
			operation_kind, prior_state, owner_user_id, captured_at
		 FROM snapshots WHERE token = ?`, token,
	).Scan(&snap.Token, &snap.EntityType, &snap.EntityID, &snap.PhysicalLocation, &snap.SourceOperation,
		&kind, &prior, &snap.OwnerUserID, &snap.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("snapshot not found: %s", token)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap.OperationKind = domain.OperationKind(kind)
	snap.PriorState = []byte(prior)
	return &snap, nil
}

func (s *SnapshotStore) DeleteSnapshotsFor(ctx context.Context, entityType, entityID string) error {
	_, err := s.db.exec(ctx,
		`DELETE FROM snapshots WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
	return err
}

func (s *SnapshotStore) DeleteSnapshotsAt(ctx context.Context, physicalLocation string) error {
	_, err := s.db.exec(ctx, `DELETE FROM snapshots WHERE physical_location = ?`, physicalLocation)
	return err
}

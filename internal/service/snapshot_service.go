package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tablestore/internal/domain"
)

// SnapshotService writes the append-only pre-mutation log and hands prior
// state back on request. It never applies a restore itself.
type SnapshotService struct {
	store domain.SnapshotStore
	now   func() time.Time
	newID func() string
	log   *zap.Logger
}

// NewSnapshotService creates a SnapshotService.
func NewSnapshotService(deps Deps) *SnapshotService {
	deps.defaults()
	return &SnapshotService{
		store: deps.Store,
		now:   deps.Now,
		newID: deps.NewID,
		log:   deps.Logger,
	}
}

// CaptureRow snapshots row before op mutates it and returns the token.
func (s *SnapshotService) CaptureRow(ctx context.Context, userID, op string, kind domain.OperationKind, row *domain.Row) (string, error) {
	return s.save(ctx, userID, op, kind, domain.EntityRow, row.ID, domain.PhysicalTableName(row.DatabaseID), row)
}

// CaptureDatabase snapshots the registry record of db before op mutates it.
func (s *SnapshotService) CaptureDatabase(ctx context.Context, userID, op string, kind domain.OperationKind, db *domain.Database) (string, error) {
	return s.save(ctx, userID, op, kind, domain.EntityDatabase, db.ID, db.PhysicalTableName, db)
}

func (s *SnapshotService) save(ctx context.Context, userID, op string, kind domain.OperationKind,
	entityType, entityID, location string, prior any) (string, error) {
	state, err := json.Marshal(prior)
	if err != nil {
		return "", fmt.Errorf("serialize %s %s: %w", entityType, entityID, err)
	}
	snap := &domain.Snapshot{
		Token:            s.newID(),
		EntityType:       entityType,
		EntityID:         entityID,
		PhysicalLocation: location,
		SourceOperation:  op,
		OperationKind:    kind,
		PriorState:       state,
		OwnerUserID:      userID,
		CapturedAt:       s.now(),
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return "", domain.Backing("save snapshot", err)
	}
	s.log.Debug("snapshot captured",
		zap.String("token", snap.Token),
		zap.String("entityType", entityType),
		zap.String("entityId", entityID),
		zap.String("operation", op))
	return snap.Token, nil
}

// Restore returns the snapshot behind token. Only the user who triggered
// the mutation may read it.
func (s *SnapshotService) Restore(ctx context.Context, userID, token string) (*domain.Snapshot, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	snap, err := s.store.GetSnapshot(ctx, token)
	if err != nil {
		return nil, domain.Backing("load snapshot", err)
	}
	if snap.OwnerUserID != userID {
		return nil, domain.AccessDenied("access denied to snapshot %s", token)
	}
	return snap, nil
}

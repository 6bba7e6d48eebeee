package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"tablestore/internal/domain"
)

const purgeJob = "purge"

// ErrPurgeRunning is returned by PurgeExpired while another purge is in
// flight.
var ErrPurgeRunning = errors.New("purge already running")

// ─────────────────────────────────────────────────────────────
// TrashService: soft delete and retention purge
// ─────────────────────────────────────────────────────────────

// TrashService moves databases and rows in and out of the trash. A soft
// delete stamps deletedAt, writes a ledger entry and snapshots the entity;
// a purge removes all three for good once retention has elapsed.
type TrashService struct {
	Deps
	gate    *AccessGate
	snaps   *SnapshotService
	running runningJobsGuard
}

// NewTrashService creates a TrashService.
func NewTrashService(deps Deps, gate *AccessGate, snaps *SnapshotService) *TrashService {
	deps.defaults()
	return &TrashService{Deps: deps, gate: gate, snaps: snaps}
}

// DeletedEntity reports one soft delete.
type DeletedEntity struct {
	ID            string `json:"id"`
	TrashItemID   string `json:"trashItemId"`
	SnapshotToken string `json:"snapshotToken"`
}

// PurgeReport counts what a purge removed.
type PurgeReport struct {
	Databases int `json:"databases"`
	Rows      int `json:"rows"`
	Files     int `json:"files"`
	Failed    int `json:"failed"`
}

// DeleteDatabase moves a database to the trash. It refuses unless confirm
// is set.
func (s *TrashService) DeleteDatabase(ctx context.Context, userID, databaseID string, confirm bool) (*DeletedEntity, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	if !confirm {
		return nil, domain.ConfirmationRequired(
			"deleting database %q moves it and all its rows to the trash; call again with confirm=true", db.Name)
	}

	token, err := s.snaps.CaptureDatabase(ctx, userID, "deleteDatabase", domain.OpSoftDelete, db)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	if err := s.Store.SetDatabaseDeleted(ctx, databaseID, &now); err != nil {
		return nil, domain.Backing("delete database", err)
	}
	item := &domain.TrashItem{
		ID:               s.NewID(),
		ItemType:         domain.TrashDatabase,
		ItemID:           databaseID,
		PhysicalLocation: db.PhysicalTableName,
		DisplayName:      db.Name,
		ParentInfo:       domain.ParentInfo{DocumentID: db.OwnerDocumentID},
		OwnerUserID:      userID,
		DeletedAt:        now,
	}
	if err := s.Store.AddTrashItem(ctx, item); err != nil {
		if uerr := s.Store.SetDatabaseDeleted(context.WithoutCancel(ctx), databaseID, nil); uerr != nil {
			s.Logger.Error("undo database delete failed", zap.String("databaseId", databaseID), zap.Error(uerr))
		}
		return nil, domain.Backing("record trash item", err)
	}

	s.Logger.Info("database moved to trash", zap.String("databaseId", databaseID))
	s.emit(ctx, databaseID, "deleteDatabase")
	return &DeletedEntity{ID: databaseID, TrashItemID: item.ID, SnapshotToken: token}, nil
}

// DeleteRows moves rows to the trash. Every id is checked before anything
// is written; a missing or already deleted row fails the whole call. If a
// write fails midway, the rows already trashed are returned along with the
// error so their snapshot tokens are not lost; the failing row is left live.
func (s *TrashService) DeleteRows(ctx context.Context, userID, databaseID string, rowIDs []string) ([]DeletedEntity, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	if len(rowIDs) == 0 {
		return nil, domain.Validation("rowIds must not be empty")
	}

	seen := make(map[string]bool, len(rowIDs))
	rows := make([]*domain.Row, 0, len(rowIDs))
	for _, id := range rowIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, err := s.Store.GetRow(ctx, databaseID, id)
		if err != nil {
			return nil, domain.Backing("load row", err)
		}
		if r.DeletedAt != nil {
			return nil, domain.NotFound("row not found: %s", id)
		}
		rows = append(rows, r)
	}

	out := make([]DeletedEntity, 0, len(rows))
	for _, r := range rows {
		token, err := s.snaps.CaptureRow(ctx, userID, "deleteRows", domain.OpSoftDelete, r)
		if err != nil {
			s.emitDeleted(ctx, databaseID, out)
			return out, err
		}
		now := s.Now()
		if err := s.Store.SetRowDeleted(ctx, databaseID, r.ID, &now); err != nil {
			s.emitDeleted(ctx, databaseID, out)
			return out, domain.Backing("delete row", err)
		}
		item := &domain.TrashItem{
			ID:               s.NewID(),
			ItemType:         domain.TrashRow,
			ItemID:           r.ID,
			PhysicalLocation: db.PhysicalTableName,
			DisplayName:      rowDisplayName(db, r),
			ParentInfo: domain.ParentInfo{
				DatabaseID:   db.ID,
				DatabaseName: db.Name,
				DocumentID:   db.OwnerDocumentID,
			},
			OwnerUserID: userID,
			DeletedAt:   now,
		}
		if err := s.Store.AddTrashItem(ctx, item); err != nil {
			if uerr := s.Store.SetRowDeleted(context.WithoutCancel(ctx), databaseID, r.ID, nil); uerr != nil {
				s.Logger.Error("undo row delete failed", zap.String("rowId", r.ID), zap.Error(uerr))
			}
			s.emitDeleted(ctx, databaseID, out)
			return out, domain.Backing("record trash item", err)
		}
		out = append(out, DeletedEntity{ID: r.ID, TrashItemID: item.ID, SnapshotToken: token})
	}

	s.emitDeleted(ctx, databaseID, out)
	return out, nil
}

func (s *TrashService) emitDeleted(ctx context.Context, databaseID string, deleted []DeletedEntity) {
	if len(deleted) == 0 {
		return
	}
	ids := make([]string, len(deleted))
	for i, d := range deleted {
		ids[i] = d.ID
	}
	s.Logger.Info("rows moved to trash", zap.String("databaseId", databaseID), zap.Int("count", len(deleted)))
	s.emit(ctx, databaseID, "deleteRows", ids...)
}

// rowDisplayName prefers a Title or Name text column and falls back to the
// first non-empty text cell in column order.
func rowDisplayName(db *domain.Database, r *domain.Row) string {
	for _, name := range []string{"Title", "Name"} {
		for _, c := range db.Columns {
			if strings.EqualFold(c.Name, name) {
				if s, ok := r.Cells[c.ID].(string); ok && strings.TrimSpace(s) != "" {
					return s
				}
			}
		}
	}
	for _, c := range db.Columns {
		if c.Type.HasChoices() {
			continue
		}
		if s, ok := r.Cells[c.ID].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return "Untitled row"
}

// RecordFileDeletion writes a ledger entry for a file removed elsewhere.
// Restoring or purging it only touches the ledger.
func (s *TrashService) RecordFileDeletion(ctx context.Context, userID, fileID, displayName, location string, parent domain.ParentInfo) (*domain.TrashItem, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	if fileID == "" {
		return nil, domain.Validation("file id is required")
	}
	if parent.DatabaseID != "" {
		db, err := s.gate.Authorize(ctx, userID, parent.DatabaseID)
		if err != nil {
			return nil, err
		}
		if parent.DatabaseName == "" {
			parent.DatabaseName = db.Name
		}
	}
	item := &domain.TrashItem{
		ID:               s.NewID(),
		ItemType:         domain.TrashFile,
		ItemID:           fileID,
		PhysicalLocation: location,
		DisplayName:      displayName,
		ParentInfo:       parent,
		OwnerUserID:      userID,
		DeletedAt:        s.Now(),
	}
	if err := s.Store.AddTrashItem(ctx, item); err != nil {
		return nil, domain.Backing("record trash item", err)
	}
	return item, nil
}

// ListTrash returns userID's trash, newest first.
func (s *TrashService) ListTrash(ctx context.Context, userID string) ([]domain.TrashItem, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	items, err := s.Store.ListTrash(ctx, userID)
	if err != nil {
		return nil, domain.Backing("list trash", err)
	}
	return items, nil
}

// Restore takes an item back out of the trash. A row cannot come back
// while its database is still deleted.
func (s *TrashService) Restore(ctx context.Context, userID, trashItemID string) (*domain.TrashItem, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	item, err := s.Store.GetTrashItem(ctx, trashItemID)
	if err != nil {
		return nil, domain.Backing("load trash item", err)
	}
	if item.OwnerUserID != userID {
		return nil, domain.AccessDenied("access denied to trash item %s", trashItemID)
	}

	var databaseID string
	switch item.ItemType {
	case domain.TrashDatabase:
		databaseID = item.ItemID
		if _, err := s.gate.Authorize(ctx, userID, databaseID); err != nil {
			return nil, err
		}
		if err := s.Store.SetDatabaseDeleted(ctx, databaseID, nil); err != nil {
			return nil, domain.Backing("restore database", err)
		}
	case domain.TrashRow:
		databaseID = item.ParentInfo.DatabaseID
		db, err := s.gate.Authorize(ctx, userID, databaseID)
		if err != nil {
			return nil, err
		}
		if db.Deleted() {
			return nil, domain.Validation("database %q is in the trash; restore it first", db.Name)
		}
		if err := s.Store.SetRowDeleted(ctx, databaseID, item.ItemID, nil); err != nil {
			return nil, domain.Backing("restore row", err)
		}
	case domain.TrashFile:
	default:
		return nil, domain.Validation("unknown trash item type %q", item.ItemType)
	}

	if err := s.Store.DeleteTrashItem(ctx, item.ID); err != nil {
		return nil, domain.Backing("clear trash item", err)
	}
	s.Logger.Info("trash item restored",
		zap.String("trashItemId", item.ID),
		zap.String("itemType", string(item.ItemType)),
		zap.String("itemId", item.ItemID))
	if databaseID != "" {
		if item.ItemType == domain.TrashRow {
			s.emit(ctx, databaseID, "restoreRow", item.ItemID)
		} else {
			s.emit(ctx, databaseID, "restoreDatabase")
		}
	}
	return item, nil
}

// PurgeExpired permanently removes every trash item older than the
// retention window. Databases go first; rows whose table was just dropped
// are skipped. One failure does not stop the rest; all failures are
// returned joined.
func (s *TrashService) PurgeExpired(ctx context.Context) (*PurgeReport, error) {
	if !s.running.TryLock(purgeJob) {
		return nil, ErrPurgeRunning
	}
	defer s.running.Unlock(purgeJob)

	cutoff := s.Now().Add(-s.Retention)
	items, err := s.Store.ListExpiredTrash(ctx, cutoff)
	if err != nil {
		return nil, domain.Backing("list expired trash", err)
	}

	report := &PurgeReport{}
	dropped := make(map[string]bool)
	var errs []error
	for _, item := range items {
		log := s.Logger.With(
			zap.String("trashItemId", item.ID),
			zap.String("itemType", string(item.ItemType)),
			zap.String("itemId", item.ItemID))

		var err error
		switch item.ItemType {
		case domain.TrashDatabase:
			if err = s.purgeDatabase(ctx, item); err == nil {
				dropped[item.PhysicalLocation] = true
				report.Databases++
			}
		case domain.TrashRow:
			if dropped[item.PhysicalLocation] {
				continue
			}
			if err = s.purgeRow(ctx, item); err == nil {
				report.Rows++
			}
		default:
			if err = s.Store.DeleteTrashItem(ctx, item.ID); err == nil {
				report.Files++
			}
		}
		if err != nil {
			log.Error("purge failed", zap.Error(err))
			report.Failed++
			errs = append(errs, err)
		}
	}

	s.Logger.Info("trash purged",
		zap.Time("cutoff", cutoff),
		zap.Int("databases", report.Databases),
		zap.Int("rows", report.Rows),
		zap.Int("files", report.Files),
		zap.Int("failed", report.Failed))
	if len(errs) > 0 {
		return report, domain.Backing("purge trash", errors.Join(errs...))
	}
	return report, nil
}

// WaitPurge blocks until a running purge returns or ctx is done.
func (s *TrashService) WaitPurge(ctx context.Context) {
	s.running.WaitAll(ctx)
}

func (s *TrashService) purgeDatabase(ctx context.Context, item domain.TrashItem) error {
	if err := s.Store.DropTable(ctx, item.ItemID); err != nil {
		return err
	}
	if err := s.Store.DeleteDatabaseRecord(ctx, item.ItemID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := s.Store.DeleteSnapshotsAt(ctx, item.PhysicalLocation); err != nil {
		return err
	}
	// Row entries of this database go with it.
	return s.Store.DeleteTrashAt(ctx, item.PhysicalLocation)
}

func (s *TrashService) purgeRow(ctx context.Context, item domain.TrashItem) error {
	if err := s.Store.PurgeRow(ctx, item.ParentInfo.DatabaseID, item.ItemID); err != nil {
		return err
	}
	if err := s.Store.DeleteSnapshotsFor(ctx, domain.EntityRow, item.ItemID); err != nil {
		return err
	}
	return s.Store.DeleteTrashItem(ctx, item.ID)
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tablestore/internal/domain"
)

// TrashStore implements domain.TrashStore over the trash_items table.
type TrashStore struct {
	db *DB
}

// NewTrashStore creates a new TrashStore.
func NewTrashStore(db *DB) *TrashStore {
	return &TrashStore{db: db}
}

const trashColumns = `id, item_type, item_id, physical_location, display_name,
	parent_info_json, owner_user_id, deleted_at`

func (s *TrashStore) AddTrashItem(ctx context.Context, item *domain.TrashItem) error {
	parent, err := json.Marshal(item.ParentInfo)
	if err != nil {
		return fmt.Errorf("marshal parent info: %w", err)
	}
	_, err = s.db.exec(ctx,
		`INSERT INTO trash_items (`+trashColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.ItemType), item.ItemID, item.PhysicalLocation, item.DisplayName,
		string(parent), item.OwnerUserID, item.DeletedAt.UTC(),
	)
	return err
}

func (s *TrashStore) GetTrashItem(ctx context.Context, id string) (*domain.TrashItem, error) {
	item, err := scanTrashItem(s.db.queryRow(ctx,
		`SELECT `+trashColumns+` FROM trash_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("trash item not found: %s", id)
	}
	return item, err
}

// ListTrash returns an owner's trash, newest first.
func (s *TrashStore) ListTrash(ctx context.Context, ownerUserID string) ([]domain.TrashItem, error) {
	return s.list(ctx,
		`SELECT `+trashColumns+` FROM trash_items WHERE owner_user_id = ? ORDER BY deleted_at DESC`,
		ownerUserID)
}

// ListExpiredTrash returns every item deleted before the cutoff. Databases
// sort ahead of rows so whole tables are purged first.
func (s *TrashStore) ListExpiredTrash(ctx context.Context, before time.Time) ([]domain.TrashItem, error) {
	return s.list(ctx,
		`SELECT `+trashColumns+` FROM trash_items WHERE deleted_at < ?
		 ORDER BY CASE item_type WHEN 'database' THEN 0 ELSE 1 END, deleted_at ASC`,
		before.UTC())
}

func (s *TrashStore) DeleteTrashItem(ctx context.Context, id string) error {
	_, err := s.db.exec(ctx, `DELETE FROM trash_items WHERE id = ?`, id)
	return err
}

func (s *TrashStore) DeleteTrashAt(ctx context.Context, physicalLocation string) error {
	_, err := s.db.exec(ctx, `DELETE FROM trash_items WHERE physical_location = ?`, physicalLocation)
	return err
}

func (s *TrashStore) list(ctx context.Context, q string, args ...any) ([]domain.TrashItem, error) {
	rows, err := s.db.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TrashItem
	for rows.Next() {
		item, err := scanTrashItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	return result, rows.Err()
}

func scanTrashItem(sc scanner) (*domain.TrashItem, error) {
	var (
		item     domain.TrashItem
		itemType string
		parent   string
	)
	if err := sc.Scan(&item.ID, &itemType, &item.ItemID, &item.PhysicalLocation, &item.DisplayName,
		&parent, &item.OwnerUserID, &item.DeletedAt); err != nil {
		return nil, err
	}
	item.ItemType = domain.TrashItemType(itemType)
	if err := json.Unmarshal([]byte(parent), &item.ParentInfo); err != nil {
		return nil, fmt.Errorf("decode parent info of trash item %s: %w", item.ID, err)
	}
	return &item, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tablestore/internal/domain"
)

// RegistryStore implements domain.RegistryStore: one metadata record per database.
type RegistryStore struct {
	db *DB
}

// NewRegistryStore creates a new RegistryStore.
func NewRegistryStore(db *DB) *RegistryStore {
	return &RegistryStore{db: db}
}

const registryColumns = `id, owner_document_id, physical_table_name, name, kind, created_by,
	config_json, created_at, updated_at, deleted_at`

func (s *RegistryStore) CreateDatabase(ctx context.Context, d *domain.Database) error {
	cfg, err := json.Marshal(d.Config())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = s.db.exec(ctx,
		`INSERT INTO database_registry (`+registryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, nullString(d.OwnerDocumentID), d.PhysicalTableName, d.Name, string(d.Kind), d.CreatedBy,
		string(cfg), d.CreatedAt.UTC(), d.UpdatedAt.UTC(), nullTime(d.DeletedAt),
	)
	return err
}

func (s *RegistryStore) GetDatabase(ctx context.Context, id string) (*domain.Database, error) {
	d, err := scanDatabase(s.db.queryRow(ctx,
		`SELECT `+registryColumns+` FROM database_registry WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("database not found: %s", id)
	}
	return d, err
}

func (s *RegistryStore) ListDatabases(ctx context.Context, f domain.DatabaseFilter) ([]domain.Database, error) {
	var where []string
	var args []any
	if !f.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if f.DocumentID != "" {
		where = append(where, "owner_document_id = ?")
		args = append(args, f.DocumentID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	q := `SELECT ` + registryColumns + ` FROM database_registry`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC"

	rows, err := s.db.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Database
	for rows.Next() {
		d, err := scanDatabase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (s *RegistryStore) UpdateDatabase(ctx context.Context, d *domain.Database) error {
	cfg, err := json.Marshal(d.Config())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	d.UpdatedAt = time.Now().UTC()
	res, err := s.db.exec(ctx,
		`UPDATE database_registry SET name = ?, config_json = ?, updated_at = ? WHERE id = ?`,
		d.Name, string(cfg), d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "database", d.ID)
}

func (s *RegistryStore) SetDatabaseDeleted(ctx context.Context, id string, at *time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE database_registry SET deleted_at = ?, updated_at = ? WHERE id = ?`,
		nullTime(at), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "database", id)
}

func (s *RegistryStore) DeleteDatabaseRecord(ctx context.Context, id string) error {
	_, err := s.db.exec(ctx, `DELETE FROM database_registry WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDatabase(sc scanner) (*domain.Database, error) {
	var (
		d         domain.Database
		docID     sql.NullString
		kind      string
		cfgJSON   string
		deletedAt sql.NullTime
	)
	if err := sc.Scan(&d.ID, &docID, &d.PhysicalTableName, &d.Name, &kind, &d.CreatedBy,
		&cfgJSON, &d.CreatedAt, &d.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	d.OwnerDocumentID = docID.String
	d.Kind = domain.DatabaseKind(kind)
	if deletedAt.Valid {
		t := deletedAt.Time
		d.DeletedAt = &t
	}
	var cfg domain.DatabaseConfig
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode config of database %s: %w", d.ID, err)
	}
	d.ApplyConfig(cfg)
	return &d, nil
}

// ── Documents ──────────────────────────────────────────────

// DocumentStore implements domain.DocumentStore.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.exec(ctx,
		`INSERT INTO documents (id, title, owner_user_id, created_at) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.OwnerUserID, doc.CreatedAt.UTC(),
	)
	return err
}

func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc := &domain.Document{}
	err := s.db.queryRow(ctx,
		`SELECT id, title, owner_user_id, created_at FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.OwnerUserID, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ── helpers ────────────────────────────────────────────────

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func expectAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("%s not found: %s", what, id)
	}
	return nil
}

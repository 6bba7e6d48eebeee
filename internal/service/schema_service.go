package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"tablestore/internal/domain"
	"tablestore/internal/schema"
)

// ─────────────────────────────────────────────────────────────
// SchemaService: databases and their columns
// ─────────────────────────────────────────────────────────────

// SchemaService owns database and column definitions. Every schema change
// snapshots the registry record first.
type SchemaService struct {
	Deps
	gate  *AccessGate
	snaps *SnapshotService
}

// NewSchemaService creates a SchemaService.
func NewSchemaService(deps Deps, gate *AccessGate, snaps *SnapshotService) *SchemaService {
	deps.defaults()
	return &SchemaService{Deps: deps, gate: gate, snaps: snaps}
}

// CreateDatabaseInput is the argument of CreateDatabase.
type CreateDatabaseInput struct {
	Name       string               `json:"name"`
	Kind       domain.DatabaseKind  `json:"kind"`
	DocumentID string               `json:"documentId,omitempty"`
	Columns    []schema.ColumnInput `json:"columns,omitempty"`
}

// ColumnChange is a partial column update. Nil fields are left alone.
type ColumnChange struct {
	Name     *string              `json:"name,omitempty"`
	Type     *domain.ColumnType   `json:"type,omitempty"`
	Visible  *bool                `json:"visible,omitempty"`
	Required *bool                `json:"required,omitempty"`
	Width    *int                 `json:"width,omitempty"`
	Color    *string              `json:"color,omitempty"`
	Options  *schema.OptionsInput `json:"options,omitempty"`
}

// SchemaChange reports a committed schema mutation and its undo token.
type SchemaChange struct {
	Column        *domain.Column `json:"column,omitempty"`
	SnapshotToken string         `json:"snapshotToken"`
}

// CreateDatabase registers a database and provisions its physical table.
// If provisioning fails the registry record is removed again, so metadata
// never outlives a table that was never created.
func (s *SchemaService) CreateDatabase(ctx context.Context, userID string, in CreateDatabaseInput) (*domain.Database, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Validation("database name is required")
	}
	kind := in.Kind
	if kind == "" {
		kind = domain.KindGeneric
	}
	if !kind.Valid() {
		return nil, domain.Validation("unknown database kind %q", in.Kind)
	}
	if in.DocumentID != "" {
		if _, err := s.gate.AuthorizeDocument(ctx, userID, in.DocumentID); err != nil {
			return nil, err
		}
	}

	tpl, err := s.template(kind, in.Columns)
	if err != nil {
		return nil, err
	}

	id := s.NewID()
	now := s.Now()
	db := &domain.Database{
		ID:                id,
		Name:              name,
		Kind:              kind,
		OwnerDocumentID:   in.DocumentID,
		PhysicalTableName: domain.PhysicalTableName(id),
		CreatedBy:         userID,
		Columns:           tpl.Columns,
		Views:             tpl.Views,
		DefaultView:       tpl.DefaultView,
		PinnedColumns:     tpl.PinnedColumns,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	log := s.Logger.With(zap.String("databaseId", id))
	if err := s.Store.CreateDatabase(ctx, db); err != nil {
		return nil, domain.Backing("create database record", err)
	}
	if err := s.Store.ProvisionTable(ctx, id, db.Slots()); err != nil {
		log.Error("provision failed, removing registry record", zap.Error(err))
		if cerr := s.Store.DeleteDatabaseRecord(context.WithoutCancel(ctx), id); cerr != nil {
			log.Error("compensating delete failed", zap.Error(cerr))
			return nil, domain.Backing("provision table", errors.Join(err, cerr))
		}
		return nil, domain.Backing("provision table", err)
	}

	log.Info("database created",
		zap.String("kind", string(kind)),
		zap.Int("columns", len(db.Columns)))
	s.emit(ctx, id, "createDatabase")
	return db, nil
}

// template picks the initial schema for kind. Caller columns on task and
// event databases are appended after the built-in ones.
func (s *SchemaService) template(kind domain.DatabaseKind, extra []schema.ColumnInput) (schema.Template, error) {
	newID := schema.IDFunc(s.NewID)
	var tpl schema.Template
	switch kind {
	case domain.KindTask:
		tpl = schema.TaskTemplate(newID)
	case domain.KindEvent:
		tpl = schema.EventTemplate(newID)
	default:
		return schema.GenericTemplate(newID, extra)
	}
	for _, in := range extra {
		c, err := schema.BuildColumn(newID(), in, len(tpl.Columns))
		if err != nil {
			return schema.Template{}, err
		}
		tpl.Columns = append(tpl.Columns, c)
	}
	return tpl, schema.CheckUniqueNames(tpl.Columns)
}

// ListDatabases returns the live databases userID can access.
func (s *SchemaService) ListDatabases(ctx context.Context, userID, documentID string, kind domain.DatabaseKind) ([]domain.Database, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	if kind != "" && !kind.Valid() {
		return nil, domain.Validation("unknown database kind %q", kind)
	}
	all, err := s.Store.ListDatabases(ctx, domain.DatabaseFilter{DocumentID: documentID, Kind: kind})
	if err != nil {
		return nil, domain.Backing("list databases", err)
	}
	out := make([]domain.Database, 0, len(all))
	for i := range all {
		if s.gate.Allowed(ctx, userID, &all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// GetSchema returns the database definition.
func (s *SchemaService) GetSchema(ctx context.Context, userID, databaseID string) (*domain.Database, error) {
	return s.gate.AuthorizeLive(ctx, userID, databaseID)
}

// AddColumn appends a column. The physical slot is added before the
// registry record so a failure never leaves a column without storage.
func (s *SchemaService) AddColumn(ctx context.Context, userID, databaseID string, in schema.ColumnInput) (*SchemaChange, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	col, err := schema.BuildColumn(s.NewID(), in, db.NextColumnOrder())
	if err != nil {
		return nil, err
	}
	if db.ColumnByName(col.Name) != nil {
		return nil, domain.Validation("column %q already exists", col.Name)
	}

	token, err := s.snaps.CaptureDatabase(ctx, userID, "addColumn", domain.OpUpdate, db)
	if err != nil {
		return nil, err
	}
	if err := s.Store.AddSlot(ctx, databaseID, domain.SlotName(col.ID)); err != nil {
		return nil, domain.Backing("add column slot", err)
	}
	db.Columns = append(db.Columns, col)
	if err := s.Store.UpdateDatabase(ctx, db); err != nil {
		return nil, domain.Backing("update database", err)
	}

	s.Logger.Info("column added",
		zap.String("databaseId", databaseID),
		zap.String("columnId", col.ID),
		zap.String("type", string(col.Type)))
	s.emit(ctx, databaseID, "addColumn")
	return &SchemaChange{Column: &col, SnapshotToken: token}, nil
}

// UpdateColumn applies a partial change to a column. The type is fixed at
// creation; new options replace the old ones wholesale.
func (s *SchemaService) UpdateColumn(ctx context.Context, userID, databaseID, columnID string, ch ColumnChange) (*SchemaChange, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	col := db.ColumnByID(columnID)
	if col == nil {
		return nil, domain.NotFound("column not found: %s", columnID)
	}
	if ch.Type != nil && *ch.Type != col.Type {
		return nil, domain.Validation("column type is immutable (%s)", col.Type)
	}

	updated := *col
	if ch.Name != nil {
		name := strings.TrimSpace(*ch.Name)
		if name == "" {
			return nil, domain.Validation("column name is required")
		}
		if other := db.ColumnByName(name); other != nil && other.ID != columnID {
			return nil, domain.Validation("column %q already exists", name)
		}
		updated.Name = name
	}
	if ch.Visible != nil {
		updated.Visible = *ch.Visible
	}
	if ch.Required != nil {
		updated.Required = *ch.Required
	}
	if ch.Width != nil {
		if *ch.Width <= 0 {
			return nil, domain.Validation("column width must be positive")
		}
		updated.Width = *ch.Width
	}
	if ch.Color != nil {
		updated.Color = *ch.Color
	}
	if ch.Options != nil {
		opts, err := schema.BuildOptions(col.Type, ch.Options)
		if err != nil {
			return nil, err
		}
		updated.Options = opts
	}

	token, err := s.snaps.CaptureDatabase(ctx, userID, "updateColumn", domain.OpUpdate, db)
	if err != nil {
		return nil, err
	}
	*col = updated
	if err := s.Store.UpdateDatabase(ctx, db); err != nil {
		return nil, domain.Backing("update database", err)
	}

	s.Logger.Info("column updated", zap.String("databaseId", databaseID), zap.String("columnId", columnID))
	s.emit(ctx, databaseID, "updateColumn")
	return &SchemaChange{Column: &updated, SnapshotToken: token}, nil
}

// DeleteColumn drops the column definition. Its physical slot stays; the
// values in it become unreachable. Views and pins that pointed at the
// column are cleared.
func (s *SchemaService) DeleteColumn(ctx context.Context, userID, databaseID, columnID string) (*SchemaChange, error) {
	db, err := s.gate.AuthorizeLive(ctx, userID, databaseID)
	if err != nil {
		return nil, err
	}
	if db.ColumnByID(columnID) == nil {
		return nil, domain.NotFound("column not found: %s", columnID)
	}

	token, err := s.snaps.CaptureDatabase(ctx, userID, "deleteColumn", domain.OpUpdate, db)
	if err != nil {
		return nil, err
	}

	cols := make([]domain.Column, 0, len(db.Columns)-1)
	for _, c := range db.Columns {
		if c.ID != columnID {
			cols = append(cols, c)
		}
	}
	db.Columns = cols

	pinned := make([]string, 0, len(db.PinnedColumns))
	for _, id := range db.PinnedColumns {
		if id != columnID {
			pinned = append(pinned, id)
		}
	}
	db.PinnedColumns = pinned

	for i := range db.Views {
		if db.Views[i].Config.GroupBy == columnID {
			db.Views[i].Config.GroupBy = ""
		}
		if db.Views[i].Config.DateColumnID == columnID {
			db.Views[i].Config.DateColumnID = ""
		}
	}

	if err := s.Store.UpdateDatabase(ctx, db); err != nil {
		return nil, domain.Backing("update database", err)
	}
	s.Logger.Info("column deleted", zap.String("databaseId", databaseID), zap.String("columnId", columnID))
	s.emit(ctx, databaseID, "deleteColumn")
	return &SchemaChange{SnapshotToken: token}, nil
}

// CreateDocument records a document owned by userID that databases can be
// embedded in.
func (s *SchemaService) CreateDocument(ctx context.Context, userID, title string) (*domain.Document, error) {
	if userID == "" {
		return nil, domain.AccessDenied("no user identity supplied")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.Validation("document title is required")
	}
	doc := &domain.Document{
		ID:          s.NewID(),
		Title:       title,
		OwnerUserID: userID,
		CreatedAt:   s.Now(),
	}
	if err := s.Store.CreateDocument(ctx, doc); err != nil {
		return nil, domain.Backing("create document", err)
	}
	s.Logger.Info("document created", zap.String("documentId", doc.ID))
	return doc, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL connection behind the backing store.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	log     *zap.Logger
}

// Options configures Open.
type Options struct {
	DriverName   string // database/sql driver name
	DSN          string
	Dialect      Dialect
	MaxOpenConns int
	Logger       *zap.Logger
}

// Open connects to a SQL engine and runs migrations. The driver must already
// be registered with database/sql.
func Open(ctx context.Context, opts Options) (*DB, error) {
	conn, err := sql.Open(opts.DriverName, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.DriverName, err)
	}
	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db := &DB{conn: conn, dialect: opts.Dialect, log: logger}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (or creates) the SQLite file at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(ctx, Options{
		DriverName: "sqlite",
		DSN:        path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		Dialect:    SQLite,
		// SQLite only supports one writer; a single connection avoids SQLITE_BUSY
		MaxOpenConns: 1,
		Logger:       logger,
	})
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.dialect.Rebind(q), args...)
}

func (db *DB) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, db.dialect.Rebind(q), args...)
}

func (db *DB) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, db.dialect.Rebind(q), args...)
}

func (db *DB) migrate(ctx context.Context) error {
	d := db.dialect
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id ` + d.IDType + ` PRIMARY KEY,
			title TEXT NOT NULL,
			owner_user_id ` + d.IDType + ` NOT NULL,
			created_at ` + d.TimeType + ` NOT NULL
		)`,
		// One registry record per database; config holds columns/views/defaultView/pinnedColumns
		`CREATE TABLE IF NOT EXISTS database_registry (
			id ` + d.IDType + ` PRIMARY KEY,
			owner_document_id ` + d.IDType + ` NULL,
			physical_table_name ` + d.IDType + ` NOT NULL,
			name TEXT NOT NULL,
			kind VARCHAR(16) NOT NULL,
			created_by ` + d.IDType + ` NOT NULL,
			config_json ` + d.LongText + ` NOT NULL,
			created_at ` + d.TimeType + ` NOT NULL,
			updated_at ` + d.TimeType + ` NOT NULL,
			deleted_at ` + d.TimeType + ` NULL
		)`,
		d.CreateIndex("idx_registry_document", "database_registry", "owner_document_id"),
		`CREATE TABLE IF NOT EXISTS trash_items (
			id ` + d.IDType + ` PRIMARY KEY,
			item_type VARCHAR(16) NOT NULL,
			item_id ` + d.IDType + ` NOT NULL,
			physical_location ` + d.IDType + ` NOT NULL,
			display_name TEXT NOT NULL,
			parent_info_json TEXT NOT NULL,
			owner_user_id ` + d.IDType + ` NOT NULL,
			deleted_at ` + d.TimeType + ` NOT NULL
		)`,
		d.CreateIndex("idx_trash_owner", "trash_items", "owner_user_id"),
		d.CreateIndex("idx_trash_deleted", "trash_items", "deleted_at"),
		// Append-only pre-mutation log
		`CREATE TABLE IF NOT EXISTS snapshots (
			token ` + d.IDType + ` PRIMARY KEY,
			entity_type VARCHAR(16) NOT NULL,
			entity_id ` + d.IDType + ` NOT NULL,
			physical_location ` + d.IDType + ` NOT NULL,
			source_operation VARCHAR(64) NOT NULL,
			operation_kind VARCHAR(16) NOT NULL,
			prior_state ` + d.LongText + ` NOT NULL,
			owner_user_id ` + d.IDType + ` NOT NULL,
			captured_at ` + d.TimeType + ` NOT NULL
		)`,
		d.CreateIndex("idx_snapshots_entity", "snapshots", "entity_type, entity_id"),
		d.CreateIndex("idx_snapshots_location", "snapshots", "physical_location"),
	}

	for _, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			// Engines without IF NOT EXISTS on indexes report them as duplicates
			if isDuplicate(err) {
				continue
			}
			return fmt.Errorf("migration failed: %.40s: %w", m, err)
		}
	}
	return nil
}

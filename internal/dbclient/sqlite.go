package dbclient

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"tablestore/internal/domain"
	"tablestore/internal/storage"
)

// DefaultSQLitePath is used when neither DSN nor Database is configured.
const DefaultSQLitePath = "data/tablestore.db"

// openSQLite opens a local SQLite file in WAL mode. The path comes from DSN,
// then Database, then the default.
func openSQLite(ctx context.Context, opts Options, log *zap.Logger) (domain.BackingStore, error) {
	path := opts.DSN
	if path == "" {
		path = opts.Database
	}
	if path == "" {
		path = DefaultSQLitePath
	}
	db, err := storage.OpenSQLite(ctx, filepath.Clean(path), log)
	if err != nil {
		return nil, err
	}
	log.Info("backing store ready", zap.String("path", path))
	return storage.NewStore(db), nil
}

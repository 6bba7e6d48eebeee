package dbclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tablestore/internal/domain"
	"tablestore/internal/storage"
)

// openSQL opens a pooled connection to a networked SQL engine, checks it is
// reachable, and bootstraps the metadata tables.
func openSQL(ctx context.Context, driverName, dsn string, dialect storage.Dialect, log *zap.Logger) (domain.BackingStore, error) {
	db, err := storage.Open(ctx, storage.Options{
		DriverName:   driverName,
		DSN:          dsn,
		Dialect:      dialect,
		MaxOpenConns: 10,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	conn := db.Conn()
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(10 * time.Minute)

	if err := ping(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	log.Info("backing store ready")
	return storage.NewStore(db), nil
}

func ping(ctx context.Context, db *storage.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Conn().PingContext(ctx)
}

package dbclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tablestore/internal/domain"
	"tablestore/internal/secret"
)

// Supported backing store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMongoDB  = "mongodb"
)

// PasswordSecretKey is the SecretStore key consulted when no password is
// configured directly.
const PasswordSecretKey = "tablestore-db"

// Options describes how to reach the backing store. DSN, when set, is used
// verbatim; otherwise it is assembled from the discrete fields.
type Options struct {
	Driver   string
	DSN      string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
	// Extra holds driver-specific URI parameters (authSource, replicaSet...).
	Extra map[string]string
}

// Open connects to the configured engine and returns a ready BackingStore.
// Schema bootstrap runs as part of Open.
func Open(ctx context.Context, opts Options, secrets secret.SecretStore, logger *zap.Logger) (domain.BackingStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	password, err := resolvePassword(opts, secrets)
	if err != nil {
		return nil, err
	}
	log := logger.With(zap.String("driver", opts.Driver))

	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		return openSQLite(ctx, opts, log)
	case DriverPostgres, "postgresql":
		return openSQL(ctx, DriverPostgres, buildPostgresDSN(opts, password), postgresDialect, log)
	case DriverMySQL:
		return openSQL(ctx, DriverMySQL, buildMySQLDSN(opts, password), mysqlDialect, log)
	case DriverMongoDB, "mongo":
		return openMongo(ctx, opts, password, log)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", opts.Driver)
	}
}

func resolvePassword(opts Options, secrets secret.SecretStore) (string, error) {
	if opts.Password != "" || secrets == nil {
		return opts.Password, nil
	}
	v, err := secrets.Get(PasswordSecretKey)
	if err != nil {
		return "", fmt.Errorf("read %s secret: %w", PasswordSecretKey, err)
	}
	return string(v), nil
}

package dbclient

import (
	"fmt"

	_ "github.com/lib/pq"

	"tablestore/internal/storage"
)

var postgresDialect = storage.Postgres

// buildPostgresDSN constructs a Postgres connection string from Options.
func buildPostgresDSN(opts Options, password string) string {
	if opts.DSN != "" {
		return opts.DSN
	}
	port := opts.Port
	if port == 0 {
		port = 5432
	}
	sslMode := opts.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host, port, opts.Username, password, opts.Database, sslMode,
	)
}

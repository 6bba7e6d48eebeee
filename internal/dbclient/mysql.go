package dbclient

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"tablestore/internal/storage"
)

var mysqlDialect = storage.MySQL

// buildMySQLDSN constructs a MySQL DSN from Options. parseTime is always on
// so DATETIME columns scan into time.Time.
func buildMySQLDSN(opts Options, password string) string {
	if opts.DSN != "" {
		return opts.DSN
	}
	port := opts.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		opts.Username, password, opts.Host, port, opts.Database,
	)
	if opts.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}

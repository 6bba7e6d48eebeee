package storage

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Dialect captures the handful of SQL differences between the supported
// engines. Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name     string
	IDType   string
	TimeType string
	LongText string

	dollarPlaceholders bool
	indexIfNotExists   bool
	addColumnIfMissing bool
}

var (
	SQLite = Dialect{
		Name:             "sqlite",
		IDType:           "TEXT",
		TimeType:         "DATETIME",
		LongText:         "TEXT",
		indexIfNotExists: true,
	}
	Postgres = Dialect{
		Name:               "postgres",
		IDType:             "VARCHAR(128)",
		TimeType:           "TIMESTAMPTZ",
		LongText:           "TEXT",
		dollarPlaceholders: true,
		indexIfNotExists:   true,
		addColumnIfMissing: true,
	}
	MySQL = Dialect{
		Name:     "mysql",
		IDType:   "VARCHAR(128)",
		TimeType: "DATETIME(6)",
		LongText: "LONGTEXT",
	}
)

// Rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) Rebind(q string) string {
	if !d.dollarPlaceholders {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// CreateIndex returns an index DDL statement.
func (d Dialect) CreateIndex(name, table, cols string) string {
	if d.indexIfNotExists {
		return "CREATE INDEX IF NOT EXISTS " + name + " ON " + table + "(" + cols + ")"
	}
	return "CREATE INDEX " + name + " ON " + table + "(" + cols + ")"
}

// CreateUniqueIndex returns a unique index DDL statement.
func (d Dialect) CreateUniqueIndex(name, table, cols string) string {
	return strings.Replace(d.CreateIndex(name, table, cols), "CREATE INDEX", "CREATE UNIQUE INDEX", 1)
}

// AddColumn returns an ALTER TABLE statement adding a nullable text column.
func (d Dialect) AddColumn(table, col string) string {
	if d.addColumnIfMissing {
		return "ALTER TABLE " + table + " ADD COLUMN IF NOT EXISTS " + col + " " + d.LongText + " NULL"
	}
	return "ALTER TABLE " + table + " ADD COLUMN " + col + " " + d.LongText + " NULL"
}

// isDuplicate matches "already exists" failures of idempotent DDL
// (duplicate column / duplicate key name) across engines.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists")
}

// isUniqueViolation matches a unique constraint failure on insert:
// sqlite "UNIQUE constraint failed", postgres SQLSTATE 23505, mysql 1062.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

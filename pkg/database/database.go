// Package database opens the shared *sql.DB used by the ledger, the
// planning store, and the transcript store. SQLite is the default for
// single-node deployments; Postgres is selected by DSN scheme.
package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open opens a database by DSN.
//
//	sqlite:///var/lib/keel/keel.db
//	sqlite://:memory:
//	postgres://keel@localhost:5432/keel?sslmode=disable
//
// Statements throughout the repo use the $N placeholder form, which both
// drivers accept.
func Open(dsn string) (*sql.DB, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		db, err := sql.Open("sqlite", sqliteDSN(path))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// modernc/sqlite serializes writers; a single connection avoids
		// SQLITE_BUSY under concurrent turns and keeps pragmas sticky.
		db.SetMaxOpenConns(1)
		return db, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database DSN %q", dsn)
	}
}

// sqliteDSN enables foreign keys (the transcript cascade depends on them)
// and a busy timeout for the rare cross-process writer.
func sqliteDSN(path string) string {
	base := path
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

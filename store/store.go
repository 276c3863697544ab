// Package store implements persistence for all ticketing aggregates on top
// of a single SQLite database. Every method takes a dbx.Builder so that
// multi-store mutations compose inside one dbx transaction; callers that
// need atomicity run them through (*dbx.DB).Transactional.
package store

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pocketbase/dbx"
)

// Open opens (and bootstraps) the SQLite database at path. Use ":memory:"
// or a temp file in tests. WAL plus an immediate txlock keeps concurrent
// write transactions serialized instead of failing with SQLITE_BUSY.
func Open(path string) (*dbx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate", path)
	db, err := dbx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}

func migrate(db *dbx.DB) error {
	for _, stmt := range schema {
		if _, err := db.NewQuery(stmt).Execute(); err != nil {
			return err
		}
	}
	return nil
}

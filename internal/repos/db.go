package repos

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wheelibin/yeetlight/internal/models"
)

// Open opens the sqlite database backing the registry, overrides and command ledger
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("Error opening database (%s): %w", path, err)
	}

	// a single connection keeps ":memory:" databases shared and serialises writes
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Error connecting to database (%s): %w", path, err)
	}
	return db, nil
}

func nullReading(r models.Reading) sql.NullInt64 {
	return sql.NullInt64{Int64: r.Value, Valid: r.Known}
}

func readingFromNull(n sql.NullInt64) models.Reading {
	if !n.Valid {
		return models.Unknown()
	}
	return models.Known(n.Int64)
}

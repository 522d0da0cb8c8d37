package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/trainlog/internal/client/migrations"

	_ "modernc.org/sqlite"
)

// InitDatabase opens the SQLite file at dsn and applies the embedded
// migrations. The pool is capped at one connection: SQLite allows a single
// writer, and ":memory:" databases are per connection.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}

	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return db, nil
}

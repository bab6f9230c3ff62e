package sqlite

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"
)

const defaultBusyTimeout = 5000

// DSN builds a go-sqlite3 data source name whose pragmas are applied on every
// pooled connection.
func DSN(path string) string {
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(defaultBusyTimeout))
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")

	return fmt.Sprintf("file:%s?%s", path, params.Encode())
}

func New(ctx context.Context, path string) (*sqlx.DB, error) {
	const op = "sqlite.New"

	db, err := sqlx.ConnectContext(ctx, "sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	// SQLite has a single writer; one connection keeps writes from racing for the lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Package sqlite stores URLs in a single SQLite database file for
// deployments without a PostgreSQL server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/vadimbarashkov/quicklink/internal/entity"
)

const columns = `id, original_url, short_code, validity_minutes, created_at, expires_at, is_active, click_count`

const schema = `
CREATE TABLE IF NOT EXISTS shortened_urls (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    id               TEXT NOT NULL UNIQUE,
    original_url     TEXT NOT NULL,
    short_code       VARCHAR(50) NOT NULL UNIQUE,
    validity_minutes INTEGER NOT NULL DEFAULT 30,
    created_at       DATETIME NOT NULL,
    expires_at       DATETIME NULL,
    is_active        BOOLEAN NOT NULL DEFAULT 1,
    click_count      INTEGER NOT NULL DEFAULT 0
);`

func isUniqueViolationError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

type urlDB struct {
	ID              string     `db:"id"`
	OriginalURL     string     `db:"original_url"`
	ShortCode       string     `db:"short_code"`
	ValidityMinutes int        `db:"validity_minutes"`
	CreatedAt       time.Time  `db:"created_at"`
	ExpiresAt       *time.Time `db:"expires_at"`
	IsActive        bool       `db:"is_active"`
	ClickCount      int64      `db:"click_count"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ID:              u.ID,
		OriginalURL:     u.OriginalURL,
		ShortCode:       u.ShortCode,
		ValidityMinutes: u.ValidityMinutes,
		CreatedAt:       u.CreatedAt.UTC(),
		ExpiresAt:       utcPtr(u.ExpiresAt),
		IsActive:        u.IsActive,
		ClickCount:      u.ClickCount,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Migrate creates the shortened_urls table if it does not exist yet.
func (r *URLRepository) Migrate(ctx context.Context) error {
	const op = "adapter.repository.sqlite.URLRepository.Migrate"

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: failed to create shortened_urls table: %w", op, err)
	}

	return nil
}

func (r *URLRepository) Save(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.Save"
	const query = `INSERT INTO shortened_urls(` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + columns

	var rec urlDB

	err := r.db.GetContext(ctx, &rec, query,
		url.ID, url.OriginalURL, url.ShortCode, url.ValidityMinutes,
		url.CreatedAt.UTC(), utcPtr(url.ExpiresAt), url.IsActive, url.ClickCount,
	)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into shortened_urls table: %w", op, err)
	}

	return rec.toEntity(), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.RetrieveByShortCode"
	const query = `SELECT ` + columns + ` FROM shortened_urls WHERE short_code = ?`

	var rec urlDB

	if err := r.db.GetContext(ctx, &rec, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from shortened_urls table: %w", op, err)
	}

	return rec.toEntity(), nil
}

func (r *URLRepository) RetrieveAll(ctx context.Context) ([]*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.RetrieveAll"
	const query = `SELECT ` + columns + ` FROM shortened_urls ORDER BY seq DESC`

	var recs []urlDB

	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("%s: failed to get rows from shortened_urls table: %w", op, err)
	}

	urls := make([]*entity.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, recs[i].toEntity())
	}

	return urls, nil
}

func (r *URLRepository) MarkInactive(ctx context.Context, id string) error {
	const op = "adapter.repository.sqlite.URLRepository.MarkInactive"
	const query = `UPDATE shortened_urls SET is_active = 0 WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: failed to update shortened_urls table row: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}

func (r *URLRepository) IncrementClicks(ctx context.Context, id string) (int64, error) {
	const op = "adapter.repository.sqlite.URLRepository.IncrementClicks"
	const query = `UPDATE shortened_urls SET click_count = click_count + 1 WHERE id = ? RETURNING click_count`

	var clicks int64

	if err := r.db.GetContext(ctx, &clicks, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return 0, fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	return clicks, nil
}

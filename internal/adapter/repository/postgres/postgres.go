package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/quicklink/internal/entity"
)

const uniqueViolationErrCode = "23505"

const columns = `id, original_url, short_code, validity_minutes, created_at, expires_at, is_active, click_count`

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
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
		CreatedAt:       u.CreatedAt,
		ExpiresAt:       u.ExpiresAt,
		IsActive:        u.IsActive,
		ClickCount:      u.ClickCount,
	}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) Save(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO shortened_urls(` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + columns

	var rec urlDB

	err := r.db.GetContext(ctx, &rec, query,
		url.ID, url.OriginalURL, url.ShortCode, url.ValidityMinutes,
		url.CreatedAt, url.ExpiresAt, url.IsActive, url.ClickCount,
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
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const query = `SELECT ` + columns + ` FROM shortened_urls WHERE short_code = $1`

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
	const op = "adapter.repository.postgres.URLRepository.RetrieveAll"
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
	const op = "adapter.repository.postgres.URLRepository.MarkInactive"
	const query = `UPDATE shortened_urls SET is_active = FALSE WHERE id = $1`

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
	const op = "adapter.repository.postgres.URLRepository.IncrementClicks"
	const query = `UPDATE shortened_urls SET click_count = click_count + 1 WHERE id = $1 RETURNING click_count`

	var clicks int64

	if err := r.db.GetContext(ctx, &clicks, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return 0, fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	return clicks, nil
}

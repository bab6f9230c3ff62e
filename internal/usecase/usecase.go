package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vadimbarashkov/quicklink/internal/entity"
	"github.com/vadimbarashkov/quicklink/internal/validation"
)

const (
	defaultShortCodeLength = 6
	defaultValidityMinutes = 30
	defaultMaxRetries      = 5
	defaultWorkers         = 5
	shortCodeAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	logPackage             = "service"
)

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

// ValidationError carries every validation message for a single input.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Messages, ", ")
}

type urlRepository interface {
	Save(ctx context.Context, url *entity.URL) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveAll(ctx context.Context) ([]*entity.URL, error)
	MarkInactive(ctx context.Context, id string) error
	IncrementClicks(ctx context.Context, id string) (int64, error)
}

// Option configures a URLUseCase.
type Option func(*URLUseCase)

// WithShortCodeLength sets the length of generated short codes.
func WithShortCodeLength(n int) Option {
	return func(uc *URLUseCase) {
		if n > 0 {
			uc.shortCodeLength = n
		}
	}
}

// WithDefaultValidity sets the validity window used when an input has none.
func WithDefaultValidity(minutes int) Option {
	return func(uc *URLUseCase) {
		if minutes > 0 && minutes <= validation.MaxValidityMinutes {
			uc.defaultValidity = minutes
		}
	}
}

// WithMaxRetries sets how many generated codes are tried before giving up.
func WithMaxRetries(n int) Option {
	return func(uc *URLUseCase) {
		if n > 0 {
			uc.maxRetries = n
		}
	}
}

// WithWorkers sets how many inputs of one batch are processed in parallel.
func WithWorkers(n int) Option {
	return func(uc *URLUseCase) {
		if n > 0 {
			uc.workers = n
		}
	}
}

// WithLogger sets the logger used for failures that are not reported to the caller.
func WithLogger(logger *slog.Logger) Option {
	return func(uc *URLUseCase) {
		if logger != nil {
			uc.logger = logger.With(slog.String("package", logPackage))
		}
	}
}

type URLUseCase struct {
	shortCodeLength int
	defaultValidity int
	maxRetries      int
	workers         int
	urlRepo         urlRepository
	logger          *slog.Logger
	now             func() time.Time
}

func New(urlRepo urlRepository, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		shortCodeLength: defaultShortCodeLength,
		defaultValidity: defaultValidityMinutes,
		maxRetries:      defaultMaxRetries,
		workers:         defaultWorkers,
		urlRepo:         urlRepo,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// DeactivateURL marks the URL with the given id as inactive.
// Deactivating an already inactive URL is not an error.
func (uc *URLUseCase) DeactivateURL(ctx context.Context, id string) error {
	const op = "usecase.URLUseCase.DeactivateURL"

	if err := uc.urlRepo.MarkInactive(ctx, id); err != nil {
		return fmt.Errorf("%s: failed to deactivate url: %w", op, err)
	}

	uc.logger.InfoContext(ctx, "url deactivated", slog.String("id", id))

	return nil
}

// GetURLStats returns the URL for the short code without counting a click.
func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

// ListURLs returns every URL, most recent first.
func (uc *URLUseCase) ListURLs(ctx context.Context) ([]*entity.URL, error) {
	const op = "usecase.URLUseCase.ListURLs"

	urls, err := uc.urlRepo.RetrieveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

// Summary aggregates statistics over all URLs.
type Summary struct {
	TotalURLs   int
	ActiveURLs  int
	ExpiredURLs int
	TotalClicks int64
}

func (uc *URLUseCase) GetSummary(ctx context.Context) (*Summary, error) {
	const op = "usecase.URLUseCase.GetSummary"

	urls, err := uc.urlRepo.RetrieveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	now := uc.now()
	s := &Summary{TotalURLs: len(urls)}

	for _, url := range urls {
		if url.IsExpired(now) {
			s.ExpiredURLs++
		} else {
			s.ActiveURLs++
		}
		s.TotalClicks += url.ClickCount
	}

	return s, nil
}

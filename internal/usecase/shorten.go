package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/quicklink/internal/entity"
	"github.com/vadimbarashkov/quicklink/internal/validation"
	"golang.org/x/sync/errgroup"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Per-item messages reported by ShortenBulk for failures outside validation.
const (
	MsgShortCodeExists = "Short code already exists"
	MsgShortenFailed   = "Failed to shorten URL"
)

// ShortenInput is a single URL submitted for shortening.
// An empty ShortCode asks for a generated code and a nil ValidityMinutes asks for the default window.
// ValidityMinutes is kept as submitted so that fractional values are rejected per item.
type ShortenInput struct {
	OriginalURL     string
	ShortCode       string
	ValidityMinutes *float64
}

// ShortenError describes why the input at Index was rejected.
type ShortenError struct {
	Index   int
	Message string
	Details []string
}

// BulkResult holds created URLs and rejected inputs, both in submission order.
type BulkResult struct {
	Results []*entity.URL
	Errors  []ShortenError
}

// ShortenBulk shortens every input independently. A rejected input never
// affects the others.
func (uc *URLUseCase) ShortenBulk(ctx context.Context, inputs []ShortenInput) *BulkResult {
	type outcome struct {
		url *entity.URL
		err error
	}

	outcomes := make([]outcome, len(inputs))

	g := new(errgroup.Group)
	g.SetLimit(uc.workers)

	for i, in := range inputs {
		g.Go(func() error {
			url, err := uc.ShortenURL(ctx, in)
			outcomes[i] = outcome{url: url, err: err}
			return nil
		})
	}

	_ = g.Wait()

	res := &BulkResult{
		Results: make([]*entity.URL, 0, len(inputs)),
		Errors:  make([]ShortenError, 0),
	}

	for i, o := range outcomes {
		if o.err == nil {
			res.Results = append(res.Results, o.url)
			continue
		}

		res.Errors = append(res.Errors, uc.toShortenError(ctx, i, o.err))
	}

	uc.logger.InfoContext(ctx, "bulk shortening finished",
		slog.Int("submitted", len(inputs)),
		slog.Int("shortened", len(res.Results)),
		slog.Int("rejected", len(res.Errors)),
	)

	return res
}

func (uc *URLUseCase) toShortenError(ctx context.Context, index int, err error) ShortenError {
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		return ShortenError{
			Index:   index,
			Message: validationErr.Messages[0],
			Details: validationErr.Messages,
		}
	case errors.Is(err, entity.ErrShortCodeExists):
		return ShortenError{Index: index, Message: MsgShortCodeExists}
	default:
		uc.logger.ErrorContext(ctx, "failed to shorten url",
			slog.Int("index", index),
			slog.Any("err", err),
		)

		return ShortenError{Index: index, Message: MsgShortenFailed}
	}
}

// ShortenURL validates a single input and stores it under its custom code or
// under a generated one.
func (uc *URLUseCase) ShortenURL(ctx context.Context, in ShortenInput) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	originalURL := strings.TrimSpace(in.OriginalURL)

	if res := validation.ValidateInput(originalURL, in.ShortCode, in.ValidityMinutes); !res.Valid {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Messages: res.Errors})
	}

	validity := uc.defaultValidity
	if in.ValidityMinutes != nil {
		validity = int(*in.ValidityMinutes)
	}

	createdAt := uc.now().UTC()
	expiresAt := createdAt.Add(time.Duration(validity) * time.Minute)

	url := &entity.URL{
		ID:              uuid.NewString(),
		OriginalURL:     originalURL,
		ShortCode:       in.ShortCode,
		ValidityMinutes: validity,
		CreatedAt:       createdAt,
		ExpiresAt:       &expiresAt,
		IsActive:        true,
	}

	// Custom codes get a single attempt so a collision is reported, never overwritten.
	if in.ShortCode != "" {
		saved, err := uc.urlRepo.Save(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to save url: %w", op, err)
		}

		return saved, nil
	}

	for i := 0; i < uc.maxRetries; i++ {
		shortCode, err := gonanoid.Generate(shortCodeAlphabet, uc.shortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url.ShortCode = shortCode

		saved, err := uc.urlRepo.Save(ctx, url)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				uc.logger.DebugContext(ctx, "generated short code collided", slog.String("short_code", shortCode))
				continue
			}

			return nil, fmt.Errorf("%s: failed to save url: %w", op, err)
		}

		return saved, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vadimbarashkov/quicklink/internal/entity"
	"github.com/vadimbarashkov/quicklink/internal/validation"
)

// ResolveShortCode looks up the URL for shortCode and counts one click.
//
// It returns entity.ErrURLNotFound for unknown codes. For inactive or expired
// URLs it returns the record together with entity.ErrURLExpired so callers can
// display it, but the destination must not be used. The click counter is only
// touched on success, and the returned ClickCount includes the click.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	if shortCode == "" || !validation.ValidateShortCode(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if url.IsExpired(uc.now()) {
		uc.logger.WarnContext(ctx, "expired url requested", slog.String("short_code", shortCode))
		return url, fmt.Errorf("%s: %w", op, entity.ErrURLExpired)
	}

	clicks, err := uc.urlRepo.IncrementClicks(ctx, url.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to count click: %w", op, err)
	}

	url.ClickCount = clicks

	return url, nil
}

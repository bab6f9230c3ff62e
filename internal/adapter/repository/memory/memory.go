// Package memory provides an in-process URL repository. Records live only as
// long as the process and every read returns a copy.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vadimbarashkov/quicklink/internal/entity"
)

type URLRepository struct {
	mu     sync.RWMutex
	urls   []*entity.URL
	byCode map[string]*entity.URL
	byID   map[string]*entity.URL
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		byCode: make(map[string]*entity.URL),
		byID:   make(map[string]*entity.URL),
	}
}

func clone(u *entity.URL) *entity.URL {
	cp := *u
	if u.ExpiresAt != nil {
		expiresAt := *u.ExpiresAt
		cp.ExpiresAt = &expiresAt
	}
	return &cp
}

func (r *URLRepository) Save(_ context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[url.ShortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	if _, ok := r.byID[url.ID]; ok {
		return nil, fmt.Errorf("%s: duplicate id %q", op, url.ID)
	}

	rec := clone(url)
	r.urls = append(r.urls, rec)
	r.byCode[rec.ShortCode] = rec
	r.byID[rec.ID] = rec

	return clone(rec), nil
}

func (r *URLRepository) RetrieveByShortCode(_ context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byCode[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(rec), nil
}

func (r *URLRepository) RetrieveAll(_ context.Context) ([]*entity.URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	urls := make([]*entity.URL, 0, len(r.urls))
	for i := len(r.urls) - 1; i >= 0; i-- {
		urls = append(urls, clone(r.urls[i]))
	}

	return urls, nil
}

func (r *URLRepository) MarkInactive(_ context.Context, id string) error {
	const op = "adapter.repository.memory.URLRepository.MarkInactive"

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	rec.IsActive = false

	return nil
}

func (r *URLRepository) IncrementClicks(_ context.Context, id string) (int64, error) {
	const op = "adapter.repository.memory.URLRepository.IncrementClicks"

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	rec.ClickCount++

	return rec.ClickCount, nil
}

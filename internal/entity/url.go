// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL together with
// its expiry window and click statistics, and the errors shared between layers.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code or id cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when a URL exists but is inactive or past its expiry time.
	ErrURLExpired = errors.New("url expired")
)

// URL represents a shortened URL.
type URL struct {
	ID              string     // ID is the unique identifier of the URL record.
	OriginalURL     string     // OriginalURL is the full URL that the short code resolves to.
	ShortCode       string     // ShortCode is the user supplied or generated code.
	ValidityMinutes int        // ValidityMinutes is the length of the validity window.
	CreatedAt       time.Time  // CreatedAt is the timestamp when the URL was created.
	ExpiresAt       *time.Time // ExpiresAt is nil when the URL never expires.
	IsActive        bool       // IsActive is false once the URL has been deleted.
	ClickCount      int64      // ClickCount is the number of successful resolutions.
}

// IsExpired reports whether the URL can no longer be resolved at the given time.
func (u *URL) IsExpired(now time.Time) bool {
	if !u.IsActive {
		return true
	}

	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}

package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestURL_IsExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		url  URL
		want bool
	}{
		{
			name: "active without expiry",
			url:  URL{IsActive: true},
			want: false,
		},
		{
			name: "active before expiry",
			url:  URL{IsActive: true, ExpiresAt: &future},
			want: false,
		},
		{
			name: "active exactly at expiry",
			url:  URL{IsActive: true, ExpiresAt: &now},
			want: false,
		},
		{
			name: "active after expiry",
			url:  URL{IsActive: true, ExpiresAt: &past},
			want: true,
		},
		{
			name: "inactive",
			url:  URL{IsActive: false, ExpiresAt: &future},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.url.IsExpired(now))
		})
	}
}

package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
)

type AuthTokenRepository interface {
	// Create inserts the token. A key collision returns domain.ErrTokenConflict
	// and leaves the existing row untouched.
	Create(ctx context.Context, token *domain.AuthToken) error
	// Get returns domain.ErrTokenNotFound for unknown keys.
	Get(ctx context.Context, key string) (*domain.AuthToken, error)
	UpdateExpiry(ctx context.Context, key string, expires time.Time) error
	// Delete is a no-op for unknown keys.
	Delete(ctx context.Context, key string) error
	// DeleteExpired removes every token with expires <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

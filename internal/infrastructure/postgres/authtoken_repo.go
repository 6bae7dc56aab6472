package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthTokenRepository struct {
	pool *pgxpool.Pool
}

func NewAuthTokenRepository(pool *pgxpool.Pool) *AuthTokenRepository {
	return &AuthTokenRepository{pool: pool}
}

// Create never overwrites: a key collision returns domain.ErrTokenConflict.
func (r *AuthTokenRepository) Create(ctx context.Context, t *domain.AuthToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_tokens (key, user_id, created, expires) VALUES ($1, $2, $3, $4)`,
		t.Key, t.UserID, t.Created, t.Expires,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrTokenConflict
		}
		return fmt.Errorf("insert auth token: %w", err)
	}
	return nil
}

func (r *AuthTokenRepository) Get(ctx context.Context, key string) (*domain.AuthToken, error) {
	var t domain.AuthToken
	err := r.pool.QueryRow(ctx,
		`SELECT key, user_id, created, expires FROM auth_tokens WHERE key = $1`, key,
	).Scan(&t.Key, &t.UserID, &t.Created, &t.Expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("get auth token: %w", err)
	}
	return &t, nil
}

func (r *AuthTokenRepository) UpdateExpiry(ctx context.Context, key string, expires time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE auth_tokens SET expires = $2 WHERE key = $1`, key, expires)
	if err != nil {
		return fmt.Errorf("update auth token expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *AuthTokenRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete auth token: %w", err)
	}
	return nil
}

func (r *AuthTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE expires <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired auth tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/repository"
)

const (
	tokenKeyBytes = 20
	// a collision on 160 random bits means the random source is broken or the
	// store is misbehaving; retrying a few times distinguishes the two
	maxKeyAttempts = 3
)

// TokenUsecase owns the auth token lifecycle: create on login, touch on each
// authenticated request, delete on logout, sweep offline.
type TokenUsecase struct {
	tokens repository.AuthTokenRepository
	policy domain.ExpiryPolicy
	now    func() time.Time
	random io.Reader
}

func NewTokenUsecase(tokens repository.AuthTokenRepository, policy domain.ExpiryPolicy, now func() time.Time) *TokenUsecase {
	if now == nil {
		now = time.Now
	}
	return &TokenUsecase{
		tokens: tokens,
		policy: policy,
		now:    now,
		random: rand.Reader,
	}
}

// Create always issues a new token; existing tokens of the user are kept.
func (u *TokenUsecase) Create(ctx context.Context, userID string) (*domain.AuthToken, error) {
	var lastErr error
	for range maxKeyAttempts {
		key, err := u.generateKey()
		if err != nil {
			return nil, err
		}

		now := u.now()
		token := &domain.AuthToken{
			Key:     key,
			UserID:  userID,
			Created: now,
			Expires: u.policy.Expiry(now, now),
		}

		err = u.tokens.Create(ctx, token)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, domain.ErrTokenConflict) {
			return nil, fmt.Errorf("create auth token: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("create auth token after %d attempts: %w", maxKeyAttempts, lastErr)
}

// Touch pushes the expiry forward from now, bounded by the token's max age.
func (u *TokenUsecase) Touch(ctx context.Context, token *domain.AuthToken) error {
	expires := u.policy.Expiry(token.Created, u.now())
	if err := u.tokens.UpdateExpiry(ctx, token.Key, expires); err != nil {
		return fmt.Errorf("touch auth token: %w", err)
	}
	token.Expires = expires
	return nil
}

// Get returns domain.ErrTokenNotFound for unknown keys.
func (u *TokenUsecase) Get(ctx context.Context, key string) (*domain.AuthToken, error) {
	return u.tokens.Get(ctx, key)
}

func (u *TokenUsecase) Delete(ctx context.Context, key string) error {
	return u.tokens.Delete(ctx, key)
}

// Sweep deletes every token with expires <= now.
func (u *TokenUsecase) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := u.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep auth tokens: %w", err)
	}
	return n, nil
}

func (u *TokenUsecase) generateKey() (string, error) {
	raw := make([]byte, tokenKeyBytes)
	if _, err := io.ReadFull(u.random, raw); err != nil {
		return "", fmt.Errorf("generate token key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

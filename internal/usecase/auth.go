package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/password"
	"github.com/ErlanBelekov/user-management/internal/repository"
)

// used only to spend the same hashing time on unknown emails as on real ones
const dummyPassword = "timing-equalizer-not-a-real-password"

type AuthUsecase struct {
	users  repository.UserRepository
	tokens *TokenUsecase
	hasher password.Hasher
	logger *slog.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthUsecase(users repository.UserRepository, tokens *TokenUsecase, hasher password.Hasher, logger *slog.Logger) *AuthUsecase {
	return &AuthUsecase{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		logger: logger.With("component", "auth"),
		now:    tokens.now,
	}
}

// Login checks credentials, stamps last_login and issues a new auth token.
// Unknown emails and wrong passwords both return domain.ErrInvalidCredentials.
func (u *AuthUsecase) Login(ctx context.Context, username, pw string) (*domain.AuthToken, error) {
	user, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(username))
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = u.hasher.Verify(pw, u.dummy())
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := u.hasher.Verify(pw, user.PasswordHash); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			u.logger.WarnContext(ctx, "stored password hash unusable", "user_id", user.ID, "error", err)
		}
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}

	// moving last_login invalidates every outstanding reset token
	if err := u.users.UpdateLastLogin(ctx, user.ID, u.now()); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}

	token, err := u.tokens.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return token, nil
}

// Logout deletes the token. Unknown keys are not an error.
func (u *AuthUsecase) Logout(ctx context.Context, key string) error {
	token, err := u.tokens.Get(ctx, key)
	if errors.Is(err, domain.ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get auth token: %w", err)
	}
	if err := u.tokens.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete auth token: %w", err)
	}
	u.logger.InfoContext(ctx, "user logged out", "user_id", token.UserID)
	return nil
}

// Authenticate resolves a token key to its active owner and touches the
// token. Unknown, expired and inactive-owner tokens all yield
// domain.ErrUnauthorized.
func (u *AuthUsecase) Authenticate(ctx context.Context, key string) (*domain.User, *domain.AuthToken, error) {
	token, err := u.tokens.Get(ctx, key)
	if errors.Is(err, domain.ErrTokenNotFound) {
		return nil, nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get auth token: %w", err)
	}
	if !token.Valid(u.now()) {
		return nil, nil, domain.ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, token.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find token owner: %w", err)
	}
	if !user.IsActive {
		return nil, nil, domain.ErrUnauthorized
	}

	if err := u.tokens.Touch(ctx, token); err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

func (u *AuthUsecase) dummy() string {
	u.dummyOnce.Do(func() {
		h, err := u.hasher.Hash(dummyPassword)
		if err != nil {
			u.logger.Error("hash dummy password", "error", err)
			return
		}
		u.dummyHash = h
	})
	return u.dummyHash
}

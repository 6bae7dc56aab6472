package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
)

type ListUsersInput struct {
	CursorEmail string // empty = first page
	Limit       int
}

type UserRepository interface {
	// Create inserts a new user. Returns domain.ErrEmailTaken when the
	// email already exists (case-insensitive).
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, input ListUsersInput) ([]*domain.User, error)

	UpdateName(ctx context.Context, id, name string) (*domain.User, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// MarkVerified sets email_verified and is_active.
	MarkVerified(ctx context.Context, id string) error
	// SetAvatar stores the avatar URL; nil clears it.
	SetAvatar(ctx context.Context, id string, avatar *string) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

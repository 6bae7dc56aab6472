package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const userColumns = `id, email, name, password_hash, is_active, is_staff,
	email_verified, avatar, date_joined, last_login, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (email, name, password_hash, is_active, is_staff, email_verified, last_login)
		VALUES (LOWER($1), $2, $3, $4, $5, $6, NOW())
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query,
		u.Email,
		u.Name,
		u.PasswordHash,
		u.IsActive,
		u.IsStaff,
		u.EmailVerified,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

// validID reports whether id can name a row. Ids arrive from URLs and email
// links; anything that is not a UUID cannot exist and would make Postgres
// fail the cast.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrUserNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) List(ctx context.Context, input repository.ListUsersInput) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR email > $1)
		ORDER BY email ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, input.CursorEmail, input.Limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateName(ctx context.Context, id, name string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrUserNotFound
	}
	query := `
		UPDATE users SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, id, name))
}

func (r *UserRepository) SetAvatar(ctx context.Context, id string, avatar *string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrUserNotFound
	}
	query := `
		UPDATE users SET avatar = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, id, avatar))
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, "set password",
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		id, passwordHash)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, "update last login",
		`UPDATE users SET last_login = $2 WHERE id = $1`,
		id, at)
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	return r.execOne(ctx, "mark verified",
		`UPDATE users SET email_verified = TRUE, is_active = TRUE, updated_at = NOW() WHERE id = $1`,
		id)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

// execOne runs an update or delete keyed by the user id in args[0].
func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	if id, ok := args[0].(string); ok && !validID(id) {
		return domain.ErrUserNotFound
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsStaff,
		&u.EmailVerified,
		&u.Avatar,
		&u.DateJoined,
		&u.LastLogin,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

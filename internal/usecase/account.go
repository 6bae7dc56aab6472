package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/email"
	"github.com/ErlanBelekov/user-management/internal/onetime"
	"github.com/ErlanBelekov/user-management/internal/password"
	"github.com/ErlanBelekov/user-management/internal/repository"
)

const (
	msgPasswordsMismatch    = "Your passwords do not match."
	msgNewPasswordsMismatch = "Your new passwords do not match."
	msgInvalidPassword      = "Invalid password."
	msgEmailTaken           = "That email address has already been registered."
)

// Notifier sends the account emails.
type Notifier interface {
	SendPasswordReset(ctx context.Context, site email.Site, to, name, uid, token string) error
	SendValidation(ctx context.Context, site email.Site, to, name, token string) error
}

type AccountConfig struct {
	Capabilities domain.Capabilities
	Site         email.Site
}

type AccountUsecase struct {
	users       repository.UserRepository
	hasher      password.Hasher
	emailTokens *onetime.EmailVerifier
	resetTokens *onetime.ResetVerifier
	notifier    Notifier
	cfg         AccountConfig
	logger      *slog.Logger
}

func NewAccountUsecase(
	users repository.UserRepository,
	hasher password.Hasher,
	emailTokens *onetime.EmailVerifier,
	resetTokens *onetime.ResetVerifier,
	notifier Notifier,
	cfg AccountConfig,
	logger *slog.Logger,
) *AccountUsecase {
	return &AccountUsecase{
		users:       users,
		hasher:      hasher,
		emailTokens: emailTokens,
		resetTokens: resetTokens,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger.With("component", "account"),
	}
}

type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	Password2 string
}

// Register creates the user. With email verification required the user starts
// inactive and a validation email is sent.
func (u *AccountUsecase) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	verr := &domain.ValidationError{}
	if err := password.ValidateNew(in.Password); err != nil {
		verr.Add("password", err.Error())
	}
	if in.Password != in.Password2 {
		verr.Add("password2", msgPasswordsMismatch)
	}
	if !verr.Empty() {
		return nil, verr
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verified := !u.cfg.Capabilities.EmailVerificationRequired
	user, err := u.users.Create(ctx, &domain.User{
		Email:         domain.NormalizeEmail(in.Email),
		Name:          in.Name,
		PasswordHash:  hash,
		IsActive:      verified,
		EmailVerified: verified,
	})
	if errors.Is(err, domain.ErrEmailTaken) {
		return nil, domain.NewValidationError("email", msgEmailTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "email_verified", user.EmailVerified)

	if !user.EmailVerified {
		// registration stands even if the email fails; the user can ask for a resend
		if err := u.sendValidation(ctx, user); err != nil {
			u.logger.ErrorContext(ctx, "send validation email", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

// RequestPasswordReset emails a reset link when the address belongs to a
// user. Unknown addresses succeed silently.
func (u *AccountUsecase) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(emailAddr))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	uid, token := u.resetTokens.Issue(user)
	if err := u.notifier.SendPasswordReset(ctx, u.cfg.Site, user.Email, user.Name, uid, token); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	u.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

// ConfirmPasswordReset checks the uidb64/token pair before looking at the new
// password, so a bad link never reports field errors.
func (u *AccountUsecase) ConfirmPasswordReset(ctx context.Context, raw, newPassword, newPassword2 string) error {
	user, err := u.resetTokens.Verify(ctx, raw)
	if err != nil {
		return err
	}
	if err := validateNewPasswords(newPassword, newPassword2); err != nil {
		return err
	}
	if err := u.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

// ChangePassword requires the current password.
func (u *AccountUsecase) ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword, newPassword2 string) error {
	if err := u.hasher.Verify(oldPassword, user.PasswordHash); err != nil {
		return domain.NewValidationError("old_password", msgInvalidPassword)
	}
	if err := validateNewPasswords(newPassword, newPassword2); err != nil {
		return err
	}
	if err := u.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "password changed", "user_id", user.ID)
	return nil
}

// VerifyEmail marks the token's user verified and active. A second use of the
// same link returns domain.ErrAlreadyVerified.
func (u *AccountUsecase) VerifyEmail(ctx context.Context, raw string) (*domain.User, error) {
	user, err := u.emailTokens.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return nil, domain.ErrAlreadyVerified
	}
	if err := u.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	user.EmailVerified = true
	user.IsActive = true
	u.logger.InfoContext(ctx, "email verified", "user_id", user.ID)
	return user, nil
}

// ResendConfirmation re-sends the validation email. caller is nil for
// anonymous requests; an authenticated caller may only target its own
// address. Unknown and already verified addresses succeed without sending.
func (u *AccountUsecase) ResendConfirmation(ctx context.Context, caller *domain.User, emailAddr string) error {
	addr := domain.NormalizeEmail(emailAddr)
	if caller != nil && caller.Email != addr {
		return domain.ErrPermissionDenied
	}

	user, err := u.users.FindByEmail(ctx, addr)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}
	return u.sendValidation(ctx, user)
}

func (u *AccountUsecase) UpdateProfile(ctx context.Context, user *domain.User, name string) (*domain.User, error) {
	updated, err := u.users.UpdateName(ctx, user.ID, name)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

// DeleteAccount removes the caller and, through the foreign key, its tokens.
func (u *AccountUsecase) DeleteAccount(ctx context.Context, user *domain.User) error {
	if err := u.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	u.logger.InfoContext(ctx, "account deleted", "user_id", user.ID)
	return nil
}

func (u *AccountUsecase) ListUsers(ctx context.Context, in repository.ListUsersInput) ([]*domain.User, error) {
	users, err := u.users.List(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (u *AccountUsecase) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return u.users.FindByID(ctx, id)
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	IsStaff  bool
}

// CreateUser is restricted to staff. Users created this way skip email
// verification and start active.
func (u *AccountUsecase) CreateUser(ctx context.Context, caller *domain.User, in CreateUserInput) (*domain.User, error) {
	if !caller.IsStaff {
		return nil, domain.ErrPermissionDenied
	}
	if err := password.ValidateNew(in.Password); err != nil {
		return nil, domain.NewValidationError("password", err.Error())
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := u.users.Create(ctx, &domain.User{
		Email:         domain.NormalizeEmail(in.Email),
		Name:          in.Name,
		PasswordHash:  hash,
		IsActive:      true,
		IsStaff:       in.IsStaff,
		EmailVerified: true,
	})
	if errors.Is(err, domain.ErrEmailTaken) {
		return nil, domain.NewValidationError("email", msgEmailTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.logger.InfoContext(ctx, "user created", "user_id", user.ID, "by", caller.ID)
	return user, nil
}

// UpdateUser is restricted to staff; only the name is editable.
func (u *AccountUsecase) UpdateUser(ctx context.Context, caller *domain.User, id, name string) (*domain.User, error) {
	if !caller.IsStaff {
		return nil, domain.ErrPermissionDenied
	}
	updated, err := u.users.UpdateName(ctx, id, name)
	if err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "user updated", "user_id", id, "by", caller.ID)
	return updated, nil
}

// GetAvatar returns the stored avatar URL of user id, nil when none is set.
func (u *AccountUsecase) GetAvatar(ctx context.Context, id string) (*string, error) {
	if !u.cfg.Capabilities.HasAvatar {
		return nil, domain.ErrFeatureDisabled
	}
	user, err := u.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Avatar, nil
}

// SetAvatar stores the avatar URL of user id. Callers may set their own,
// staff may set anyone's.
func (u *AccountUsecase) SetAvatar(ctx context.Context, caller *domain.User, id string, avatar *string) (*domain.User, error) {
	if !u.cfg.Capabilities.HasAvatar {
		return nil, domain.ErrFeatureDisabled
	}
	if caller.ID != id && !caller.IsStaff {
		return nil, domain.ErrPermissionDenied
	}
	updated, err := u.users.SetAvatar(ctx, id, avatar)
	if err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "avatar updated", "user_id", id, "by", caller.ID)
	return updated, nil
}

// DeleteUser is restricted to staff.
func (u *AccountUsecase) DeleteUser(ctx context.Context, caller *domain.User, id string) error {
	if !caller.IsStaff {
		return domain.ErrPermissionDenied
	}
	if err := u.users.Delete(ctx, id); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "user deleted", "user_id", id, "by", caller.ID)
	return nil
}

func (u *AccountUsecase) sendValidation(ctx context.Context, user *domain.User) error {
	token, err := u.emailTokens.Issue(user)
	if err != nil {
		return fmt.Errorf("issue validation token: %w", err)
	}
	if err := u.notifier.SendValidation(ctx, u.cfg.Site, user.Email, user.Name, token); err != nil {
		return fmt.Errorf("send validation email: %w", err)
	}
	return nil
}

func (u *AccountUsecase) setPassword(ctx context.Context, userID, pw string) error {
	hash, err := u.hasher.Hash(pw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := u.users.SetPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func validateNewPasswords(pw, pw2 string) error {
	verr := &domain.ValidationError{}
	if err := password.ValidateNew(pw); err != nil {
		verr.Add("new_password", err.Error())
	}
	if pw != pw2 {
		verr.Add("new_password2", msgNewPasswordsMismatch)
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

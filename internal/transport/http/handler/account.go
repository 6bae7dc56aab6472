package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/onetime"
	"github.com/ErlanBelekov/user-management/internal/transport/http/middleware"
	"github.com/ErlanBelekov/user-management/internal/usecase"
	"github.com/gin-gonic/gin"
)

const (
	msgRegistered       = "Registration successful."
	msgRegisteredVerify = "Registration successful. Check your email to validate your account."
	msgEmailVerified    = "Email verified."
	msgPasswordReset    = "Password has been reset."
	msgPasswordChanged  = "Password changed."
)

// accountUsecaser is the subset of AccountUsecase the handler needs.
type accountUsecaser interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*domain.User, error)
	VerifyEmail(ctx context.Context, raw string) (*domain.User, error)
	ResendConfirmation(ctx context.Context, caller *domain.User, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, raw, newPassword, newPassword2 string) error
	ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword, newPassword2 string) error
	UpdateProfile(ctx context.Context, user *domain.User, name string) (*domain.User, error)
	DeleteAccount(ctx context.Context, user *domain.User) error
}

type AccountHandler struct {
	accounts accountUsecaser
	caps     domain.Capabilities
	logger   *slog.Logger
}

func NewAccountHandler(accounts accountUsecaser, caps domain.Capabilities, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		caps:     caps,
		logger:   logger.With("component", "account_handler"),
	}
}

type registerRequest struct {
	Name      string `json:"name"      binding:"required,max=255"`
	Email     string `json:"email"     binding:"required,email,max=254"`
	Password  string `json:"password"  binding:"required"`
	Password2 string `json:"password2" binding:"required"`
}

// POST /register
func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	u, err := h.accounts.Register(c.Request.Context(), usecase.RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Password2: req.Password2,
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}

	msg := msgRegistered
	if !u.EmailVerified {
		msg = msgRegisteredVerify
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg, "user": newUserResponse(u, h.caps)})
}

// POST /verify_email/:token
func (h *AccountHandler) VerifyEmail(c *gin.Context) {
	if _, err := h.accounts.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		writeError(c, h.logger, "verify email", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msgEmailVerified})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /resend-confirmation-email
// Answers 204 whether or not an email went out.
func (h *AccountHandler) ResendConfirmation(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	caller, _ := middleware.CurrentUser(c)
	if err := h.accounts.ResendConfirmation(c.Request.Context(), caller, req.Email); err != nil {
		writeError(c, h.logger, "resend confirmation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /auth/password_reset
// Always 204 so the response does not reveal whether the email exists.
func (h *AccountHandler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "request password reset", "error", err)
	}
	c.Status(http.StatusNoContent)
}

// no binding rules: the link is checked before the passwords are
type confirmResetRequest struct {
	NewPassword  string `json:"new_password"`
	NewPassword2 string `json:"new_password2"`
}

// PUT /auth/password_reset/confirm/:uidb64/:token
func (h *AccountHandler) ConfirmPasswordReset(c *gin.Context) {
	var req confirmResetRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	raw := onetime.ResetToken(c.Param("uidb64"), c.Param("token"))
	if err := h.accounts.ConfirmPasswordReset(c.Request.Context(), raw, req.NewPassword, req.NewPassword2); err != nil {
		writeError(c, h.logger, "confirm password reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgPasswordReset})
}

type changePasswordRequest struct {
	OldPassword  string `json:"old_password"  binding:"required"`
	NewPassword  string `json:"new_password"  binding:"required"`
	NewPassword2 string `json:"new_password2" binding:"required"`
}

// PUT /profile/password
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c)
	if err := h.accounts.ChangePassword(c.Request.Context(), user, req.OldPassword, req.NewPassword, req.NewPassword2); err != nil {
		writeError(c, h.logger, "change password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgPasswordChanged})
}

// GET /profile
func (h *AccountHandler) GetProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, newUserResponse(user, h.caps))
}

type updateProfileRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// PATCH /profile
// Only the name is editable; other fields in the body are ignored.
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c)
	updated, err := h.accounts.UpdateProfile(c.Request.Context(), user, req.Name)
	if err != nil {
		writeError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(updated, h.caps))
}

// DELETE /profile
func (h *AccountHandler) DeleteProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if err := h.accounts.DeleteAccount(c.Request.Context(), user); err != nil {
		writeError(c, h.logger, "delete account", err)
		return
	}
	c.Status(http.StatusNoContent)
}

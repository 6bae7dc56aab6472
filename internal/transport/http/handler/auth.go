package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/metrics"
	"github.com/ErlanBelekov/user-management/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Login(ctx context.Context, username, password string) (*domain.AuthToken, error)
	Logout(ctx context.Context, key string) error
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /auth
// Returns {"token": "<key>"}; bad credentials are a 400 non-field error.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		writeBindError(c, err)
		return
	}

	token, err := h.authUsecase.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginOutcome(err)).Inc()
		writeError(c, h.logger, "login", err)
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"token": token.Key})
}

// DELETE /auth
// Deletes the presented token. Unknown tokens are already logged out.
func (h *AuthHandler) Logout(c *gin.Context) {
	key, err := middleware.TokenKey(c.GetHeader("Authorization"))
	if err != nil {
		msg := errInvalidTokenHeader
		if errors.Is(err, middleware.ErrNoCredentials) {
			msg = errNoCredentials
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.authUsecase.Logout(c.Request.Context(), key); err != nil {
		writeError(c, h.logger, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrAccountDisabled):
		return "disabled"
	default:
		return "error"
	}
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/user-management/internal/domain"
	ctxlog "github.com/ErlanBelekov/user-management/internal/log"
	"github.com/gin-gonic/gin"
)

const (
	tokenScheme = "Token"

	userKey = "user"

	errNotAuthenticated = "Authentication credentials were not provided."
	errAnonymousOnly    = "You must be logged out to do this."
)

var (
	ErrNoCredentials   = errors.New("no credentials provided")
	ErrMalformedHeader = errors.New("invalid token header")
)

// Authenticator is implemented by AuthUsecase.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*domain.User, *domain.AuthToken, error)
}

// TokenKey extracts the key from "Authorization: Token <key>". A missing
// header or another scheme is ErrNoCredentials; a Token header without
// exactly one key is ErrMalformedHeader.
func TokenKey(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 || !strings.EqualFold(parts[0], tokenScheme) {
		return "", ErrNoCredentials
	}
	if len(parts) != 2 {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}

// Authenticate resolves the token header to a user. Requests without a usable
// token continue anonymously; RequireAuth decides whether that is allowed.
func Authenticate(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "auth_middleware")
	return func(c *gin.Context) {
		key, err := TokenKey(c.GetHeader("Authorization"))
		if err != nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		user, _, err := auth.Authenticate(ctx, key)
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthorized) {
				logger.ErrorContext(ctx, "authenticate token", "error", err)
			}
			c.Next()
			return
		}

		c.Set(userKey, user)
		c.Request = c.Request.WithContext(ctxlog.WithUserID(ctx, user.ID))
		c.Next()
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.Header("WWW-Authenticate", tokenScheme)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNotAuthenticated})
			return
		}
		c.Next()
	}
}

// AnonymousOnly rejects authenticated requests with 403.
func AnonymousOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errAnonymousOnly})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user set by Authenticate.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

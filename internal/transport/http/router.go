package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/user-management/internal/throttle"
	"github.com/ErlanBelekov/user-management/internal/transport/http/handler"
	"github.com/ErlanBelekov/user-management/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// throttle scopes and their rates when THROTTLE_RATES does not name them
const (
	ScopeLogins        = "logins"
	ScopePasswords     = "passwords"
	ScopeConfirmations = "confirmations"

	defaultLoginRate        = "10/hour"
	defaultPasswordRate     = "3/hour"
	defaultConfirmationRate = "3/hour"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Account *handler.AccountHandler
	Users   *handler.UserHandler
	Avatars *handler.AvatarHandler
}

func NewRouter(logger *slog.Logger, auth middleware.Authenticator, th *throttle.Throttler, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.Authenticate(auth, logger))

	anonymous := middleware.AnonymousOnly()
	authenticated := middleware.RequireAuth()

	loginThrottle := middleware.Throttle(th,
		throttle.ScopedPolicy(ScopeLogins, defaultLoginRate),
		throttle.UsernamePolicy(ScopeLogins, defaultLoginRate),
	)
	passwordThrottle := middleware.Throttle(th, throttle.ScopedPolicy(ScopePasswords, defaultPasswordRate))
	confirmationThrottle := middleware.Throttle(th, throttle.ScopedPolicy(ScopeConfirmations, defaultConfirmationRate))

	// Token auth
	r.POST("/auth", loginThrottle, h.Auth.Login)
	r.DELETE("/auth", h.Auth.Logout)

	// Account flows
	r.POST("/register", anonymous, h.Account.Register)
	r.POST("/auth/password_reset", anonymous, passwordThrottle, h.Account.RequestPasswordReset)
	r.PUT("/auth/password_reset/confirm/:uidb64/:token", anonymous, h.Account.ConfirmPasswordReset)
	r.POST("/verify_email/:token", h.Account.VerifyEmail)
	r.POST("/resend-confirmation-email", confirmationThrottle, h.Account.ResendConfirmation)

	// Protected profile routes
	profile := r.Group("/profile", authenticated)
	profile.GET("", h.Account.GetProfile)
	profile.PATCH("", h.Account.UpdateProfile)
	profile.DELETE("", h.Account.DeleteProfile)
	profile.PUT("/password", h.Account.ChangePassword)
	profile.GET("/avatar", h.Avatars.GetProfile)
	profile.PUT("/avatar", h.Avatars.UpdateProfile)

	// Protected user directory
	users := r.Group("/users", authenticated)
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PATCH("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)
	users.GET("/:id/avatar", h.Avatars.GetUser)
	users.PUT("/:id/avatar", h.Avatars.UpdateUser)

	return r
}

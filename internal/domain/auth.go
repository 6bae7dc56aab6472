package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenNotFound      = errors.New("auth token not found")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrTokenConflict      = errors.New("auth token key already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
	ErrAccountDisabled    = errors.New("user account is disabled")
	ErrEmailTaken         = errors.New("email address already registered")
	ErrAlreadyVerified    = errors.New("account is already verified")
	ErrFeatureDisabled    = errors.New("feature is disabled")
)

const (
	DefaultAuthTokenMaxAge        = 200 * 24 * time.Hour
	DefaultAuthTokenMaxInactivity = 12 * time.Hour
)

// AuthToken is an opaque bearer credential issued at login. A user may hold
// several at once, one per device.
type AuthToken struct {
	Key     string
	UserID  string
	Created time.Time
	Expires time.Time
}

// Valid reports whether the token is still usable at now.
func (t *AuthToken) Valid(now time.Time) bool {
	return t.Expires.After(now)
}

// ExpiryPolicy bounds a token's lifetime by absolute age and by inactivity.
type ExpiryPolicy struct {
	MaxAge        time.Duration
	MaxInactivity time.Duration
}

func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{
		MaxAge:        DefaultAuthTokenMaxAge,
		MaxInactivity: DefaultAuthTokenMaxInactivity,
	}
}

// Expiry returns the expiry for a token created at created and used at now.
func (p ExpiryPolicy) Expiry(created, now time.Time) time.Time {
	return ComputeExpiry(created, now, p.MaxAge, p.MaxInactivity)
}

// ComputeExpiry returns min(created+maxAge, now+maxInactivity).
// A zero maxInactivity expires the token at now.
func ComputeExpiry(created, now time.Time, maxAge, maxInactivity time.Duration) time.Time {
	byAge := created.Add(maxAge)
	byInactivity := now.Add(maxInactivity)
	if byInactivity.Before(byAge) {
		return byInactivity
	}
	return byAge
}

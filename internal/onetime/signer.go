// Package onetime issues and verifies the one-time tokens embedded in email
// links. Two variants exist: payload-signed tokens, which stay valid until
// their max age passes, and state-derived tokens, which stop verifying as soon
// as the user state they were derived from changes.
package onetime

import (
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type payloadClaims struct {
	Data map[string]any `json:"dat"`
	jwt.RegisteredClaims
}

// PayloadSigner signs small payloads (HS256) for a single purpose. Tokens
// signed for one purpose never verify for another.
type PayloadSigner struct {
	key     []byte
	purpose string
	now     func() time.Time
}

func NewPayloadSigner(secret []byte, purpose string, opts ...Option) *PayloadSigner {
	o := buildOptions(opts)
	return &PayloadSigner{key: secret, purpose: purpose, now: o.now}
}

// Issue signs payload with the current time as its timestamp.
func (s *PayloadSigner) Issue(payload map[string]any) (string, error) {
	claims := payloadClaims{
		Data: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{s.purpose},
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify returns the signed payload. maxAge == 0 disables the age check.
// Every failure is domain.ErrTokenInvalid.
func (s *PayloadSigner) Verify(raw string, maxAge time.Duration) (map[string]any, error) {
	var claims payloadClaims
	token, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithAudience(s.purpose),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.IssuedAt == nil {
		return nil, domain.ErrTokenInvalid
	}
	if maxAge > 0 && s.now().Sub(claims.IssuedAt.Time) > maxAge {
		return nil, domain.ErrTokenInvalid
	}
	if claims.Data == nil {
		return nil, domain.ErrTokenInvalid
	}
	return claims.Data, nil
}

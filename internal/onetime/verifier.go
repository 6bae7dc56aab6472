package onetime

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
)

type Kind string

const (
	KindPayloadSigned Kind = "payload_signed"
	KindStateDerived  Kind = "state_derived"
)

// UserLookup is the subset of the user repository the verifiers need.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Verifier resolves a raw token from an email link to the user it was issued
// for. Unknown users, bad signatures and expiry all return
// domain.ErrTokenInvalid; other errors are infrastructure failures.
type Verifier interface {
	Kind() Kind
	Verify(ctx context.Context, raw string) (*domain.User, error)
}

const emailPurpose = "user_management.verify_email"

// EmailVerifier handles payload-signed {"email": ...} tokens.
type EmailVerifier struct {
	signer *PayloadSigner
	users  UserLookup
	maxAge time.Duration
}

// NewEmailVerifier; maxAge == 0 means tokens never expire.
func NewEmailVerifier(secret []byte, users UserLookup, maxAge time.Duration, opts ...Option) *EmailVerifier {
	return &EmailVerifier{
		signer: NewPayloadSigner(secret, emailPurpose, opts...),
		users:  users,
		maxAge: maxAge,
	}
}

func (v *EmailVerifier) Kind() Kind { return KindPayloadSigned }

func (v *EmailVerifier) Issue(u *domain.User) (string, error) {
	return v.signer.Issue(map[string]any{"email": u.Email})
}

func (v *EmailVerifier) Verify(ctx context.Context, raw string) (*domain.User, error) {
	data, err := v.signer.Verify(raw, v.maxAge)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	email, ok := data["email"].(string)
	if !ok || email == "" {
		return nil, domain.ErrTokenInvalid
	}
	return resolve(v.users.FindByEmail(ctx, email))
}

// ResetVerifier handles "<uidb64>/<state token>" password reset tokens.
type ResetVerifier struct {
	gen   *StateTokenGenerator
	users UserLookup
}

func NewResetVerifier(secret []byte, users UserLookup, timeout time.Duration, opts ...Option) *ResetVerifier {
	return &ResetVerifier{
		gen:   NewStateTokenGenerator(secret, timeout, opts...),
		users: users,
	}
}

func (v *ResetVerifier) Kind() Kind { return KindStateDerived }

// Issue returns the uid and token path segments of a reset link.
func (v *ResetVerifier) Issue(u *domain.User) (uid, token string) {
	return EncodeUID(u.ID), v.gen.Make(stateOf(u))
}

func (v *ResetVerifier) Verify(ctx context.Context, raw string) (*domain.User, error) {
	uidPart, token, ok := strings.Cut(raw, "/")
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	id, err := DecodeUID(uidPart)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	u, err := resolve(v.users.FindByID(ctx, id))
	if err != nil {
		return nil, err
	}
	if !v.gen.Check(stateOf(u), token) {
		return nil, domain.ErrTokenInvalid
	}
	return u, nil
}

// ResetToken joins the uid and token path segments into the raw form Verify takes.
func ResetToken(uid, token string) string {
	return uid + "/" + token
}

func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func DecodeUID(uid string) (string, error) {
	b, err := base64.RawURLEncoding.Strict().DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func stateOf(u *domain.User) State {
	return State{UserID: u.ID, PasswordHash: u.PasswordHash, LastLogin: u.LastLogin}
}

func resolve(u *domain.User, err error) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}
	return u, nil
}

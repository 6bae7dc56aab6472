package domain

import (
	"sort"
	"strings"
	"time"
)

type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	IsActive      bool
	IsStaff       bool
	EmailVerified bool
	Avatar        *string // nil means no avatar uploaded
	DateJoined    time.Time
	LastLogin     time.Time
	UpdatedAt     time.Time
}

// Capabilities are the optional user features selected at configuration time.
type Capabilities struct {
	EmailVerificationRequired bool
	HasAvatar                 bool
}

// NormalizeEmail lower-cases and trims an address. Emails are unique
// case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidationError carries field-scoped messages for a rejected input.
// Field "non_field_errors" holds messages not tied to one field.
type ValidationError struct {
	Fields map[string][]string
}

const NonFieldErrors = "non_field_errors"

func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

// Empty reports whether no messages were recorded.
func (v *ValidationError) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Fields))
	for f := range v.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

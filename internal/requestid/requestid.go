// Package requestid carries the per-request correlation ID through contexts.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the request and response header the ID travels in.
const Header = "X-Request-ID"

const maxLength = 128

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

// FromHeader returns the caller supplied ID when it is printable ASCII
// without spaces and at most 128 bytes, otherwise a fresh one.
func FromHeader(value string) string {
	if value == "" || len(value) > maxLength {
		return New()
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x21 || value[i] > 0x7e {
			return New()
		}
	}
	return value
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" if ctx carries no ID.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

package middleware

import (
	"github.com/ErlanBelekov/user-management/internal/requestid"
	"github.com/gin-gonic/gin"
)

// RequestID keeps a caller supplied X-Request-ID when it is printable and
// short, otherwise it generates a UUID v4.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestid.FromHeader(c.GetHeader(requestid.Header))

		ctx := requestid.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestid.Header, id)
		c.Next()
	}
}

// Security sets common HTTP security headers. Responses carry tokens and
// profile data, so nothing is cacheable.
func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

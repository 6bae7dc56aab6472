package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/user-management/internal/metrics"
	"github.com/ErlanBelekov/user-management/internal/throttle"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	errThrottled = "Request was throttled."

	// inspected bodies are capped at this size
	maxInspectedBody = 64 << 10
)

// throttler is the subset of *throttle.Throttler the middleware needs.
type throttler interface {
	Check(ctx context.Context, r throttle.Request, now time.Time, policies ...throttle.Policy) throttle.Decision
}

// Throttle applies the policies to POST requests and answers 429 with
// Retry-After when one of them is exhausted. It must run after Authenticate.
func Throttle(t throttler, policies ...throttle.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		req := throttle.Request{
			Method: c.Request.Method,
			IP:     c.ClientIP(),
		}
		if u, ok := CurrentUser(c); ok {
			req.UserID = u.ID
		} else {
			req.Username = peekUsername(c)
		}

		d := t.Check(c.Request.Context(), req, time.Now(), policies...)
		if !d.Allowed {
			metrics.ThrottledRequestsTotal.WithLabelValues(d.Scope).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": errThrottled})
			return
		}
		c.Next()
	}
}

// peekUsername reads the "username" field of a JSON body. gin caches the
// body, so handlers binding with ShouldBindBodyWith still see it.
func peekUsername(c *gin.Context) string {
	if c.Request.Body == nil || c.ContentType() != gin.MIMEJSON {
		return ""
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxInspectedBody)

	var body struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		return ""
	}
	return body.Username
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/user-management/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records latency and counts per route template, so /users/:id is one
// series regardless of the id.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := []string{c.Request.Method, path, strconv.Itoa(c.Writer.Status())}

		metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
	}
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layoffproof/layoff-tracker/internal/metrics"
)

// Metrics records latency and count per route template. Probe routes listed
// in skip are not recorded.
func Metrics(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		if skipped[path] {
			return
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		duration := time.Since(start).Seconds()

		metrics.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	}
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/platform/metrics"
)

// Metrics records request count and latency labelled by the matched route,
// so path parameters do not blow up cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

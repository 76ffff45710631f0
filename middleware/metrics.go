package middleware

import (
	"time"

	"github.com/berthwatch/backend/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request counts and latency by route template
func Metrics(m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

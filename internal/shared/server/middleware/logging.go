package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docchaser/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if id := c.Param("id"); id != "" && strings.HasPrefix(c.FullPath(), "/api/v1/chasers/") {
			fields["chaser_id"] = id
		}
		if caller := CallerFromContext(c); caller != "" {
			fields["caller"] = caller
		}
		telemetry.Info("request.complete", fields)
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docchaser/internal/shared/auth"
	"docchaser/internal/shared/server/respond"
	"docchaser/internal/shared/telemetry"
)

const webhookSubjectKey = "webhookSubject"

// WebhookAuth requires a bearer token signed with secret. An empty secret
// disables the check outside production.
func WebhookAuth(secret, env string) gin.HandlerFunc {
	if strings.TrimSpace(secret) == "" {
		if env == "production" {
			return func(c *gin.Context) {
				respond.Error(c, http.StatusServiceUnavailable, "unavailable", "webhooks are not configured", nil)
			}
		}
		telemetry.Warn("webhooks.auth.disabled", map[string]any{"env": env})
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		claims, err := auth.VerifyToken(secret, token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		c.Set(webhookSubjectKey, claims.Subject)
		c.Next()
	}
}

// CallerFromContext returns the authenticated webhook subject, if any.
func CallerFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(webhookSubjectKey)
}

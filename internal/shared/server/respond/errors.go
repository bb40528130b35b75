package respond

import (
	"strings"

	"github.com/gin-gonic/gin"

	"docchaser/internal/shared/telemetry"
)

// ErrorBody is the error object every endpoint returns.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts with a standard error body and logs it against the chaser
// the route addresses, if any.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"route":      c.FullPath(),
		"request_id": c.GetString("requestId"),
	}
	if id := c.Param("id"); id != "" && strings.HasPrefix(c.FullPath(), "/api/v1/chasers/") {
		fields["chaser_id"] = id
	}
	if caller := c.GetString("webhookSubject"); caller != "" {
		fields["caller"] = caller
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchaser/internal/chasers"
	"docchaser/internal/customers"
	"docchaser/internal/dispatch"
	"docchaser/internal/documents"
	"docchaser/internal/services/health"
	"docchaser/internal/shared/config"
	"docchaser/internal/shared/metrics"
	"docchaser/internal/shared/server/middleware"
	"docchaser/internal/shared/server/respond"
)

// RouterDeps are the handlers and services the HTTP surface exposes.
type RouterDeps struct {
	Config          config.Config
	ChaserHandler   *chasers.Handler
	DocumentHandler *documents.Handler
	CustomerHandler *customers.Handler
	Scheduler       *dispatch.Scheduler
	Health          *health.Service
	// BaseContext bounds the dispatch loop when started over HTTP.
	BaseContext context.Context
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "DEFAULT",
			GroupFor:     rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT":  {Rate: 10, Burst: 40},
				"POLLING":  {Rate: 20, Burst: 60},
				"WEBHOOKS": {Rate: 50, Burst: 200},
			},
		}),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	healthHandler := func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	}
	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler)
	if deps.ChaserHandler != nil {
		deps.ChaserHandler.RegisterRoutes(api)
		hooks := api.Group("", middleware.WebhookAuth(deps.Config.WebhookSecret, deps.Config.Env))
		deps.ChaserHandler.RegisterWebhookRoutes(hooks)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.CustomerHandler != nil {
		deps.CustomerHandler.RegisterRoutes(api)
	}
	if deps.Scheduler != nil {
		base := deps.BaseContext
		if base == nil {
			base = context.Background()
		}
		registerSchedulerRoutes(api, deps.Scheduler, base)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	switch c.FullPath() {
	case "/api/v1/scheduler/status", "/health", "/api/v1/health", "/metrics":
		return "POLLING"
	case "/api/v1/webhooks/response":
		return "WEBHOOKS"
	default:
		return "DEFAULT"
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

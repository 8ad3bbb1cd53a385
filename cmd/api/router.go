package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/UMHC/umhc-finance/pkg/metrics"
)

// buildRouter assembles the gin engine. Dashboard reads stay public (the
// club publishes its accounts); uploads and mutations sit behind the auth
// middleware.
func buildRouter(deps *Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())

	// Multipart parsing cap; the import handler enforces its own byte limit
	router.MaxMultipartMemory = int64(deps.Config.Storage.MaxUploadMB) << 20

	router.GET("/health", func(c *gin.Context) {
		if err := deps.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	if deps.Config.Server.RateLimitPerSecond > 0 {
		api.Use(rateLimitMiddleware(deps.Config.Server.RateLimitPerSecond, deps.Config.Server.RateLimitBurst))
	}

	authed := api.Group("", deps.AuthHandler.Middleware())

	deps.AuthHandler.RegisterRoutes(api, authed)
	deps.FinanceHandler.RegisterRoutes(api, authed)
	deps.ImportHandler.RegisterRoutes(api, authed)
	deps.InsightsHandler.RegisterRoutes(api, authed)
	deps.BalanceHandler.RegisterRoutes(api, authed)
	deps.CategorizationHandler.RegisterRoutes(api, authed)

	return router
}

// rateLimitMiddleware bounds request throughput across the API. Statement
// uploads are the expensive path this protects; setting the per-second rate
// to zero disables it.
func rateLimitMiddleware(perSecond, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

package http

import (
	"github.com/gin-gonic/gin"

	"github.com/partscout/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.RateLimit.PerIP)))
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handler.CreateSession)
			sessions.GET("/:id", handler.GetSession)
			sessions.DELETE("/:id", handler.ResetSession)
			sessions.POST("/:id/keyword", handler.SubmitKeyword)
			sessions.PUT("/:id/selection", handler.SelectManufacturers)
			sessions.POST("/:id/selection/all", handler.SelectAllManufacturers)
			sessions.DELETE("/:id/selection", handler.ClearSelection)
			sessions.POST("/:id/products", handler.SearchProducts)
		}
	}

	return router
}

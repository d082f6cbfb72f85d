package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.GET("/stores", handler.ListStores)
		v1.GET("/inventory", handler.GetInventory)

		staging := v1.Group("/staging")
		{
			staging.GET("", handler.ListStaging)
			staging.POST("", handler.UpsertStaging)
			staging.DELETE("", handler.RemoveStaging)
			staging.POST("/status", handler.UpdateStagingStatus)
		}
	}

	return router
}

package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/wildcard-labs/deck-indexer/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Deck read endpoints (public read access)
		v1.GET("/decks/:deck/stats", handler.GetDeckStats)
		v1.GET("/decks/:deck/holders", handler.GetDeckHolders)
		v1.GET("/decks/:deck/leaderboard", handler.GetDeckLeaderboard)
		v1.GET("/decks/:deck/cards/:suit/:value", handler.GetDeckCard)

		// Scheduled job triggers (require the cron shared secret)
		v1.POST("/jobs/daily-stats", middleware.CronAuth(authCfg), handler.TriggerDailyStats)
		v1.POST("/jobs/weekly-holders", middleware.CronAuth(authCfg), handler.TriggerWeeklyHolders)
	}
}

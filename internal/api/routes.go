package api

import (
	"github.com/gin-gonic/gin"

	"github.com/playshiri/backend/internal/api/handlers"
	"github.com/playshiri/backend/internal/bus"
	"github.com/playshiri/backend/internal/config"
	"github.com/playshiri/backend/internal/game"
	"github.com/playshiri/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, engine *game.Engine, b *bus.Bus, gateway *ws.Gateway, cfg *config.Config) {
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.FrontendURL)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		games := v1.Group("/games")
		{
			games.POST("", handlers.CreateGame(engine, cfg))
			games.GET("/:id", handlers.GetGame(engine, cfg))
			games.POST("/:id/join", handlers.JoinGame(engine, b, cfg))
			games.POST("/:id/start", handlers.StartGame(engine, b, cfg))
			games.POST("/:id/restart", handlers.RestartGame(engine, b, cfg))
			games.POST("/:id/turn", handlers.SubmitTurn(engine, b, cfg))
			games.POST("/:id/leave", handlers.LeaveGame(engine, b, cfg))
			games.GET("/:id/ws", gateway.HandleWebSocket)
		}
	}
}

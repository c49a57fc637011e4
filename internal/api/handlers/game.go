package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playshiri/backend/internal/bus"
	"github.com/playshiri/backend/internal/config"
	"github.com/playshiri/backend/internal/game"
	"github.com/playshiri/backend/internal/session"
)

// CreateGame handles POST /games.
func CreateGame(engine *game.Engine, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, err := engine.CreateGame(c.Request.Context())
		if err != nil {
			respondError(c, cfg, err, "", "")
			return
		}
		view, err := engine.Store().View(c.Request.Context(), g.ID)
		if err != nil {
			respondError(c, cfg, err, g.ID, "")
			return
		}
		log.Printf("[API] created game %s", g.ID)
		c.JSON(http.StatusCreated, view)
	}
}

// GetGame handles GET /games/:id.
func GetGame(engine *game.Engine, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := engine.Store().View(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, cfg, err, c.Param("id"), "")
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// JoinGame handles POST /games/:id/join.
func JoinGame(engine *game.Engine, b *bus.Bus, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")

		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "name is required"})
			return
		}

		sessionKey, err := ensureSession(c, cfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "session setup failed"})
			return
		}

		player, err := engine.Join(c.Request.Context(), gameID, req.Name, sessionKey)
		if err != nil {
			respondError(c, cfg, err, gameID, sessionKey)
			return
		}

		b.Publish(gameID, bus.EventPlayerJoined, gin.H{
			"id":   player.ID,
			"name": player.Name,
			"type": player.Type,
		})
		game.PublishGameUpdated(c.Request.Context(), engine.Store(), b, gameID)
		c.JSON(http.StatusCreated, gin.H{"id": player.ID})
	}
}

// StartGame handles POST /games/:id/start: the host applies setting
// overrides, the game flips to PLAYING and its turn driver is launched.
func StartGame(engine *game.Engine, b *bus.Bus, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		sessionKey, ok := requireSession(c, cfg)
		if !ok {
			return
		}

		var overrides game.SettingsOverrides
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&overrides); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid settings payload"})
				return
			}
		}

		ctx := c.Request.Context()
		if err := engine.PrepareStart(ctx, gameID, sessionKey, &overrides); err != nil {
			respondError(c, cfg, err, gameID, sessionKey)
			return
		}
		if err := engine.Start(ctx, gameID, ""); err != nil {
			respondError(c, cfg, err, gameID, sessionKey)
			return
		}

		log.Printf("[API] game %s started by session %s", gameID, session.Digest(sessionKey))
		game.PublishGameUpdated(ctx, engine.Store(), b, gameID)
		// the driver outlives this request
		game.StartDriver(context.Background(), engine, b, gameID)
		c.Status(http.StatusNoContent)
	}
}

// RestartGame handles POST /games/:id/restart.
func RestartGame(engine *game.Engine, b *bus.Bus, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		sessionKey, ok := requireSession(c, cfg)
		if !ok {
			return
		}
		if err := engine.Restart(c.Request.Context(), gameID, sessionKey); err != nil {
			respondError(c, cfg, err, gameID, sessionKey)
			return
		}
		game.PublishGameUpdated(c.Request.Context(), engine.Store(), b, gameID)
		c.Status(http.StatusNoContent)
	}
}

// SubmitTurn handles POST /games/:id/turn.
func SubmitTurn(engine *game.Engine, b *bus.Bus, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		sessionKey, ok := requireSession(c, cfg)
		if !ok {
			return
		}

		var req struct {
			Word     string  `json:"word"`
			Duration float64 `json:"duration"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "word and duration are required"})
			return
		}

		ctx := c.Request.Context()
		result, err := engine.SubmitTurn(ctx, gameID, sessionKey, req.Word, req.Duration)
		if err != nil {
			respondError(c, cfg, err, gameID, sessionKey)
			return
		}

		game.PublishGameUpdated(ctx, engine.Store(), b, gameID)
		if result.Finished {
			game.PublishGameFinished(ctx, engine.Store(), b, gameID, result.Winner)
		}
		c.Status(http.StatusNoContent)
	}
}

// LeaveGame handles POST /games/:id/leave.
func LeaveGame(engine *game.Engine, b *bus.Bus, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		sessionKey, ok := requireSession(c, cfg)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		result, err := engine.Leave(ctx, gameID, sessionKey)
		if err != nil {
			respondError(c, cfg, err, gameID, sessionKey)
			return
		}

		b.Publish(gameID, bus.EventPlayerLeft, gin.H{
			"id":   result.PlayerID,
			"name": result.Name,
		})
		game.PublishGameUpdated(ctx, engine.Store(), b, gameID)
		if result.Finished {
			game.PublishGameFinished(ctx, engine.Store(), b, gameID, result.Winner)
		}
		c.Status(http.StatusNoContent)
	}
}

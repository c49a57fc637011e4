package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/playshiri/backend/internal/api"
	"github.com/playshiri/backend/internal/bus"
	"github.com/playshiri/backend/internal/config"
	"github.com/playshiri/backend/internal/database"
	"github.com/playshiri/backend/internal/dictionary"
	"github.com/playshiri/backend/internal/game"
	"github.com/playshiri/backend/internal/migrations"
	"github.com/playshiri/backend/internal/redis"
	"github.com/playshiri/backend/internal/store"
	"github.com/playshiri/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Persistence, dictionary and game core
	gameStore := store.New(db)
	dict := dictionary.New(gameStore)
	if err := dict.WarmUp(context.Background()); err != nil {
		log.Fatalf("Failed to load dictionaries: %v", err)
	}
	eventBus := bus.New()
	engine := game.NewEngine(gameStore, dict)

	// Start the disconnect grace worker
	game.StartGraceWorker(context.Background(), engine, eventBus, rdb, cfg)

	// Relaunch timer loops for games that were in progress before a restart
	if n, err := game.ResumeDrivers(context.Background(), engine, eventBus); err != nil {
		log.Fatalf("Failed to resume running games: %v", err)
	} else if n > 0 {
		log.Printf("Resumed %d running game(s)", n)
	}

	// WebSocket gateway
	gateway := ws.NewGateway(engine, eventBus, rdb, cfg)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, engine, eventBus, gateway, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting shiritori server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

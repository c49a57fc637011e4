package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string
	Debug       bool

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Game settings
	DisconnectGracePeriodSecs int
	GraceWorkerPollSecs       int

	// Dictionary
	WordlistDir string

	// Security
	JWTSecret string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),
		Debug:       getEnvBool("DEBUG", false),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/shiritori?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Game settings
		DisconnectGracePeriodSecs: getEnvInt("DISCONNECT_GRACE_PERIOD_SECONDS", 60),
		GraceWorkerPollSecs:       getEnvInt("GRACE_WORKER_POLL_SECONDS", 1),

		// Dictionary
		WordlistDir: getEnv("WORDLIST_DIR", "wordlists"),

		// Security
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
	}
}

// DisconnectGraceSecs returns the disconnect grace window, shortened in
// debug mode so flicker-disconnect behavior can be exercised quickly.
func (c *Config) DisconnectGraceSecs() int {
	if c.Debug {
		return 5
	}
	return c.DisconnectGracePeriodSecs
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

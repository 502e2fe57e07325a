package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	JWTSecret  string
	CORSOrigin string

	// Empty disables the relational archive / the shared store.
	DatabaseURL string
	RedisURL    string

	HistoryCapacity int

	RoomSweepInterval     time.Duration
	PresenceSweepInterval time.Duration
	StatsInterval         time.Duration
	MaxRoomAge            time.Duration
	PresenceAwayAfter     time.Duration
	PresenceOfflineAfter  time.Duration
}

// Load reads configuration from the environment, with a .env file as
// convenience for local development.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	return Config{
		Port:       getEnv("PORT", "8080"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		HistoryCapacity: getEnvInt("ROOM_HISTORY_CAPACITY", 1000),

		RoomSweepInterval:     getEnvDuration("ROOM_SWEEP_INTERVAL", time.Minute),
		PresenceSweepInterval: getEnvDuration("PRESENCE_SWEEP_INTERVAL", 30*time.Second),
		StatsInterval:         getEnvDuration("STATS_INTERVAL", 15*time.Second),
		MaxRoomAge:            getEnvDuration("MAX_ROOM_AGE", 4*time.Hour),
		PresenceAwayAfter:     getEnvDuration("PRESENCE_AWAY_AFTER", 5*time.Minute),
		PresenceOfflineAfter:  getEnvDuration("PRESENCE_OFFLINE_AFTER", 30*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		slog.Warn("invalid integer env var, using default", "key", key, "value", v)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		slog.Warn("invalid duration env var, using default", "key", key, "value", v)
	}
	return fallback
}

// Package config loads engine configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full engine configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
}

// AppConfig holds process-level settings.
type AppConfig struct {
	// Env is the deployment environment (development, staging, production).
	Env string

	// InstanceID identifies this engine instance on the shared event channel.
	InstanceID string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// DatabaseConfig holds PostgreSQL settings. URL wins over the discrete
// fields when set.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	// Enabled toggles the Redis event bus and leaderboard cache. When false
	// the engine runs on the in-memory bus with no cache.
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// EngineConfig holds the domain tunables.
type EngineConfig struct {
	// DemonstrationThreshold is the sub-score a taxonomy level must reach to
	// count as demonstrated.
	DemonstrationThreshold float64

	// LockWait bounds per-student and per-class lock acquisition.
	LockWait time.Duration

	// PipelineTimeout bounds one full pipeline run.
	PipelineTimeout time.Duration

	// RecentWindowSize is the per-student recent-activity window length.
	RecentWindowSize int

	// SnapshotRetention is how long leaderboard snapshots are kept.
	SnapshotRetention time.Duration

	// EventWorkers is the event bus worker pool size.
	EventWorkers int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Env:        getEnv("APP_ENV", "development"),
			InstanceID: getEnv("APP_INSTANCE_ID", ""),
			LogLevel:   getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "mastery_engine"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Engine: EngineConfig{
			DemonstrationThreshold: getEnvFloat("ENGINE_DEMONSTRATION_THRESHOLD", 60),
			LockWait:               getEnvDuration("ENGINE_LOCK_WAIT", 3*time.Second),
			PipelineTimeout:        getEnvDuration("ENGINE_PIPELINE_TIMEOUT", 30*time.Second),
			RecentWindowSize:       getEnvInt("ENGINE_RECENT_WINDOW_SIZE", 20),
			SnapshotRetention:      getEnvDuration("ENGINE_SNAPSHOT_RETENTION", 30*24*time.Hour),
			EventWorkers:           getEnvInt("ENGINE_EVENT_WORKERS", 8),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("config: either DATABASE_URL or DB_HOST is required")
	}
	if c.Engine.DemonstrationThreshold <= 0 || c.Engine.DemonstrationThreshold > 100 {
		return fmt.Errorf("config: ENGINE_DEMONSTRATION_THRESHOLD must be in (0,100], got %v",
			c.Engine.DemonstrationThreshold)
	}
	if c.Engine.RecentWindowSize <= 0 {
		return fmt.Errorf("config: ENGINE_RECENT_WINDOW_SIZE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

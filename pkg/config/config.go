package config

import (
	"fmt"
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Enrichment EnrichmentConfig
	Import     ImportConfig
	Heal       HealConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// EnrichmentConfig points at the optional remote type-suggestion service.
// An empty URL disables the step entirely.
type EnrichmentConfig struct {
	URL               string
	RequestsPerSecond float64
}

type ImportConfig struct {
	ChunkSize int
}

// HealConfig drives the scheduled hierarchy repair job.
type HealConfig struct {
	Enabled  bool
	Schedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "coa-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Enrichment: EnrichmentConfig{
			URL:               getEnv("ENRICHMENT_URL", ""),
			RequestsPerSecond: getEnvAsFloat("ENRICHMENT_RATE_LIMIT_PER_SECOND", 2),
		},
		Import: ImportConfig{
			ChunkSize: getEnvAsInt("IMPORT_CHUNK_SIZE", 500),
		},
		Heal: HealConfig{
			Enabled:  getEnvAsBool("HEAL_ENABLED", false),
			Schedule: getEnv("HEAL_SCHEDULE", "0 3 * * *"),
		},
	}

	if cfg.Import.ChunkSize <= 0 {
		return nil, fmt.Errorf("IMPORT_CHUNK_SIZE must be positive, got %d", cfg.Import.ChunkSize)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

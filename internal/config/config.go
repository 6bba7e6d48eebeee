// Package config loads runtime settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting.
type Config struct {
	Driver     string
	DSN        string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// DefaultUser is the caller identity used when a tool call omits userId.
	DefaultUser string

	Transport string // stdio | http
	HTTPAddr  string

	PurgeSchedule string // cron expression; empty disables the scheduler
	Retention     time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Driver:        strings.ToLower(getEnv("TABLESTORE_DRIVER", "sqlite")),
		DSN:           getEnv("TABLESTORE_DSN", ""),
		DBHost:        getEnv("TABLESTORE_DB_HOST", ""),
		DBName:        getEnv("TABLESTORE_DB_NAME", ""),
		DBUser:        getEnv("TABLESTORE_DB_USER", ""),
		DBPassword:    getEnv("TABLESTORE_DB_PASSWORD", ""),
		DBSSLMode:     getEnv("TABLESTORE_DB_SSLMODE", ""),
		DefaultUser:   getEnv("TABLESTORE_USER", ""),
		Transport:     strings.ToLower(getEnv("TABLESTORE_TRANSPORT", "stdio")),
		HTTPAddr:      getEnv("TABLESTORE_HTTP_ADDR", ":8080"),
		PurgeSchedule: os.Getenv("TABLESTORE_PURGE_SCHEDULE"),
		Retention:     30 * 24 * time.Hour,
		LogLevel:      getEnv("TABLESTORE_LOG_LEVEL", "info"),
		LogFormat:     getEnv("TABLESTORE_LOG_FORMAT", "json"),
	}
	if _, set := os.LookupEnv("TABLESTORE_PURGE_SCHEDULE"); !set {
		cfg.PurgeSchedule = "@daily"
	}

	if p := os.Getenv("TABLESTORE_DB_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("TABLESTORE_DB_PORT: %w", err)
		}
		cfg.DBPort = port
	}
	if r := os.Getenv("TABLESTORE_RETENTION"); r != "" {
		d, err := time.ParseDuration(r)
		if err != nil {
			return nil, fmt.Errorf("TABLESTORE_RETENTION: %w", err)
		}
		cfg.Retention = d
	}
	if cfg.Driver == "sqlite" && cfg.DSN == "" {
		cfg.DSN = defaultSQLitePath()
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres", "mysql", "mongodb":
	default:
		return fmt.Errorf("unsupported TABLESTORE_DRIVER %q", c.Driver)
	}
	switch c.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unsupported TABLESTORE_TRANSPORT %q", c.Transport)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("TABLESTORE_RETENTION must be positive, got %s", c.Retention)
	}
	return nil
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("data", "tablestore.db")
	}
	return filepath.Join(home, ".local", "share", "tablestore", "tablestore.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

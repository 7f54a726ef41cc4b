// Package config loads the tool's configuration from environment
// variables.
package config

import (
	"os"
	"strconv"
)

// Config holds the application's configuration.
type Config struct {
	LogLevel              string
	CachePath             string
	CacheDisabled         bool
	VariationProgressRows int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := &Config{
		LogLevel:              os.Getenv("ARCHC_LOG_LEVEL"),
		CachePath:             os.Getenv("ARCHC_CACHE_PATH"),
		VariationProgressRows: 1 << 20, // Default value
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "warning"
	}
	if cfg.CachePath == "" {
		cfg.CachePath = ".archc/cache.db"
	}

	if disabled := os.Getenv("ARCHC_CACHE_DISABLED"); disabled != "" {
		if b, err := strconv.ParseBool(disabled); err == nil {
			cfg.CacheDisabled = b
		}
	}

	if rowsStr := os.Getenv("ARCHC_VARIATION_PROGRESS_EVERY"); rowsStr != "" {
		if rows, err := strconv.Atoi(rowsStr); err == nil && rows > 0 {
			cfg.VariationProgressRows = rows
		}
	}

	return cfg
}

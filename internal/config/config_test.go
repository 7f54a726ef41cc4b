package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ARCHC_LOG_LEVEL", "")
	t.Setenv("ARCHC_CACHE_PATH", "")
	t.Setenv("ARCHC_CACHE_DISABLED", "")
	t.Setenv("ARCHC_VARIATION_PROGRESS_EVERY", "")

	cfg := LoadConfig()
	assert.Equal(t, "warning", cfg.LogLevel)
	assert.Equal(t, ".archc/cache.db", cfg.CachePath)
	assert.False(t, cfg.CacheDisabled)
	assert.Equal(t, 1<<20, cfg.VariationProgressRows)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ARCHC_LOG_LEVEL", "debug")
	t.Setenv("ARCHC_CACHE_PATH", "/tmp/alt.db")
	t.Setenv("ARCHC_CACHE_DISABLED", "true")
	t.Setenv("ARCHC_VARIATION_PROGRESS_EVERY", "5000")

	cfg := LoadConfig()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/alt.db", cfg.CachePath)
	assert.True(t, cfg.CacheDisabled)
	assert.Equal(t, 5000, cfg.VariationProgressRows)
}

func TestLoadConfig_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("ARCHC_CACHE_DISABLED", "sometimes")
	t.Setenv("ARCHC_VARIATION_PROGRESS_EVERY", "-3")

	cfg := LoadConfig()
	assert.False(t, cfg.CacheDisabled)
	assert.Equal(t, 1<<20, cfg.VariationProgressRows)
}

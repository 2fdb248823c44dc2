package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, FallbackOriginal, cfg.TranslationFallback)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
	assert.False(t, cfg.StorageEnabled())
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medibridge.yaml")
	yamlBody := []byte("http_addr: \":9000\"\npipeline_workers: 3\ntranslation_fallback: marker\ndb_name: from_file\n")
	require.NoError(t, os.WriteFile(path, yamlBody, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_NAME", "from_env")
	t.Setenv("TRANSLATION_TIMEOUT", "2s")
	t.Setenv("CORS_ORIGINS", "http://a.test/, http://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.PipelineWorkers)
	assert.Equal(t, FallbackMarker, cfg.TranslationFallback)
	assert.Equal(t, "from_env", cfg.DBName)
	assert.Equal(t, 2*time.Second, cfg.TranslationTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 1000, cfg.PipelineQueue)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"empty secret", func(c *Config) { c.JWTSecret = "" }, false},
		{"unknown provider", func(c *Config) { c.AIProvider = "bard" }, false},
		{"openai without key", func(c *Config) { c.AIProvider = "openai" }, false},
		{"openai with key", func(c *Config) { c.AIProvider = "openai"; c.AIAPIKey = "k" }, true},
		{"ollama without key", func(c *Config) { c.AIProvider = "ollama" }, true},
		{"bad fallback", func(c *Config) { c.TranslationFallback = "silence" }, false},
		{"zero workers", func(c *Config) { c.PipelineWorkers = 0 }, false},
		{"zero timeout", func(c *Config) { c.TranslationTimeout = 0 }, false},
		{"zero outbox", func(c *Config) { c.WSOutbox = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPassword = "secret"
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=medibridge sslmode=disable", cfg.DSN())
}

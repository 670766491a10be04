package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 10000, cfg.ChunkSize)
	assert.Equal(t, 1000, cfg.ChunkOverlap)
	assert.Equal(t, 1, cfg.MapConcurrency)
	assert.Equal(t, ExtractModeReference, cfg.ExtractMode)
	assert.Equal(t, []string{"en"}, cfg.TranscriptLanguages)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SUMMARIZE_TIMEOUT", "2m")
	t.Setenv("MAP_CONCURRENCY", "4")
	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("RUN_LOG_ENABLED", "false")
	t.Setenv("TRANSCRIPT_LANGUAGES", "ko, en ,")
	t.Setenv("EXTRACT_MODE", ExtractModePreserve)

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 2*time.Minute, cfg.SummarizeTimeout)
	assert.Equal(t, 4, cfg.MapConcurrency)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.False(t, cfg.RunLogEnabled)
	assert.Equal(t, []string{"ko", "en"}, cfg.TranscriptLanguages)
	assert.Equal(t, ExtractModePreserve, cfg.ExtractMode)
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("READ_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT", "many")
	t.Setenv("RUN_LOG_ENABLED", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.True(t, cfg.RunLogEnabled)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.ServerPort = "" }},
		{"missing db path", func(c *Config) { c.DBPath = "" }},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"zero concurrency", func(c *Config) { c.MapConcurrency = 0 }},
		{"unknown extract mode", func(c *Config) { c.ExtractMode = "loose" }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"zero llm timeout", func(c *Config) { c.LLM.Timeout = 0 }},
		{"zero inflight", func(c *Config) { c.MaxInflight = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			require.NoError(t, ValidateConfig(cfg))
			tt.mutate(cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}
}

func TestValidateConfigAllowsMissingDBPathWhenLedgerDisabled(t *testing.T) {
	cfg := LoadConfig()
	cfg.RunLogEnabled = false
	cfg.DBPath = ""
	assert.NoError(t, ValidateConfig(cfg))
}

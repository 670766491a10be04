package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	ExtractModeReference = "reference"
	ExtractModePreserve  = "preserve"
)

type Config struct {
	// Server settings
	ServerPort      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Run ledger
	DBPath        string
	RunLogEnabled bool

	// Request handling
	SummarizeTimeout  time.Duration
	RateLimit         int
	RateLimitInterval time.Duration
	MaxInflight       int

	// Language model backend
	LLM LLMConfig

	// Pipeline tuning
	ChunkSize      int
	ChunkOverlap   int
	MapConcurrency int
	ExtractMode    string

	// Transcript source
	TranscriptLanguages []string
	TranscriptTimeout   time.Duration

	// Logging
	LogDir    string
	LogLevel  string
	LogFormat string
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	return &Config{
		ServerPort:      GetEnv("SERVER_PORT", "8080"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 15*time.Minute),
		IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DBPath:        GetEnv("DB_PATH", "./data/runs.db"),
		RunLogEnabled: getEnvAsBool("RUN_LOG_ENABLED", true),

		SummarizeTimeout:  getEnvAsDuration("SUMMARIZE_TIMEOUT", 10*time.Minute),
		RateLimit:         getEnvAsInt("RATE_LIMIT", 5),
		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 1*time.Second),
		MaxInflight:       getEnvAsInt("MAX_INFLIGHT", 2),

		LLM: LLMConfig{
			BaseURL:     GetEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
			APIKey:      GetEnv("LLM_API_KEY", "ollama"),
			Model:       GetEnv("LLM_MODEL", "llama3.2"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 5*time.Minute),
		},

		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 10000),
		ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 1000),
		MapConcurrency: getEnvAsInt("MAP_CONCURRENCY", 1),
		ExtractMode:    GetEnv("EXTRACT_MODE", ExtractModeReference),

		TranscriptLanguages: getEnvAsStringSlice("TRANSCRIPT_LANGUAGES", []string{"en"}),
		TranscriptTimeout:   getEnvAsDuration("TRANSCRIPT_TIMEOUT", 30*time.Second),

		LogDir:    GetEnv("LOG_DIR", ""),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "text"),
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		warnInvalid(key, value, defaultValue, "Invalid float, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		warnInvalid(key, value, defaultValue, "Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func warnInvalid(key, value string, defaultValue interface{}, msg string) {
	logrus.WithFields(logrus.Fields{
		"key":          key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warn(msg)
}

func ValidateConfig(cfg *Config) error {
	if cfg.ServerPort == "" {
		return errors.New("server port is required")
	}
	if cfg.RunLogEnabled && cfg.DBPath == "" {
		return errors.New("database path is required when the run log is enabled")
	}
	if cfg.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if cfg.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if cfg.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if cfg.SummarizeTimeout <= 0 {
		return errors.New("summarize timeout must be greater than 0")
	}
	if cfg.RateLimit <= 0 || cfg.RateLimitInterval <= 0 {
		return errors.New("rate limit and interval must be greater than 0")
	}
	if cfg.MaxInflight <= 0 {
		return errors.New("max inflight must be greater than 0")
	}
	if cfg.LLM.BaseURL == "" {
		return errors.New("llm base url is required")
	}
	if cfg.LLM.Model == "" {
		return errors.New("llm model is required")
	}
	if cfg.LLM.Timeout <= 0 {
		return errors.New("llm timeout must be greater than 0")
	}
	if cfg.ChunkSize <= 0 {
		return errors.New("chunk size must be greater than 0")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return errors.Errorf("chunk overlap must be in [0, %d)", cfg.ChunkSize)
	}
	if cfg.MapConcurrency <= 0 {
		return errors.New("map concurrency must be greater than 0")
	}
	if cfg.ExtractMode != ExtractModeReference && cfg.ExtractMode != ExtractModePreserve {
		return errors.Errorf("unknown extract mode %q", cfg.ExtractMode)
	}
	if cfg.TranscriptTimeout <= 0 {
		return errors.New("transcript timeout must be greater than 0")
	}
	return nil
}

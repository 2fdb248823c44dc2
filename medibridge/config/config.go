package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	FallbackOriginal = "original"
	FallbackMarker   = "marker"
)

type Config struct {
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	JWTSecret     string        `yaml:"jwt_secret"`
	JWTExpiration time.Duration `yaml:"jwt_expiration"`

	HTTPAddr    string   `yaml:"http_addr"`
	CORSOrigins []string `yaml:"cors_origins"`

	MinIOEndpoint  string `yaml:"minio_endpoint"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOBucket    string `yaml:"minio_bucket"`
	MinIOUseSSL    bool   `yaml:"minio_use_ssl"`

	AIProvider        string `yaml:"ai_provider"`
	AIEndpoint        string `yaml:"ai_endpoint"`
	AIAPIKey          string `yaml:"ai_api_key"`
	AIModel           string `yaml:"ai_model"`
	AITranscribeModel string `yaml:"ai_transcribe_model"`

	TranslationTimeout  time.Duration `yaml:"translation_timeout"`
	TranslationFallback string        `yaml:"translation_fallback"`
	PipelineWorkers     int           `yaml:"pipeline_workers"`
	PipelineQueue       int           `yaml:"pipeline_queue"`
	ShutdownGrace       time.Duration `yaml:"shutdown_grace"`
	RateLimitPerMinute  int           `yaml:"rate_limit_per_minute"`

	WSAuthTimeout time.Duration `yaml:"ws_auth_timeout"`
	WSOutbox      int           `yaml:"ws_outbox"`

	LogDir string `yaml:"log_dir"`
}

func DefaultConfig() Config {
	return Config{
		DBHost:              "localhost",
		DBPort:              "5432",
		DBUser:              "postgres",
		DBName:              "medibridge",
		DBSSLMode:           "disable",
		JWTSecret:           "change-me-in-production",
		JWTExpiration:       24 * time.Hour,
		HTTPAddr:            ":8000",
		CORSOrigins:         []string{"http://localhost:5173", "http://localhost:8080"},
		MinIOBucket:         "medibridge-audio",
		AIProvider:          "mock",
		AIModel:             "gpt-4o",
		AITranscribeModel:   "whisper-large-v3-turbo",
		TranslationTimeout:  15 * time.Second,
		TranslationFallback: FallbackOriginal,
		PipelineWorkers:     8,
		PipelineQueue:       1000,
		ShutdownGrace:       10 * time.Second,
		RateLimitPerMinute:  100,
		WSAuthTimeout:       5 * time.Second,
		WSOutbox:            100,
		LogDir:              "./logs",
	}
}

// LoadConfig resolves settings with precedence env > CONFIG_FILE (yaml) > defaults.
// A .env file in the working directory is loaded into the environment first when present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.mergeEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	// zero-valued keys in the file leave the defaults untouched
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBSSLMode = getEnv("DB_SSLMODE", c.DBSSLMode)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTExpiration = getDuration("JWT_EXPIRATION", c.JWTExpiration)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}
	c.MinIOEndpoint = getEnv("MINIO_ENDPOINT", c.MinIOEndpoint)
	c.MinIOAccessKey = getEnv("MINIO_ACCESS_KEY", c.MinIOAccessKey)
	c.MinIOSecretKey = getEnv("MINIO_SECRET_KEY", c.MinIOSecretKey)
	c.MinIOBucket = getEnv("MINIO_BUCKET", c.MinIOBucket)
	c.MinIOUseSSL = getBool("MINIO_USE_SSL", c.MinIOUseSSL)
	c.AIProvider = strings.ToLower(getEnv("AI_PROVIDER", c.AIProvider))
	c.AIEndpoint = getEnv("AI_ENDPOINT", c.AIEndpoint)
	c.AIAPIKey = getEnv("AI_API_KEY", c.AIAPIKey)
	c.AIModel = getEnv("AI_MODEL", c.AIModel)
	c.AITranscribeModel = getEnv("AI_TRANSCRIBE_MODEL", c.AITranscribeModel)
	c.TranslationTimeout = getDuration("TRANSLATION_TIMEOUT", c.TranslationTimeout)
	c.TranslationFallback = strings.ToLower(getEnv("TRANSLATION_FALLBACK", c.TranslationFallback))
	c.PipelineWorkers = getInt("PIPELINE_WORKERS", c.PipelineWorkers)
	c.PipelineQueue = getInt("PIPELINE_QUEUE", c.PipelineQueue)
	c.ShutdownGrace = getDuration("SHUTDOWN_GRACE", c.ShutdownGrace)
	c.RateLimitPerMinute = getInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.WSAuthTimeout = getDuration("WS_AUTH_TIMEOUT", c.WSAuthTimeout)
	c.WSOutbox = getInt("WS_OUTBOX", c.WSOutbox)
	c.LogDir = getEnv("LOG_DIR", c.LogDir)
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if c.JWTExpiration <= 0 {
		return fmt.Errorf("JWT expiration must be positive")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP address cannot be empty")
	}
	switch c.AIProvider {
	case "openai", "groq", "ollama", "mock":
	default:
		return fmt.Errorf("unknown AI provider %q", c.AIProvider)
	}
	if c.AIProvider != "mock" && c.AIProvider != "ollama" && c.AIAPIKey == "" {
		return fmt.Errorf("AI provider %s requires an API key", c.AIProvider)
	}
	if c.TranslationTimeout <= 0 {
		return fmt.Errorf("translation timeout must be positive")
	}
	if c.TranslationFallback != FallbackOriginal && c.TranslationFallback != FallbackMarker {
		return fmt.Errorf("translation fallback must be %q or %q", FallbackOriginal, FallbackMarker)
	}
	if c.PipelineWorkers <= 0 || c.PipelineQueue <= 0 {
		return fmt.Errorf("pipeline workers and queue must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.WSAuthTimeout <= 0 || c.WSOutbox <= 0 {
		return fmt.Errorf("websocket auth timeout and outbox must be positive")
	}
	return nil
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c Config) StorageEnabled() bool {
	return c.MinIOEndpoint != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string

	// RulePackURL locates the active rule pack (file://, s3://, gs://).
	RulePackURL     string
	RefreshInterval time.Duration

	// MasterSecret seeds the ledger signing keyring. Empty means an
	// ephemeral key, fine for development only.
	MasterSecret string

	RedisAddr string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	AdvisorTimeout time.Duration

	OTLPEndpoint string
	OTelEnabled  bool

	RateLimitRPS   int
	RateLimitBurst int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:            getenv("PORT", "8080"),
		LogLevel:        getenv("LOG_LEVEL", "INFO"),
		DatabaseURL:     getenv("DATABASE_URL", "sqlite://keel.db"),
		RulePackURL:     getenv("KEEL_RULEPACK_URL", "file://rulepack.yaml"),
		RefreshInterval: getDuration("KEEL_RULEPACK_REFRESH", 5*time.Minute),
		MasterSecret:    os.Getenv("KEEL_MASTER_SECRET"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getenv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		AdvisorTimeout:  getDuration("KEEL_ADVISOR_TIMEOUT", 30*time.Second),
		OTLPEndpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		RateLimitRPS:    getInt("KEEL_RATE_LIMIT_RPS", 10),
		RateLimitBurst:  getInt("KEEL_RATE_LIMIT_BURST", 20),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
	"time"
)

// ProviderConfig holds one external settlement provider's endpoint and
// credentials. WebhookSecret signs/verifies that provider's webhooks.
type ProviderConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
}

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Store
	DatabaseURL string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Query-layer balance overlay cache
	BalanceCacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Auth (verification only; token issuance lives elsewhere)
	JWTSecret string

	// Settlement providers
	CardProcessor ProviderConfig
	BankRail      ProviderConfig
	CoreBanking   ProviderConfig
	CardNetwork   ProviderConfig
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		BalanceCacheTTL: getEnvDuration("BALANCE_CACHE_TTL", 30*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret: getEnv("JWT_SECRET", "ledger-default-dev-secret-change-me"),

		CardProcessor: ProviderConfig{
			BaseURL:       getEnv("CARDPROC_URL", "https://api.cardproc.example.com"),
			APIKey:        getEnv("CARDPROC_API_KEY", ""),
			WebhookSecret: getEnv("CARDPROC_WEBHOOK_SECRET", ""),
		},
		BankRail: ProviderConfig{
			BaseURL:       getEnv("BANKRAIL_URL", "https://api.bankrail.example.com"),
			APIKey:        getEnv("BANKRAIL_API_KEY", ""),
			WebhookSecret: getEnv("BANKRAIL_WEBHOOK_SECRET", ""),
		},
		CoreBanking: ProviderConfig{
			BaseURL:       getEnv("COREBANK_URL", "https://api.corebank.example.com"),
			APIKey:        getEnv("COREBANK_API_KEY", ""),
			WebhookSecret: getEnv("COREBANK_WEBHOOK_SECRET", ""),
		},
		CardNetwork: ProviderConfig{
			BaseURL:       getEnv("CARDNET_URL", "https://sandbox.cardnet.example.com"),
			APIKey:        getEnv("CARDNET_API_KEY", ""),
			WebhookSecret: getEnv("CARDNET_WEBHOOK_SECRET", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

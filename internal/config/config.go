package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL  string
	ServerPort   string
	BaseURL      string
	FrontendURL  string
	EnableHSTS   bool
	RedisURL     string
	RabbitMQURL  string
	RateLimit    string
	CORSOrigins  []string
	AdminEmails  []string
	PricingFile  string
	YouTubeKey   string
	RunMigration bool

	AIProvider string
	AIModel    string
	AIKey      string
	AIBaseURL  string

	OIDCIssuer       string
	OIDCJWKSURL      string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCAuthURL      string
	OIDCTokenURL     string
	OIDCRedirectURL  string

	FreeDailyVideoLimit     int
	ChatTranscriptCharLimit int
	SummaryWordLimit        int
	ChatStreamTimeout       time.Duration

	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
	OTELInsecure     bool
	OTELSampleRatio  float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:   getEnvBool("ENABLE_HSTS", false),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:  getEnv("RABBITMQ_URL", ""),
		RateLimit:    getEnv("RATE_LIMIT", "60-M"),
		CORSOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AdminEmails:  getEnvList("ADMIN_EMAILS", nil),
		PricingFile:  getEnv("PRICING_FILE", ""),
		YouTubeKey:   getEnv("YOUTUBE_API_KEY", ""),
		RunMigration: getEnvBool("RUN_MIGRATIONS", true),

		AIProvider: getEnv("AI_PROVIDER", "google"),
		AIModel:    getEnv("AI_MODEL", "gemini-2.0-flash-001"),
		AIKey:      getEnv("AI_API_KEY", ""),
		AIBaseURL:  getEnv("AI_BASE_URL", ""),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCJWKSURL:      getEnv("OIDC_JWKS_URL", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCAuthURL:      getEnv("OIDC_AUTH_URL", ""),
		OIDCTokenURL:     getEnv("OIDC_TOKEN_URL", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),

		FreeDailyVideoLimit:     getEnvInt("FREE_DAILY_VIDEO_LIMIT", 1),
		ChatTranscriptCharLimit: getEnvInt("CHAT_TRANSCRIPT_CHAR_LIMIT", 20000),
		SummaryWordLimit:        getEnvInt("SUMMARY_WORD_LIMIT", 4000),
		ChatStreamTimeout:       getEnvDuration("CHAT_STREAM_TIMEOUT", 2*time.Minute),

		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OTELSampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.FreeDailyVideoLimit < 0 {
		return nil, fmt.Errorf("FREE_DAILY_VIDEO_LIMIT must not be negative")
	}

	return cfg, nil
}

// IsAdmin reports whether the given email is configured as an administrator
func (c *Config) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range c.AdminEmails {
		if strings.ToLower(admin) == email {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"os"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	TablePrefix string
	CORSOrigins string
	// Session auth (browser REST endpoints)
	SessionJWKSURL string
	// Webhook / voice platform
	UserTokenSecret string
	WebhookSecret   string
	VapiAPIKey      string
	VapiAssistantID string
	// Market data
	FinnhubAPIKey  string
	FinnhubBaseURL string
	// Demo mode: maps unauthenticated, non-browser webhook calls to a shared user.
	// Never enabled in production.
	AllowDemoUser bool
	Debug         bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		TablePrefix:     tablePrefix,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		SessionJWKSURL:  getEnv("SESSION_JWKS_URL", ""),
		UserTokenSecret: getEnv("USER_TOKEN_SECRET", ""),
		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
		VapiAPIKey:      getEnv("VAPI_SECRET_KEY", ""),
		VapiAssistantID: getEnv("VAPI_ASSISTANT_ID", ""),
		FinnhubAPIKey:   getEnv("FINNHUB_API_KEY", ""),
		FinnhubBaseURL:  getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
		AllowDemoUser:   env != "prod" && getEnv("ALLOW_DEMO_USER", "false") == "true",
		Debug:           getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// IsProduction reports whether production hardening applies:
// no user hints, no query-string tokens, no demo fallback.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

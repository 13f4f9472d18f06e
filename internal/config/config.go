package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client and mock-server configuration.
type Config struct {
	APIBaseURL  string
	HTTPTimeout time.Duration
	LogLevel    string
	LogFormat   string

	// TokenFile is where the auth context persists the session token and
	// user payload between runs (the CLI equivalent of localStorage).
	TokenFile string

	// WarningThreshold is how much remaining time triggers the one-shot
	// "time is running out" notification during an exam attempt.
	WarningThreshold time.Duration

	// Mock API server settings.
	MockPort   string
	GinMode    string
	JWTSecret  string
	JWTExpiry  time.Duration
	BcryptCost int
	// AllowedOrigins controls CORS on the mock server. Empty means all
	// origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:9090/api"),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		TokenFile:        getEnv("TOKEN_FILE", defaultTokenFile()),
		WarningThreshold: time.Duration(getEnvInt("EXAM_WARNING_MINUTES", 5)) * time.Minute,
		MockPort:         getEnv("MOCK_PORT", "9090"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		JWTSecret:        getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:        time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		BcryptCost:       getEnvInt("BCRYPT_COST", 6),
		AllowedOrigins:   parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".exstem-session.json"
	}
	return home + "/.exstem-session.json"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

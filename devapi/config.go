package devapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime settings for the development API process.
type Config struct {
	Port                        string        // HTTP listen port (e.g., "3000")
	SessionKey                  string        // Cookie signing key for browser sessions
	TokenSecret                 string        // HMAC secret for issued access tokens
	TokenTTL                    time.Duration // lifetime of an access token
	CookieSecure                bool          // Whether to set Secure flag on session cookie
	CookieSameSite              string        // SameSite policy: Strict/Lax/None
	LogDir                      string        // Directory to write application logs
	DatabaseURL                 string        // PostgreSQL DSN; empty keeps everything in memory
	RedisURL                    string        // Redis URL for token revocation; empty keeps it in memory
	AllowedOrigins              []string      // allowed origins for CORS; "*" allows any
	BootstrapOperatorEnabled    bool          // whether to create the first operator account at startup
	BootstrapOperatorEmail      string        // email of the bootstrap operator
	InitialOperatorPasswordPath string        // where to write the generated password (if empty -> log output)
	SeedFile                    string        // optional YAML file with catalog types and catalogs
}

// Load populates Config from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:                        firstNonEmpty(os.Getenv("PORT"), "3000"),
		SessionKey:                  firstNonEmpty(os.Getenv("SESSION_KEY"), "change-this-session-key"),
		TokenSecret:                 firstNonEmpty(os.Getenv("TOKEN_SECRET"), "change-this-token-secret"),
		TokenTTL:                    time.Duration(intFromEnv("TOKEN_TTL_SEC", 18000)) * time.Second,
		CookieSecure:                boolFromEnv("COOKIE_SECURE", false),
		CookieSameSite:              firstNonEmpty(os.Getenv("COOKIE_SAMESITE"), "Strict"),
		LogDir:                      firstNonEmpty(os.Getenv("LOG_DIR"), "/var/log/kakariko"),
		DatabaseURL:                 firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("POSTGRES_URL")),
		RedisURL:                    os.Getenv("REDIS_URL"),
		AllowedOrigins:              parseCSV(firstNonEmpty(os.Getenv("ALLOWED_ORIGINS"), "*")),
		BootstrapOperatorEnabled:    boolFromEnv("BOOTSTRAP_OPERATOR", true),
		BootstrapOperatorEmail:      firstNonEmpty(os.Getenv("BOOTSTRAP_OPERATOR_EMAIL"), "admin@kakariko.local"),
		InitialOperatorPasswordPath: os.Getenv("INITIAL_OPERATOR_PASSWORD_PATH"),
		SeedFile:                    os.Getenv("SEED_FILE"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// boolFromEnv reads a boolean from env var name, falling back to defaultVal when empty or invalid.
func boolFromEnv(name string, defaultVal bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// intFromEnv reads an int from env var name, falling back to defaultVal when empty or invalid.
func intFromEnv(name string, defaultVal int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// parseCSV splits comma-separated list and trims spaces; empty entries are skipped.
func parseCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Package config loads and validates all environment variables at startup.
// Every other package receives typed values — nothing reads os.Getenv directly.
// Per-client credentials are the exception: the registry resolves those
// through the getenv function passed to it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Email transports.
const (
	TransportAPI  = "api"
	TransportSMTP = "smtp"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port       string // default "3000"
	Env        string // "development" | "staging" | "production"
	CORSOrigin string // default "*"; comma-separated list allowed
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP. Only
	// enable it behind a proxy that overwrites those headers.
	TrustProxy bool

	// ── Logging ───────────────────────────────────────────────────────────────
	LogLevel string // "debug" | "info" | "warn" | "error"
	LogFile  string // default "logs/app.log"; empty disables the file

	// ── Clients ───────────────────────────────────────────────────────────────
	// ClientsFile is a YAML registry. Empty selects the built-in clients.
	ClientsFile string

	// ── Rate limiting ─────────────────────────────────────────────────────────
	RateLimitWindow time.Duration // default 15m
	RateLimitMax    int           // default 100 requests per window per IP
	// RedisURL selects the shared limiter. Empty keeps counters in memory.
	RedisURL string

	// ── Email ─────────────────────────────────────────────────────────────────
	EmailTransport   string // "api" (default) | "smtp"
	ResendBaseURL    string // default "https://api.resend.com"
	SMTPHost         string // default "smtp.resend.com"
	SMTPPort         int    // default 465
	SMTPUser         string // default "resend"
	EmailSendTimeout time.Duration
}

// Load reads all environment variables and returns a validated Config.
// It loads a .env file from the working directory when present, so plain
// `go run ./cmd/api` works in development without any wrapper.
// Real environment variables always take precedence over .env values.
func Load() (*Config, error) {
	// Missing file is fine; godotenv never overrides variables already set.
	_ = godotenv.Load()

	c := &Config{
		Port:             getEnv("PORT", "3000"),
		Env:              getEnv("ENV", getEnv("NODE_ENV", "development")),
		CORSOrigin:       getEnv("CORS_ORIGIN", "*"),
		TrustProxy:       getEnvAsBool("TRUST_PROXY", false),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:          getEnvAllowEmpty("LOG_FILE", "logs/app.log"),
		ClientsFile:      os.Getenv("CLIENTS_FILE"),
		RateLimitWindow:  getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:     getEnvAsInt("RATE_LIMIT_MAX", 100),
		RedisURL:         os.Getenv("REDIS_URL"),
		EmailTransport:   strings.ToLower(getEnv("EMAIL_TRANSPORT", TransportAPI)),
		ResendBaseURL:    getEnv("RESEND_BASE_URL", "https://api.resend.com"),
		SMTPHost:         getEnv("SMTP_HOST", "smtp.resend.com"),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 465),
		SMTPUser:         getEnv("SMTP_USER", "resend"),
		EmailSendTimeout: getEnvAsDuration("EMAIL_SEND_TIMEOUT", 15*time.Second),
	}

	return c, c.validate()
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CORSOrigins splits CORSOrigin into the list go-chi/cors expects.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func (c *Config) validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be a number, got %q", c.Port))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", c.LogLevel))
	}

	switch c.EmailTransport {
	case TransportAPI, TransportSMTP:
	default:
		errs = append(errs, fmt.Errorf("EMAIL_TRANSPORT must be %q or %q, got %q",
			TransportAPI, TransportSMTP, c.EmailTransport))
	}

	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.RateLimitMax <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX must be positive"))
	}
	if c.EmailSendTimeout <= 0 {
		errs = append(errs, errors.New("EMAIL_SEND_TIMEOUT must be positive"))
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT out of range: %d", c.SMTPPort))
	}

	return errors.Join(errs...)
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	// A plain integer is milliseconds (RATE_LIMIT_WINDOW=900000).
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Millisecond
	}
	// Fall back to Go duration syntax: "30s", "5m", "1h", etc.
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}

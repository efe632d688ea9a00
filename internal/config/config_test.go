package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp keeps a developer's .env out of the test.
func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	for _, k := range []string{
		"PORT", "ENV", "NODE_ENV", "CORS_ORIGIN", "TRUST_PROXY", "LOG_LEVEL", "CLIENTS_FILE",
		"RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX", "REDIS_URL", "EMAIL_TRANSPORT",
		"RESEND_BASE_URL", "SMTP_HOST", "SMTP_PORT", "SMTP_USER", "EMAIL_SEND_TIMEOUT",
	} {
		t.Setenv(k, "")
	}

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", c.Port)
	assert.Equal(t, "development", c.Env)
	assert.Equal(t, "*", c.CORSOrigin)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 15*time.Minute, c.RateLimitWindow)
	assert.Equal(t, 100, c.RateLimitMax)
	assert.Equal(t, TransportAPI, c.EmailTransport)
	assert.Equal(t, "https://api.resend.com", c.ResendBaseURL)
	assert.Equal(t, "smtp.resend.com", c.SMTPHost)
	assert.Equal(t, 465, c.SMTPPort)
	assert.Equal(t, "resend", c.SMTPUser)
	assert.Equal(t, 15*time.Second, c.EmailSendTimeout)
	assert.False(t, c.IsProduction())
	assert.False(t, c.TrustProxy, "forwarded headers are ignored unless enabled")
}

func TestLoad_Overrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "8081")
	t.Setenv("ENV", "production")
	t.Setenv("RATE_LIMIT_WINDOW", "900000")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("EMAIL_TRANSPORT", "SMTP")
	t.Setenv("EMAIL_SEND_TIMEOUT", "3s")
	t.Setenv("LOG_FILE", "")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("TRUST_PROXY", "true")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", c.Port)
	assert.True(t, c.IsProduction())
	assert.Equal(t, 15*time.Minute, c.RateLimitWindow, "plain integers are milliseconds")
	assert.Equal(t, 5, c.RateLimitMax)
	assert.Equal(t, TransportSMTP, c.EmailTransport)
	assert.Equal(t, 3*time.Second, c.EmailSendTimeout)
	assert.Empty(t, c.LogFile, "explicitly empty disables the log file")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins())
	assert.True(t, c.TrustProxy)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	c := &Config{
		Port:             "http",
		LogLevel:         "loud",
		EmailTransport:   "pigeon",
		RateLimitWindow:  0,
		RateLimitMax:     0,
		EmailSendTimeout: time.Second,
		SMTPPort:         465,
	}

	err := c.validate()
	require.Error(t, err)
	for _, want := range []string{"PORT", "LOG_LEVEL", "EMAIL_TRANSPORT", "RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NotContains(t, err.Error(), "EMAIL_SEND_TIMEOUT")
}

func TestCORSOrigins_EmptyFallsBackToWildcard(t *testing.T) {
	assert.Equal(t, []string{"*"}, (&Config{CORSOrigin: " , "}).CORSOrigins())
}

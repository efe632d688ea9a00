package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nyashahama/shipment-notifier/internal/api"
	"github.com/nyashahama/shipment-notifier/internal/config"
	"github.com/nyashahama/shipment-notifier/internal/email"
	"github.com/nyashahama/shipment-notifier/internal/metrics"
	"github.com/nyashahama/shipment-notifier/internal/notify"
	"github.com/nyashahama/shipment-notifier/internal/ratelimit"
	"github.com/nyashahama/shipment-notifier/internal/registry"
	"github.com/nyashahama/shipment-notifier/internal/transport"
)

func main() {
	// ── Config ────────────────────────────────────────────────────────────────
	// Loaded before the logger so LOG_LEVEL and LOG_FILE apply from the start.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		slog.Error("logger", "error", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "email_transport", cfg.EmailTransport)

	// ── Clients ───────────────────────────────────────────────────────────────
	clients, err := registry.Load(cfg.ClientsFile, os.Getenv)
	if err != nil {
		return fmt.Errorf("clients: %w", err)
	}
	for _, p := range clients.Profiles() {
		if !p.HasCredentials() {
			logger.Warn("client has no Resend API key; deliveries will fail", "client_id", p.ID, "name", p.Name)
		}
	}
	logger.Info("clients loaded", "count", clients.Len(), "file", cfg.ClientsFile)

	// ── Metrics ───────────────────────────────────────────────────────────────
	m := metrics.New()

	// ── Email ─────────────────────────────────────────────────────────────────
	provider, err := email.NewProvider(email.Options{
		Transport:     cfg.EmailTransport,
		ResendBaseURL: cfg.ResendBaseURL,
		SMTPHost:      cfg.SMTPHost,
		SMTPPort:      cfg.SMTPPort,
		SMTPUser:      cfg.SMTPUser,
		Timeout:       cfg.EmailSendTimeout,
	})
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}

	dispatcher := notify.NewDispatcher(clients, provider, m, logger, cfg.EmailSendTimeout)

	// ── Rate limiting ─────────────────────────────────────────────────────────
	// Redis when configured so replicas share one budget; in-process otherwise.
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := ratelimit.NewRedisClient(pingCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, "", cfg.RateLimitMax, cfg.RateLimitWindow)
		logger.Info("rate limit: redis", "max", cfg.RateLimitMax, "window", cfg.RateLimitWindow)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		logger.Info("rate limit: in-memory", "max", cfg.RateLimitMax, "window", cfg.RateLimitWindow)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		clients,
		dispatcher,
		limiter,
		m,
		api.Config{
			Env:             cfg.Env,
			CORSOrigins:     cfg.CORSOrigins(),
			TrustProxy:      cfg.TrustProxy,
			RateLimitWindow: cfg.RateLimitWindow,
		},
		logger,
	)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal; transport drains in-flight requests.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("webhook endpoint", "url", fmt.Sprintf("http://localhost:%s/webhook/{clientId}/shipment", cfg.Port))
	logger.Info("health check", "url", fmt.Sprintf("http://localhost:%s/health", cfg.Port))

	if err := transport.Serve(ctx, ":"+cfg.Port, handler, logger); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger: JSON in production, text elsewhere.
// Output goes to stdout and, when LOG_FILE is set, is appended to that file.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	var (
		out     io.Writer = os.Stdout
		closeFn           = func() {}
	)
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(out, opts)), closeFn, nil
	}
	return slog.New(slog.NewTextHandler(out, opts)), closeFn, nil
}

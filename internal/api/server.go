// Package api implements the HTTP layer for the shipment notifier.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nyashahama/shipment-notifier/internal/metrics"
	"github.com/nyashahama/shipment-notifier/internal/notify"
	"github.com/nyashahama/shipment-notifier/internal/ratelimit"
	"github.com/nyashahama/shipment-notifier/internal/registry"
	"github.com/nyashahama/shipment-notifier/internal/shipment"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development". Outside production
	// unhandled errors are echoed in the 500 body.
	Env string

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string

	// RateLimitWindow is reported to throttled callers as retryAfter.
	RateLimitWindow time.Duration

	// TrustProxy keys rate limiting on X-Forwarded-For / X-Real-IP. When
	// false the limiter only sees the TCP peer address.
	TrustProxy bool

	// RequestTimeout bounds a whole request. Defaults to 30s.
	RequestTimeout time.Duration
}

// Dispatcher sends the delivery email for one event.
// *notify.Dispatcher satisfies it; tests inject a stub.
type Dispatcher interface {
	Dispatch(ctx context.Context, clientID string, ev shipment.Event) notify.Outcome
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// clients is read-only after startup.
	clients *registry.Registry

	// dispatcher turns DELIVERED events into emails.
	dispatcher Dispatcher

	// limiter throttles /webhook per caller IP. nil disables throttling.
	limiter ratelimit.Limiter

	// metrics may be nil.
	metrics *metrics.Metrics

	cfg     Config
	logger  *slog.Logger
	started time.Time
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to transport.Serve or http.ListenAndServe.
func NewServer(
	clients *registry.Registry,
	dispatcher Dispatcher,
	limiter ratelimit.Limiter,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		clients:    clients,
		dispatcher: dispatcher,
		limiter:    limiter,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
		started:    time.Now(),
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.metrics.Middleware)
	r.Use(s.loggerMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         86400,
	}))
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/", s.handleRoot)
	r.Get("/hello", s.handleHello)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/health", func(r chi.Router) {
		r.Get("/", s.handleHealth)
		r.Get("/clients", s.handleListClients)
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// ── Webhooks ──────────────────────────────────────────────────────────────
	r.Route("/webhook", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Post("/{clientId}/shipment", s.handleShipmentWebhook)
		r.Get("/{clientId}/status", s.handleWebhookStatus)
	})

	return r
}

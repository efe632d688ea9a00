package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ─── RATE LIMIT ───────────────────────────────────────────────────────────────

const rateLimitMessage = "Too many requests from this IP, please try again later."

// rateLimitMiddleware applies the fixed-window limiter per caller IP.
// Limiter errors fail open: an unavailable Redis must not take webhooks down.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		res, err := s.limiter.Allow(r.Context(), ip)
		if err != nil {
			s.logger.Error("rate limit: limiter unavailable", "error", err, logField(r))
			next.ServeHTTP(w, r)
			return
		}

		reset := ceilSeconds(res.ResetAfter)
		w.Header().Set("RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		w.Header().Set("RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(reset))

		if !res.Allowed {
			s.metrics.RateLimited()
			s.logger.Warn("rate limit exceeded",
				"ip", ip,
				"user_agent", r.UserAgent(),
				"path", r.URL.Path,
				logField(r),
			)

			w.Header().Set("Retry-After", strconv.Itoa(reset))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, map[string]any{
				"success":    false,
				"message":    rateLimitMessage,
				"retryAfter": ceilSeconds(s.cfg.RateLimitWindow),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address without its port. Behind a trusted proxy
// middleware.RealIP has already replaced it with the forwarded address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// ─── RECOVER ──────────────────────────────────────────────────────────────────

// recoverMiddleware turns a panic into the JSON 500 envelope and logs it with
// enough request context to reproduce. Outside production the panic value is
// echoed in the body.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			s.logger.Error("unhandled error",
				"error", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
				"path", r.URL.Path,
				"method", r.Method,
				"ip", clientIP(r),
				logField(r),
			)

			body := map[string]any{
				"success":   false,
				"message":   "Internal server error",
				"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			}
			if s.cfg.Env != "production" {
				body["error"] = fmt.Sprint(rec)
			}
			respond(w, http.StatusInternalServerError, body)
		}()

		next.ServeHTTP(w, r)
	})
}

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RESPONSE HELPERS ─────────────────────────────────────────────────────────

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes the standard {success:false, message} envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, envelope{Message: message})
}

// envelope is the response shape shared by every JSON endpoint. Optional
// members are omitted when empty.
type envelope struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message,omitempty"`
	Client        string   `json:"client,omitempty"`
	EmailID       string   `json:"emailId,omitempty"`
	Status        string   `json:"status,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// ─── REQUEST PARSING HELPERS ─────────────────────────────────────────────────

var errNotObject = errors.New("request body must be a JSON object")

// decode JSON-decodes r.Body into dst. The body must be a single JSON object;
// unknown fields are accepted since carriers add to their payloads freely.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return errNotObject
	}
	return json.Unmarshal(raw, dst)
}

// logField returns a slog.Attr using the request ID for correlation.
func logField(r *http.Request) slog.Attr {
	return slog.String("request_id", middleware.GetReqID(r.Context()))
}

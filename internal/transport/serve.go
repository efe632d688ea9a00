// Package transport runs the HTTP API and a gRPC health service on one port.
// Load balancers that only speak gRPC health checks can probe the same
// address the carriers post webhooks to.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ShutdownTimeout bounds the graceful drain of in-flight HTTP requests.
const ShutdownTimeout = 20 * time.Second

// Serve listens on addr and blocks until ctx is cancelled or a server fails.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return ServeListener(ctx, l, handler, logger)
}

// ServeListener is Serve on an existing listener, which it takes ownership of.
func ServeListener(ctx context.Context, l net.Listener, handler http.Handler, logger *slog.Logger) error {
	m := cmux.New(l)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second, // email sends can take a while
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gs.Serve(grpcL); err != nil && gctx.Err() == nil {
			return fmt.Errorf("transport: grpc: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && gctx.Err() == nil {
			return fmt.Errorf("transport: http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := m.Serve(); err != nil && gctx.Err() == nil {
			return fmt.Errorf("transport: mux: %w", err)
		}
		return nil
	})

	logger.Info("transport: listening", "addr", l.Addr().String())

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("transport: shutting down")

		hs.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		gs.GracefulStop()
		m.Close()

		if err != nil {
			return fmt.Errorf("transport: http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

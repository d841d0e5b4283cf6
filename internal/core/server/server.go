// Package server wires the HTTP surface of the density service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citygrid/hexdensity/internal/core/config"
	"github.com/citygrid/hexdensity/internal/core/health"
	"github.com/citygrid/hexdensity/internal/core/middleware"
	"github.com/citygrid/hexdensity/internal/core/router"
)

// Run sets up routes and serves until ctx is canceled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, p router.Runner, ready health.ReadinessReporter) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.With(middleware.Metrics("/density")).
		Get("/density", router.HandleDensity(logger, cfg.H3Res, p))
	r.With(middleware.Metrics("/density/map")).
		Get("/density/map", router.HandleDensityMap(logger, cfg.H3Res, p))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Package server assembles the HTTP handler and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/estate-search/internal/core/config"
	"github.com/mohammed-shakir/estate-search/internal/core/health"
	middleware "github.com/mohammed-shakir/estate-search/internal/core/middleware"
	"github.com/mohammed-shakir/estate-search/internal/core/router"
	"github.com/mohammed-shakir/estate-search/internal/metrics"
)

// NewHandler wires middlewares, probes, metrics and the API routes.
func NewHandler(cfg config.Config, logger *slog.Logger, prov *metrics.Provider, deps router.Deps) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Session())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(cfg.KVOpTimeout, map[string]health.Pinger{"kv": deps.KV}))
	if prov.Enabled() {
		r.Method(http.MethodGet, prov.Path(), prov.Handler())
	}

	if deps.Logger == nil {
		deps.Logger = logger
	}
	r.Mount("/", router.New(deps))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

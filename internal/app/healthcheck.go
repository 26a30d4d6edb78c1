package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// healthHandler reports liveness together with the transport state.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.Header().Set("X-Transport-State", a.engine.State().String())
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// healthRouter serves /health and the Prometheus /metrics endpoint.
func (a *App) healthRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", a.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.prometheus, promhttp.HandlerOpts{}))
	return r
}

func (a *App) newHealthcheckServer() *http.Server {
	return &http.Server{
		Handler:           a.healthRouter(),
		ReadHeaderTimeout: shutdownTimeout,
	}
}

// serveHealthcheck runs the health check server on ln until it is shut down.
func (a *App) serveHealthcheck(ln net.Listener) error {
	a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://%s/health", ln.Addr()))
	if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health check server failed: %w", err)
	}
	return nil
}

func (a *App) closeHealthcheck() error {
	if a.httpServer == nil {
		a.logger.Debug("Health check server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("🩺 Shutting down health check server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	a.logger.Debug("Health check server shut down gracefully.")
	return nil
}

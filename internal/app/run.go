package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/vk/xfiber/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Run starts the application and blocks until ctx is cancelled or the
// health check server fails, then closes everything it started.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if err := a.Start(ctx); err != nil {
		return errors.Join(err, a.Close())
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.config.HealthcheckPort > 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.HealthcheckPort))
		if err != nil {
			return errors.Join(fmt.Errorf("failed to listen for health checks: %w", err), a.Close())
		}
		a.httpServer = a.newHealthcheckServer()
		g.Go(func() error { return a.serveHealthcheck(ln) })
	} else {
		a.logger.Warn("Health check server not started: disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("🏁 Shutting down.")
		return a.closeHealthcheck()
	})

	err := errors.Join(g.Wait(), a.Close())
	a.logger.Debug("App.Run method finished.")
	return err
}

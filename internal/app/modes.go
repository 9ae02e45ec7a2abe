package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"mcpaggregator/internal/session"
	"mcpaggregator/pkg/logging"
)

// repositoryDiagnosticsInterval controls how often the active session count
// is logged.
const repositoryDiagnosticsInterval = 5 * time.Minute

// run starts the downstream server, blocks until an interrupt signal or the
// parent context is cancelled, then drains upstreams and sessions.
func run(ctx context.Context, services *Services) error {
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := services.Server.Start(runCtx); err != nil {
		logging.Error("app", err, "failed to start downstream server")
		return err
	}
	go services.watchConfig(runCtx)
	go session.StartRepositoryDiagnostics(runCtx, services.Repository, repositoryDiagnosticsInterval)

	logging.Info("app", "aggregator listening, press Ctrl+C to stop")
	<-runCtx.Done()

	logging.Info("app", "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := services.Server.Stop(shutdownCtx); err != nil {
		logging.Warn("app", "error stopping downstream server: %v", err)
	}
	if err := services.Close(); err != nil {
		logging.Warn("app", "error closing services: %v", err)
	}
	return nil
}

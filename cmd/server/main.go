package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/FACorreiaa/loci-safety-api/cmd/api"
	"github.com/FACorreiaa/loci-safety-api/pkg/config"
	"github.com/FACorreiaa/loci-safety-api/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	obs := cfg.Observability
	logger := observability.NewLogger(os.Stdout, obs.ServiceName, obs.LogFormat, obs.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Enabled:     obs.TracingEnabled,
		Endpoint:    obs.OTLPEndpoint,
		ServiceName: obs.ServiceName,
		SampleRatio: obs.SampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}

	deps, err := api.InitDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if deps.Warmup != nil {
		deps.Warmup.Start()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.SetupRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.Bool("mock_mode", cfg.Engine.MockMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if deps.Warmup != nil {
		if err := deps.Warmup.Stop(shutdownCtx); err != nil {
			logger.Warn("warm-up did not stop cleanly", slog.Any("error", err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := observability.Flush(shutdownCtx, shutdownTracer); err != nil {
		logger.Warn("failed to flush traces", slog.Any("error", err))
	}
	logger.Info("server stopped")
	return nil
}

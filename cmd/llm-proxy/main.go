package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/app"
	"github.com/tracegate/llm-proxy/config"
	"github.com/tracegate/llm-proxy/observability"
	"github.com/tracegate/llm-proxy/routes"
)

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

// initLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
// It runs before configuration loads so config errors get structured logs.
func initLogger() (*zap.Logger, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "json"
	}
	return observability.NewLogger(level, format)
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	metricsServer := startMetricsServer(cfg, deps, logger, serverErr)

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", zap.Error(err))
		}
	}

	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// startMetricsServer serves /metrics on its own port when one is
// configured, keeping scrapes off the proxy path.
func startMetricsServer(cfg *config.Config, deps *app.Dependencies, logger *zap.Logger, errCh chan<- error) *http.Server {
	if !cfg.Observability.MetricsEnabled || cfg.Observability.MetricsPort == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Metrics.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
		Handler: mux,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return server
}

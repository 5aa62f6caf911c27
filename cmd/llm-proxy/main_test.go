package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tracegate/llm-proxy/app"
	"github.com/tracegate/llm-proxy/config"
)

func TestMain(m *testing.M) {
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "error")

	code := m.Run()

	os.Exit(code)
}

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "info")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("LOG_FORMAT", "console")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "invalid")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})
}

func TestStartMetricsServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	errCh := make(chan error, 1)

	t.Run("nil when metrics are disabled", func(t *testing.T) {
		cfg := &config.Config{}
		deps, err := app.NewDependencies(context.Background(), cfg, logger)
		require.NoError(t, err)
		defer func() { _ = deps.Close(context.Background()) }()

		assert.Nil(t, startMetricsServer(cfg, deps, logger, errCh))
	})

	t.Run("nil without a dedicated port", func(t *testing.T) {
		cfg := &config.Config{
			Observability: config.ObservabilityConfig{MetricsEnabled: true},
		}
		deps, err := app.NewDependencies(context.Background(), cfg, logger)
		require.NoError(t, err)
		defer func() { _ = deps.Close(context.Background()) }()

		assert.Nil(t, startMetricsServer(cfg, deps, logger, errCh))
	})
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tracegate/llm-proxy/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Providers: config.ProvidersConfig{
			OpenAI:    config.OpenAIConfig{APIKey: "sk-test"},
			Anthropic: config.AnthropicConfig{APIKey: "sk-ant-test", Version: "2023-06-01"},
			Timeout:   30 * time.Second,
		},
		Environment: "test",
	}
}

func TestNewDependencies(t *testing.T) {
	t.Run("wires all components without optional services", func(t *testing.T) {
		ctx := context.Background()
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, testConfig(), logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.Logger)
		assert.NotNil(t, deps.Metrics)
		assert.NotNil(t, deps.Estimator)
		assert.NotNil(t, deps.Proxy)

		require.NotNil(t, deps.Registry)
		assert.Equal(t, 2, deps.Registry.Count())
		assert.Equal(t, []string{"anthropic", "openai"}, deps.Registry.Names())

		// Ledger and tracing stay off without configuration.
		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.Usage)
		require.NotNil(t, deps.Langfuse)
		assert.False(t, deps.Langfuse.Enabled())

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("registers only configured providers", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig()
		cfg.Providers.Anthropic.APIKey = ""
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		defer func() { _ = deps.Close(ctx) }()

		assert.Equal(t, 1, deps.Registry.Count())
		assert.Equal(t, []string{"openai"}, deps.Registry.Names())
	})

	t.Run("starts with no providers at all", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig()
		cfg.Providers.OpenAI.APIKey = ""
		cfg.Providers.Anthropic.APIKey = ""
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		defer func() { _ = deps.Close(ctx) }()

		assert.Equal(t, 0, deps.Registry.Count())
		assert.NotNil(t, deps.Proxy)
	})
}

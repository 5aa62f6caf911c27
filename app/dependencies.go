package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/config"
	"github.com/tracegate/llm-proxy/langfuse"
	"github.com/tracegate/llm-proxy/observability"
	"github.com/tracegate/llm-proxy/repositories"
	"github.com/tracegate/llm-proxy/repositories/postgres"
	"github.com/tracegate/llm-proxy/services/pricing"
	"github.com/tracegate/llm-proxy/services/providers"
	"github.com/tracegate/llm-proxy/services/providers/anthropic"
	"github.com/tracegate/llm-proxy/services/providers/openai"
	"github.com/tracegate/llm-proxy/services/proxy"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Usage ledger, nil when the database is not configured
	DB    *postgres.DB
	Usage repositories.UsageRepository

	// LLM routing
	Registry  *providers.Registry
	Estimator *pricing.Estimator

	// Tracing
	Langfuse *langfuse.Client

	// Pipeline
	Proxy *proxy.Service
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initTracing(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	deps.Estimator = pricing.DefaultEstimator()
	deps.Proxy = proxy.NewService(deps.Registry, deps.Estimator, deps.Metrics, deps.Langfuse, deps.Usage, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the optional PostgreSQL usage ledger
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Info("usage ledger disabled")
		return nil
	}

	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.DB = db
	d.Usage = postgres.NewUsageRepository(db, d.Logger)
	return nil
}

// initProviders registers every configured provider adapter
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	if cfg.Providers.OpenAI.APIKey != "" {
		adapter := openai.New(providers.ProviderConfig{
			APIKey:     cfg.Providers.OpenAI.APIKey,
			BaseURL:    cfg.Providers.OpenAI.BaseURL,
			Timeout:    cfg.Providers.Timeout,
			MaxRetries: cfg.Providers.MaxRetries,
			RetryDelay: cfg.Providers.RetryDelay,
		})
		if err := registry.Register(adapter); err != nil {
			return err
		}
		d.Logger.Info("registered OpenAI provider")
	}

	if cfg.Providers.Anthropic.APIKey != "" {
		adapter := anthropic.New(providers.ProviderConfig{
			APIKey:     cfg.Providers.Anthropic.APIKey,
			BaseURL:    cfg.Providers.Anthropic.BaseURL,
			Version:    cfg.Providers.Anthropic.Version,
			Timeout:    cfg.Providers.Timeout,
			MaxRetries: cfg.Providers.MaxRetries,
			RetryDelay: cfg.Providers.RetryDelay,
		})
		if err := registry.Register(adapter); err != nil {
			return err
		}
		d.Logger.Info("registered Anthropic provider")
	}

	if registry.Count() == 0 {
		d.Logger.Warn("no LLM providers configured")
	}

	d.Registry = registry
	return nil
}

// initTracing initializes the Langfuse client and its background worker
func (d *Dependencies) initTracing(cfg *config.Config) error {
	client := langfuse.NewClient(langfuse.Config{
		PublicKey:     cfg.Langfuse.PublicKey,
		SecretKey:     cfg.Langfuse.SecretKey,
		Host:          cfg.Langfuse.Host,
		Enabled:       cfg.Langfuse.Active(),
		FlushInterval: cfg.Langfuse.FlushInterval,
		QueueSize:     cfg.Langfuse.QueueSize,
		BatchSize:     cfg.Langfuse.BatchSize,
	}, d.Logger)

	if err := client.Start(); err != nil {
		return err
	}

	if client.Enabled() {
		d.Logger.Info("langfuse tracing enabled",
			zap.String("host", cfg.Langfuse.Host))
	} else {
		d.Logger.Info("langfuse tracing disabled")
	}

	d.Langfuse = client
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Langfuse != nil {
		if err := d.Langfuse.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close langfuse client: %w", err))
		} else {
			d.Logger.Info("langfuse client closed")
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

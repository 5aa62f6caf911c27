package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Providers     ProvidersConfig
	Langfuse      LangfuseConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// ProvidersConfig holds LLM provider configurations.
// Retry and timeout settings are shared across providers.
type ProvidersConfig struct {
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// AnthropicConfig holds Anthropic provider configuration
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Version string
}

// LangfuseConfig holds tracing service configuration
type LangfuseConfig struct {
	PublicKey     string
	SecretKey     string
	Host          string
	Enabled       bool
	FlushInterval time.Duration
	QueueSize     int
	BatchSize     int
}

// DatabaseConfig holds the optional PostgreSQL usage ledger configuration.
// The ledger is active only when DATABASE_URL is set and cost tracking is on.
type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	CostTracking     bool
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
	MetricsPort    int // 0 serves /metrics on the main router instead of a dedicated port
	RequestLogging bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("PROXY_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 620*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 600*time.Second),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Version: getEnv("ANTHROPIC_VERSION", "2023-06-01"),
			},
			Timeout:    getEnvAsDuration("PROVIDER_TIMEOUT", 600*time.Second),
			MaxRetries: getEnvAsInt("MAX_RETRIES", 3),
			RetryDelay: getEnvAsDuration("PROVIDER_RETRY_DELAY", time.Second),
		},
		Langfuse: LangfuseConfig{
			PublicKey:     getEnv("LANGFUSE_PUBLIC_KEY", ""),
			SecretKey:     getEnv("LANGFUSE_SECRET_KEY", ""),
			Host:          getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
			Enabled:       getEnvAsBool("LANGFUSE_ENABLED", true),
			FlushInterval: getEnvAsDuration("LANGFUSE_FLUSH_INTERVAL", 5*time.Second),
			QueueSize:     getEnvAsInt("LANGFUSE_QUEUE_SIZE", 512),
			BatchSize:     getEnvAsInt("LANGFUSE_BATCH_SIZE", 64),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			CostTracking:     getEnvAsBool("ENABLE_COST_TRACKING", true),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("ENABLE_PROMETHEUS", true),
			MetricsPort:    getEnvAsInt("PROMETHEUS_PORT", 9090),
			RequestLogging: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format: %s", c.Observability.LogFormat)
	}
	if c.Observability.MetricsEnabled {
		if c.Observability.MetricsPort < 0 || c.Observability.MetricsPort > 65535 {
			return fmt.Errorf("metrics port out of range: %d", c.Observability.MetricsPort)
		}
		if c.Observability.MetricsPort != 0 && c.Observability.MetricsPort == c.Server.Port {
			return fmt.Errorf("metrics port must differ from server port")
		}
	}

	// Provider validation (at least one provider API key required in production)
	if c.IsProduction() {
		if c.Providers.OpenAI.APIKey == "" && c.Providers.Anthropic.APIKey == "" {
			return fmt.Errorf("at least one LLM provider must be configured in production")
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Configured returns true when both ingestion API keys are present.
// Tracing is active only when Enabled and Configured.
func (c *LangfuseConfig) Configured() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Active reports whether traces should actually be emitted.
func (c *LangfuseConfig) Active() bool {
	return c.Enabled && c.Configured()
}

// Enabled reports whether the usage ledger should be wired up.
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != "" && c.CostTracking
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password).
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil {
		return "host=<from DATABASE_URL>"
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddress returns the dedicated metrics server address
func (c *ObservabilityConfig) MetricsAddress() string {
	return fmt.Sprintf(":%d", c.MetricsPort)
}

// Helper functions

// getPort returns the server port from PORT or PROXY_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("PROXY_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

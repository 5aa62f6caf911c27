package providers

import (
	"context"
	"errors"
	"time"
)

// Provider represents a unified LLM provider interface
type Provider interface {
	// Name returns the provider name (e.g., "openai", "anthropic")
	Name() string

	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable checks if the provider is currently reachable
	IsAvailable(ctx context.Context) bool

	// ValidateModel checks if a model is in this provider's catalog
	ValidateModel(model string) error

	// GetModelInfo returns catalog information about a specific model
	GetModelInfo(model string) (ModelInfo, error)

	// ListModels returns all catalog models for this provider
	ListModels() []string
}

// Fallback limits for models outside a provider's catalog.
const (
	DefaultMaxTokens     = 4096
	DefaultContextWindow = 8192
)

// ChatRequest represents a unified chat completion request. Optional
// sampling parameters are pointers so an omitted field is not forwarded as
// a zero value.
type ChatRequest struct {
	Model            string
	Messages         []Message
	MaxTokens        *int
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stop             []string
	User             string
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", "assistant" or "tool"
	Role string `json:"role" validate:"required,oneof=system user assistant tool"`

	// Content is the message text
	Content string `json:"content" validate:"required"`
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	// ID is the unique identifier for this completion
	ID string `json:"id"`

	// Model that produced the completion
	Model string `json:"model"`

	// Provider that handled the request
	Provider string `json:"provider"`

	// Choices contains the completion results
	Choices []Choice `json:"choices"`

	// Usage statistics as reported by the provider
	Usage Usage `json:"usage"`

	// Created is the completion unix timestamp
	Created int64 `json:"created"`
}

// Choice represents a completion choice
type Choice struct {
	Index int `json:"index"`

	Message Message `json:"message"`

	// FinishReason values: "stop", "length", "content_filter", "tool_calls"
	FinishReason string `json:"finish_reason"`
}

// Usage represents token usage statistics.
// TotalTokens is the provider-reported sum of the other two.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelInfo contains catalog metadata about a model. Pricing is USD per
// 1000 tokens.
type ModelInfo struct {
	ID                string  `json:"id"`
	Provider          string  `json:"provider"`
	MaxTokens         int     `json:"max_tokens"`
	ContextWindow     int     `json:"context_window"`
	PricingPrompt     float64 `json:"pricing_prompt_per_1k"`
	PricingCompletion float64 `json:"pricing_completion_per_1k"`
}

// ProviderConfig holds common configuration for provider adapters
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Version of the provider API, for providers that require a version header
	Version string

	// Timeout for a single upstream request
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// RetryDelay between retries, multiplied by the attempt number
	RetryDelay time.Duration
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    600 * time.Second,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// Error codes carried by ProviderError.
const (
	CodeUnauthorized  = "unauthorized"
	CodeRateLimited   = "rate_limited"
	CodeModelNotFound = "model_not_found"
	CodeBadRequest    = "bad_request"
	CodeTimeout       = "timeout"
	CodeUnavailable   = "unavailable"
	CodeAPIError      = "api_error"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is one of the Code* constants
	Code string

	// Message is the error message
	Message string

	// StatusCode is the upstream HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if provErr, ok := err.(*ProviderError); ok {
		return provErr.Retryable
	}
	return false
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr, true
	}
	return nil, false
}

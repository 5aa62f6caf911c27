package proxy

import (
	"time"

	"github.com/tracegate/llm-proxy/services/providers"
)

// CompletionRequest is the OpenAI-compatible chat completion request body
// accepted by the proxy.
type CompletionRequest struct {
	Model    string              `json:"model" validate:"required"`
	Messages []providers.Message `json:"messages" validate:"required,min=1,dive"`

	// Model parameters, forwarded untouched
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP             *float64 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`

	// Stream is accepted for wire compatibility but rejected before proxying
	Stream bool `json:"stream,omitempty"`

	// User is the OpenAI end-user identifier, used as an identity fallback
	User string `json:"user,omitempty"`

	// Metadata carries caller-supplied trace attributes
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CompletionResponse is the OpenAI-compatible chat completion response
// returned by the proxy. Provider is a proxy extension.
type CompletionResponse struct {
	ID       string             `json:"id"`
	Object   string             `json:"object"`
	Created  int64              `json:"created"`
	Model    string             `json:"model"`
	Provider string             `json:"provider,omitempty"`
	Choices  []providers.Choice `json:"choices"`
	Usage    providers.Usage    `json:"usage"`
}

// requestContext carries the per-request state assembled as the pipeline runs
type requestContext struct {
	traceID   string
	userID    string
	sessionID string
	metadata  map[string]any
	provider  string
	started   time.Time
}

// toProviderRequest converts the wire request to the unified provider request
func (r *CompletionRequest) toProviderRequest() *providers.ChatRequest {
	return &providers.ChatRequest{
		Model:            r.Model,
		Messages:         r.Messages,
		MaxTokens:        r.MaxTokens,
		Temperature:      r.Temperature,
		TopP:             r.TopP,
		FrequencyPenalty: r.FrequencyPenalty,
		PresencePenalty:  r.PresencePenalty,
		Stop:             r.Stop,
		User:             r.User,
	}
}

// newCompletionResponse converts a provider response to the wire shape
func newCompletionResponse(resp *providers.ChatResponse) *CompletionResponse {
	created := resp.Created
	if created == 0 {
		created = time.Now().Unix()
	}
	return &CompletionResponse{
		ID:       resp.ID,
		Object:   "chat.completion",
		Created:  created,
		Model:    resp.Model,
		Provider: resp.Provider,
		Choices:  resp.Choices,
		Usage:    resp.Usage,
	}
}

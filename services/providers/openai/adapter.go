package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/tracegate/llm-proxy/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
)

// Adapter implements the Provider interface for the OpenAI chat
// completions API.
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	models     map[string]providers.ModelInfo
}

// New creates a new OpenAI adapter
func New(config providers.ProviderConfig) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = providers.DefaultProviderConfig().Timeout
	}

	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		models:     catalog(),
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return providers.ProviderOpenAI
}

// ChatCompletion performs a chat completion request. Models outside the
// local catalog are still forwarded; the upstream API is the authority on
// what exists.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeBadRequest,
			"failed to encode request", 0, false, err)
	}

	respBody, statusCode, err := a.send(ctx, body)
	if err != nil {
		return nil, err
	}

	if statusCode != http.StatusOK {
		return nil, a.errorFromResponse(statusCode, respBody)
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeAPIError,
			"failed to decode response", statusCode, false, err)
	}

	return a.toUnified(&apiResp), nil
}

// send executes the HTTP exchange with retries on 5xx, 429 and transport
// errors. The request is rebuilt per attempt so the body can be re-read.
func (a *Adapter) send(ctx context.Context, body []byte) ([]byte, int, error) {
	var lastErr error
	var lastStatus int
	var lastBody []byte

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, 0, a.ctxError(ctx)
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			a.config.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, 0, providers.NewProviderError(a.Name(), providers.CodeAPIError,
				"failed to create request", 0, false, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, a.ctxError(ctx)
			}
			lastErr = err
			lastStatus = 0
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			lastStatus = resp.StatusCode
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = nil
			lastStatus = resp.StatusCode
			lastBody = respBody
			continue
		}

		return respBody, resp.StatusCode, nil
	}

	if lastErr != nil {
		return nil, 0, providers.NewProviderError(a.Name(), providers.CodeUnavailable,
			"request failed after retries", lastStatus, true, lastErr)
	}
	return lastBody, lastStatus, nil
}

func (a *Adapter) ctxError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return providers.NewProviderError(a.Name(), providers.CodeTimeout,
			"request timed out", http.StatusGatewayTimeout, true, ctx.Err())
	}
	return providers.NewProviderError(a.Name(), providers.CodeUnavailable,
		"request canceled", 0, false, ctx.Err())
}

// IsAvailable checks if the provider is currently reachable
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ValidateModel checks if a model is in the local catalog
func (a *Adapter) ValidateModel(model string) error {
	if _, exists := a.models[model]; !exists {
		return fmt.Errorf("model %s is not in the openai catalog", model)
	}
	return nil
}

// GetModelInfo returns catalog information about a specific model
func (a *Adapter) GetModelInfo(model string) (providers.ModelInfo, error) {
	info, exists := a.models[model]
	if !exists {
		return providers.ModelInfo{}, fmt.Errorf("model %s not found", model)
	}
	return info, nil
}

// ListModels returns all catalog models, sorted
func (a *Adapter) ListModels() []string {
	models := make([]string, 0, len(a.models))
	for model := range a.models {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// catalog lists the models this adapter reports through the models
// endpoint. Pricing is USD per 1000 tokens.
func catalog() map[string]providers.ModelInfo {
	return map[string]providers.ModelInfo{
		"gpt-4": {
			ID:                "gpt-4",
			Provider:          providers.ProviderOpenAI,
			MaxTokens:         8192,
			ContextWindow:     8192,
			PricingPrompt:     0.03,
			PricingCompletion: 0.06,
		},
		"gpt-4-turbo": {
			ID:                "gpt-4-turbo",
			Provider:          providers.ProviderOpenAI,
			MaxTokens:         4096,
			ContextWindow:     128000,
			PricingPrompt:     0.01,
			PricingCompletion: 0.03,
		},
		"gpt-4o": {
			ID:                "gpt-4o",
			Provider:          providers.ProviderOpenAI,
			MaxTokens:         4096,
			ContextWindow:     128000,
			PricingPrompt:     0.005,
			PricingCompletion: 0.015,
		},
		"gpt-4o-mini": {
			ID:                "gpt-4o-mini",
			Provider:          providers.ProviderOpenAI,
			MaxTokens:         16384,
			ContextWindow:     128000,
			PricingPrompt:     0.00015,
			PricingCompletion: 0.0006,
		},
		"gpt-3.5-turbo": {
			ID:                "gpt-3.5-turbo",
			Provider:          providers.ProviderOpenAI,
			MaxTokens:         4096,
			ContextWindow:     16385,
			PricingPrompt:     0.0005,
			PricingCompletion: 0.0015,
		},
	}
}

// buildRequest converts the unified request to the OpenAI wire format.
// Pointer parameters are forwarded as-is so explicit zero values survive.
func buildRequest(req *providers.ChatRequest) *chatRequest {
	apiReq := &chatRequest{
		Model:            req.Model,
		Messages:         make([]message, len(req.Messages)),
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stop:             req.Stop,
	}
	for i, msg := range req.Messages {
		apiReq.Messages[i] = message{Role: msg.Role, Content: msg.Content}
	}
	if req.User != "" {
		apiReq.User = &req.User
	}
	return apiReq
}

// toUnified converts an OpenAI response to the unified format
func (a *Adapter) toUnified(apiResp *chatResponse) *providers.ChatResponse {
	resp := &providers.ChatResponse{
		ID:       apiResp.ID,
		Model:    apiResp.Model,
		Provider: a.Name(),
		Choices:  make([]providers.Choice, len(apiResp.Choices)),
		Usage: providers.Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
		Created: apiResp.Created,
	}
	for i, choice := range apiResp.Choices {
		resp.Choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: choice.FinishReason,
		}
	}
	return resp
}

// errorFromResponse maps OpenAI error payloads onto ProviderError codes
func (a *Adapter) errorFromResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	msg := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	code := providers.CodeAPIError
	retryable := statusCode >= 500
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = providers.CodeUnauthorized
	case http.StatusTooManyRequests:
		code = providers.CodeRateLimited
		retryable = true
	case http.StatusNotFound:
		code = providers.CodeModelNotFound
	case http.StatusBadRequest:
		code = providers.CodeBadRequest
	}

	return providers.NewProviderError(a.Name(), code, msg, statusCode, retryable, nil)
}

// OpenAI wire types

type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []message `json:"messages"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	Stop             []string  `json:"stop,omitempty"`
	User             *string   `json:"user,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

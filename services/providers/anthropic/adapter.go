package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tracegate/llm-proxy/services/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"
)

// Adapter implements the Provider interface for the Anthropic messages
// API.
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	models     map[string]providers.ModelInfo
}

// New creates a new Anthropic adapter
func New(config providers.ProviderConfig) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Version == "" {
		config.Version = defaultVersion
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
	return providers.ProviderAnthropic
}

// ChatCompletion performs a chat completion request against the messages
// API and converts the result to the unified response shape.
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

	var apiResp messageResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeAPIError,
			"failed to decode response", statusCode, false, err)
	}

	return a.toUnified(&apiResp), nil
}

// send executes the HTTP exchange with retries on 5xx, 429 and transport
// errors, rebuilding the request each attempt.
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
			a.config.BaseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return nil, 0, providers.NewProviderError(a.Name(), providers.CodeAPIError,
				"failed to create request", 0, false, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.config.APIKey)
		httpReq.Header.Set("anthropic-version", a.config.Version)

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
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-api-key", a.config.APIKey)
	req.Header.Set("anthropic-version", a.config.Version)

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
		return fmt.Errorf("model %s is not in the anthropic catalog", model)
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
		"claude-3-opus-20240229": {
			ID:                "claude-3-opus-20240229",
			Provider:          providers.ProviderAnthropic,
			MaxTokens:         providers.DefaultMaxTokens,
			ContextWindow:     200000,
			PricingPrompt:     0.015,
			PricingCompletion: 0.075,
		},
		"claude-3-sonnet-20240229": {
			ID:                "claude-3-sonnet-20240229",
			Provider:          providers.ProviderAnthropic,
			MaxTokens:         providers.DefaultMaxTokens,
			ContextWindow:     200000,
			PricingPrompt:     0.003,
			PricingCompletion: 0.015,
		},
		"claude-3-haiku-20240307": {
			ID:                "claude-3-haiku-20240307",
			Provider:          providers.ProviderAnthropic,
			MaxTokens:         providers.DefaultMaxTokens,
			ContextWindow:     200000,
			PricingPrompt:     0.00025,
			PricingCompletion: 0.00125,
		},
	}
}

// buildRequest converts the unified request to the messages API format.
// System messages are lifted into the top-level system field and the
// penalty parameters, which the API does not accept, are dropped. The API
// requires max_tokens, so an omitted value falls back to the default
// limit.
func buildRequest(req *providers.ChatRequest) *messageRequest {
	apiReq := &messageRequest{
		Model:         req.Model,
		MaxTokens:     providers.DefaultMaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
	}
	if req.MaxTokens != nil {
		apiReq.MaxTokens = *req.MaxTokens
	}

	var system []string
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		apiReq.Messages = append(apiReq.Messages, message{Role: msg.Role, Content: msg.Content})
	}
	if len(system) > 0 {
		apiReq.System = strings.Join(system, "\n\n")
	}

	return apiReq
}

// toUnified converts a messages API response to the unified format
func (a *Adapter) toUnified(apiResp *messageResponse) *providers.ChatResponse {
	var content strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	promptTokens := apiResp.Usage.InputTokens
	completionTokens := apiResp.Usage.OutputTokens

	return &providers.ChatResponse{
		ID:       apiResp.ID,
		Model:    apiResp.Model,
		Provider: a.Name(),
		Choices: []providers.Choice{
			{
				Index: 0,
				Message: providers.Message{
					Role:    "assistant",
					Content: content.String(),
				},
				FinishReason: finishReason(apiResp.StopReason),
			},
		},
		Usage: providers.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		Created: time.Now().Unix(),
	}
}

// finishReason maps Anthropic stop reasons onto the OpenAI-compatible
// values the proxy returns.
func finishReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return "stop"
	}
}

// errorFromResponse maps Anthropic error payloads onto ProviderError codes
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

// Anthropic wire types

type messageRequest struct {
	Model         string    `json:"model"`
	MaxTokens     int       `json:"max_tokens"`
	Messages      []message `json:"messages"`
	System        string    `json:"system,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

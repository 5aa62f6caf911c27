package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tracegate/llm-proxy/services/providers"
)

func TestNew(t *testing.T) {
	adapter := New(providers.ProviderConfig{APIKey: "test-key"})

	if adapter == nil {
		t.Fatal("New() returned nil")
	}

	if adapter.Name() != "anthropic" {
		t.Errorf("Name() = %s, want anthropic", adapter.Name())
	}

	if adapter.config.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", adapter.config.BaseURL, defaultBaseURL)
	}

	if adapter.config.Version != defaultVersion {
		t.Errorf("Version = %s, want %s", adapter.config.Version, defaultVersion)
	}

	if len(adapter.models) == 0 {
		t.Error("Models not initialized")
	}
}

func TestAdapter_ValidateModel(t *testing.T) {
	adapter := New(providers.ProviderConfig{})

	tests := []struct {
		name        string
		model       string
		expectError bool
	}{
		{
			name:        "valid model opus",
			model:       "claude-3-opus-20240229",
			expectError: false,
		},
		{
			name:        "valid model haiku",
			model:       "claude-3-haiku-20240307",
			expectError: false,
		},
		{
			name:        "unknown model",
			model:       "gpt-4",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := adapter.ValidateModel(tt.model)

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}

			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestAdapter_ChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST request, got %s", r.Method)
		}

		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}

		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("x-api-key header missing or invalid")
		}

		if r.Header.Get("anthropic-version") != defaultVersion {
			t.Errorf("anthropic-version = %s, want %s", r.Header.Get("anthropic-version"), defaultVersion)
		}

		body, _ := io.ReadAll(r.Body)
		var req messageRequest
		json.Unmarshal(body, &req)

		if req.MaxTokens == 0 {
			t.Error("max_tokens missing, the messages API requires it")
		}

		if req.System != "You are helpful" {
			t.Errorf("System = %q, want system message lifted to top level", req.System)
		}

		for _, msg := range req.Messages {
			if msg.Role == "system" {
				t.Error("System message left in messages list")
			}
		}

		resp := messageResponse{
			ID:    "msg_test123",
			Type:  "message",
			Role:  "assistant",
			Model: req.Model,
			Content: []contentBlock{
				{Type: "text", Text: "Hello "},
				{Type: "text", Text: "there"},
			},
			StopReason: "end_turn",
			Usage: usage{
				InputTokens:  12,
				OutputTokens: 7,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := New(providers.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})

	req := &providers.ChatRequest{
		Model: "claude-3-sonnet-20240229",
		Messages: []providers.Message{
			{Role: "system", Content: "You are helpful"},
			{Role: "user", Content: "Hello"},
		},
	}

	resp, err := adapter.ChatCompletion(context.Background(), req)

	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}

	if resp.ID != "msg_test123" {
		t.Errorf("ID = %s, want msg_test123", resp.ID)
	}

	if resp.Provider != "anthropic" {
		t.Errorf("Provider = %s, want anthropic", resp.Provider)
	}

	if len(resp.Choices) != 1 {
		t.Fatalf("len(Choices) = %d, want 1", len(resp.Choices))
	}

	if resp.Choices[0].Message.Content != "Hello there" {
		t.Errorf("Content = %q, want joined text blocks", resp.Choices[0].Message.Content)
	}

	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("FinishReason = %s, want stop", resp.Choices[0].FinishReason)
	}

	if resp.Usage.PromptTokens != 12 {
		t.Errorf("PromptTokens = %d, want 12", resp.Usage.PromptTokens)
	}

	if resp.Usage.CompletionTokens != 7 {
		t.Errorf("CompletionTokens = %d, want 7", resp.Usage.CompletionTokens)
	}

	if resp.Usage.TotalTokens != 19 {
		t.Errorf("TotalTokens = %d, want 19", resp.Usage.TotalTokens)
	}
}

func TestAdapter_ChatCompletion_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	adapter := New(providers.ProviderConfig{
		APIKey:  "bad-key",
		BaseURL: server.URL,
	})

	req := &providers.ChatRequest{
		Model:    "claude-3-opus-20240229",
		Messages: []providers.Message{{Role: "user", Content: "test"}},
	}

	_, err := adapter.ChatCompletion(context.Background(), req)

	if err == nil {
		t.Fatal("Expected error but got none")
	}

	provErr, ok := providers.AsProviderError(err)
	if !ok {
		t.Fatalf("Expected ProviderError, got %T", err)
	}

	if provErr.Code != providers.CodeUnauthorized {
		t.Errorf("Code = %s, want %s", provErr.Code, providers.CodeUnauthorized)
	}

	if provErr.Message != "invalid x-api-key" {
		t.Errorf("Message = %q, want upstream message", provErr.Message)
	}

	if provErr.Provider != "anthropic" {
		t.Errorf("Provider = %s, want anthropic", provErr.Provider)
	}
}

func TestAdapter_ChatCompletion_Retry(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++

		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}

		resp := messageResponse{
			ID:         "msg_retry",
			Type:       "message",
			Role:       "assistant",
			Model:      "claude-3-haiku-20240307",
			Content:    []contentBlock{{Type: "text", Text: "ok"}},
			StopReason: "end_turn",
			Usage:      usage{InputTokens: 1, OutputTokens: 1},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := New(providers.ProviderConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
	})

	req := &providers.ChatRequest{
		Model:    "claude-3-haiku-20240307",
		Messages: []providers.Message{{Role: "user", Content: "test"}},
	}

	resp, err := adapter.ChatCompletion(context.Background(), req)

	if err != nil {
		t.Fatalf("Expected success after retry, got error: %v", err)
	}

	if resp.ID != "msg_retry" {
		t.Errorf("ID = %s, want msg_retry", resp.ID)
	}

	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestBuildRequest(t *testing.T) {
	temperature := 0.5
	maxTokens := 256

	req := &providers.ChatRequest{
		Model: "claude-3-opus-20240229",
		Messages: []providers.Message{
			{Role: "system", Content: "Be brief"},
			{Role: "system", Content: "Answer in English"},
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello"},
			{Role: "user", Content: "Bye"},
		},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Stop:        []string{"END"},
	}

	apiReq := buildRequest(req)

	if apiReq.Model != "claude-3-opus-20240229" {
		t.Errorf("Model = %s, want claude-3-opus-20240229", apiReq.Model)
	}

	if apiReq.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want 256", apiReq.MaxTokens)
	}

	if apiReq.System != "Be brief\n\nAnswer in English" {
		t.Errorf("System = %q, want both system messages joined", apiReq.System)
	}

	if len(apiReq.Messages) != 3 {
		t.Errorf("len(Messages) = %d, want 3", len(apiReq.Messages))
	}

	if apiReq.Temperature == nil || *apiReq.Temperature != temperature {
		t.Errorf("Temperature = %v, want %f", apiReq.Temperature, temperature)
	}

	if len(apiReq.StopSequences) != 1 || apiReq.StopSequences[0] != "END" {
		t.Errorf("StopSequences = %v, want [END]", apiReq.StopSequences)
	}
}

func TestBuildRequest_DefaultMaxTokens(t *testing.T) {
	req := &providers.ChatRequest{
		Model:    "claude-3-haiku-20240307",
		Messages: []providers.Message{{Role: "user", Content: "Hi"}},
	}

	apiReq := buildRequest(req)

	if apiReq.MaxTokens != providers.DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", apiReq.MaxTokens, providers.DefaultMaxTokens)
	}
}

func TestFinishReason(t *testing.T) {
	tests := []struct {
		stopReason string
		want       string
	}{
		{"end_turn", "stop"},
		{"stop_sequence", "stop"},
		{"max_tokens", "length"},
		{"tool_use", "tool_calls"},
		{"", "stop"},
		{"something-new", "stop"},
	}

	for _, tt := range tests {
		if got := finishReason(tt.stopReason); got != tt.want {
			t.Errorf("finishReason(%q) = %s, want %s", tt.stopReason, got, tt.want)
		}
	}
}

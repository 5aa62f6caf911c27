package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/middleware"
	"github.com/tracegate/llm-proxy/services"
	"github.com/tracegate/llm-proxy/services/proxy"
	"github.com/tracegate/llm-proxy/utils"
)

// CompletionService defines the interface for the proxy pipeline
type CompletionService interface {
	// Process forwards a completion request to the owning provider and
	// accounts for the result
	Process(ctx context.Context, traceID string, req *proxy.CompletionRequest, headers http.Header) (*proxy.CompletionResponse, error)
}

// ChatCompletionHandler handles OpenAI-compatible completion requests
type ChatCompletionHandler struct {
	service CompletionService
	logger  *zap.Logger
}

// NewChatCompletionHandler creates a new ChatCompletionHandler
func NewChatCompletionHandler(service CompletionService, logger *zap.Logger) *ChatCompletionHandler {
	return &ChatCompletionHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChatCompletion handles POST /v1/chat/completions
func (h *ChatCompletionHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := middleware.GetTraceIDFromContext(ctx)

	var req proxy.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err))
		_ = utils.WriteInvalidRequest(w, "invalid_json", "request body is not valid JSON", nil)
		return
	}

	// Streamed responses carry no usage block, so accounting would be
	// blind. Reject them up front instead of failing mid-response.
	if req.Stream {
		h.logger.Warn("streaming requested",
			zap.String("trace_id", traceID),
			zap.String("model", req.Model))
		_ = utils.WriteInvalidRequest(w, "streaming_not_supported", services.ErrStreamingNotSupported.Message, nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("trace_id", traceID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	resp, err := h.service.Process(ctx, traceID, &req, r.Header)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to write response",
			zap.String("trace_id", traceID),
			zap.Error(err))
	}
}

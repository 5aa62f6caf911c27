package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/services/providers"
	"github.com/tracegate/llm-proxy/utils"
)

// ModelList is the OpenAI-compatible catalog response
type ModelList struct {
	Object string       `json:"object"`
	Data   []ModelEntry `json:"data"`
}

// ModelEntry describes one catalog model
type ModelEntry struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	OwnedBy string       `json:"owned_by"`
	Pricing ModelPricing `json:"pricing"`
	Limits  ModelLimits  `json:"limits"`
}

// ModelPricing lists USD rates per 1000 tokens
type ModelPricing struct {
	PromptPer1K     float64 `json:"prompt_per_1k_usd"`
	CompletionPer1K float64 `json:"completion_per_1k_usd"`
}

// ModelLimits lists model size limits
type ModelLimits struct {
	MaxTokens     int `json:"max_tokens"`
	ContextWindow int `json:"context_window"`
}

// ModelsHandler serves the model catalog
type ModelsHandler struct {
	registry *providers.Registry
	created  int64
	logger   *zap.Logger
}

// NewModelsHandler creates a new ModelsHandler. The catalog timestamp is
// fixed at construction so repeated listings stay identical.
func NewModelsHandler(registry *providers.Registry, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{
		registry: registry,
		created:  time.Now().Unix(),
		logger:   logger,
	}
}

// HandleListModels handles GET /v1/models
func (h *ModelsHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	infos := h.registry.ModelInfos()

	entries := make([]ModelEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, ModelEntry{
			ID:      info.ID,
			Object:  "model",
			Created: h.created,
			OwnedBy: info.Provider,
			Pricing: ModelPricing{
				PromptPer1K:     info.PricingPrompt,
				CompletionPer1K: info.PricingCompletion,
			},
			Limits: ModelLimits{
				MaxTokens:     info.MaxTokens,
				ContextWindow: info.ContextWindow,
			},
		})
	}

	if err := utils.WriteJSON(w, http.StatusOK, ModelList{Object: "list", Data: entries}); err != nil {
		h.logger.Error("failed to write models response", zap.Error(err))
	}
}

package proxy

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/langfuse"
	"github.com/tracegate/llm-proxy/models"
	"github.com/tracegate/llm-proxy/observability"
	"github.com/tracegate/llm-proxy/repositories"
	"github.com/tracegate/llm-proxy/services/metadata"
	"github.com/tracegate/llm-proxy/services/pricing"
	"github.com/tracegate/llm-proxy/services/providers"
)

// usageWriteTimeout bounds the async ledger insert so a stuck database
// cannot pile up goroutines forever.
const usageWriteTimeout = 5 * time.Second

// Observation names reported to the tracing backend.
const (
	traceName      = "chat_completion"
	generationName = "llm_generation"
	endpointLabel  = "/v1/chat/completions"
)

// Service orchestrates the proxy pipeline: resolve the caller identity,
// route the model to a provider, forward the request, then account for
// the outcome in traces, metrics and the usage ledger. Accounting never
// fails the request.
type Service struct {
	registry  *providers.Registry
	estimator *pricing.Estimator
	metrics   *observability.Metrics
	traces    *langfuse.Client
	usage     repositories.UsageRepository
	logger    *zap.Logger
}

// NewService creates a new proxy service. The usage repository may be nil
// when the ledger is not configured.
func NewService(
	registry *providers.Registry,
	estimator *pricing.Estimator,
	metrics *observability.Metrics,
	traces *langfuse.Client,
	usage repositories.UsageRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		registry:  registry,
		estimator: estimator,
		metrics:   metrics,
		traces:    traces,
		usage:     usage,
		logger:    logger,
	}
}

// Process forwards a chat completion request to the provider that serves
// its model and accounts for the outcome. The returned error is a
// *providers.ProviderError for the handler to translate.
func (s *Service) Process(ctx context.Context, traceID string, req *CompletionRequest, headers http.Header) (*CompletionResponse, error) {
	rc := s.newRequestContext(traceID, req, headers)

	s.metrics.RequestStarted()
	defer s.metrics.RequestFinished()

	s.logger.Info("proxying chat completion",
		zap.String("trace_id", rc.traceID),
		zap.String("model", req.Model),
		zap.String("user_id", rc.userID))

	// Route the model to a provider
	provider, err := s.registry.Resolve(req.Model)
	if err != nil {
		s.accountFailure(rc, req, err)
		return nil, err
	}
	rc.provider = provider.Name()

	// Forward upstream
	s.logger.Debug("forwarding to provider",
		zap.String("trace_id", rc.traceID),
		zap.String("provider", rc.provider))

	resp, err := provider.ChatCompletion(ctx, req.toProviderRequest())
	latency := time.Since(rc.started)
	s.metrics.RecordRequest(req.Model, rc.provider, latency, err)

	if err != nil {
		s.accountFailure(rc, req, err)
		return nil, err
	}

	// Account for the outcome
	cost := s.estimator.Estimate(req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	s.metrics.RecordUsage(req.Model, rc.provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, cost)
	s.emitTrace(rc, req, resp, cost)

	rec := models.NewUsageRecord(rc.traceID, rc.userID, rc.sessionID, rc.provider, req.Model)
	rec.Complete(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, cost, latency)
	go s.recordUsage(rec)

	s.logger.Info("chat completion proxied",
		zap.String("trace_id", rc.traceID),
		zap.String("provider", rc.provider),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Float64("cost", cost),
		zap.Int64("latency_ms", latency.Milliseconds()))

	return newCompletionResponse(resp), nil
}

// newRequestContext resolves the caller identity from request metadata and
// headers. The provider starts as the detected name so metrics and traces
// are labelled even when no adapter is registered for the model.
func (s *Service) newRequestContext(traceID string, req *CompletionRequest, headers http.Header) *requestContext {
	meta, userID, sessionID := metadata.Extract(req.Metadata, headers)
	userID = metadata.FallbackUser(userID, req.User)

	return &requestContext{
		traceID:   traceID,
		userID:    userID,
		sessionID: sessionID,
		provider:  providers.Detect(req.Model),
		metadata:  meta,
		started:   time.Now(),
	}
}

// accountFailure records a failed request in metrics, traces and the
// ledger
func (s *Service) accountFailure(rc *requestContext, req *CompletionRequest, err error) {
	latency := time.Since(rc.started)
	code := providers.CodeAPIError
	message := err.Error()
	if perr, ok := providers.AsProviderError(err); ok {
		code = perr.Code
		message = perr.Message
	}

	s.metrics.RecordError(req.Model, rc.provider, code)
	s.emitErrorTrace(rc, req, code, message)

	rec := models.NewUsageRecord(rc.traceID, rc.userID, rc.sessionID, rc.provider, req.Model)
	rec.Fail(code, message, latency)
	go s.recordUsage(rec)

	s.logger.Warn("chat completion failed",
		zap.String("trace_id", rc.traceID),
		zap.String("model", req.Model),
		zap.String("provider", rc.provider),
		zap.String("code", code),
		zap.Error(err))
}

// emitTrace queues the trace, generation and cost score for a completed
// request
func (s *Service) emitTrace(rc *requestContext, req *CompletionRequest, resp *providers.ChatResponse, cost float64) {
	end := time.Now()
	output := firstChoiceContent(resp)

	s.traces.RecordTrace(langfuse.Trace{
		ID:        rc.traceID,
		Name:      traceName,
		UserID:    rc.userID,
		SessionID: rc.sessionID,
		Input:     req.Messages,
		Output:    output,
		Metadata:  s.traceMetadata(rc, req.Model),
		Tags:      []string{rc.provider, req.Model},
		Timestamp: rc.started,
	})

	s.traces.RecordGeneration(langfuse.Generation{
		TraceID:         rc.traceID,
		Name:            generationName,
		Model:           resp.Model,
		ModelParameters: modelParameters(req),
		Input:           req.Messages,
		Output:          output,
		Usage: &langfuse.Usage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
			Unit:   langfuse.UsageUnit,
		},
		StartTime: rc.started,
		EndTime:   end,
		Metadata:  map[string]any{"provider": rc.provider},
	})

	s.traces.RecordScore(langfuse.Score{
		TraceID: rc.traceID,
		Name:    "estimated_cost",
		Value:   cost,
		Comment: "USD",
	})
}

// emitErrorTrace queues the trace and error generation for a failed
// request
func (s *Service) emitErrorTrace(rc *requestContext, req *CompletionRequest, code, message string) {
	tags := []string{rc.provider, req.Model, "error"}

	s.traces.RecordTrace(langfuse.Trace{
		ID:        rc.traceID,
		Name:      traceName,
		UserID:    rc.userID,
		SessionID: rc.sessionID,
		Input:     req.Messages,
		Metadata:  s.traceMetadata(rc, req.Model),
		Tags:      tags,
		Timestamp: rc.started,
	})

	s.traces.RecordGeneration(langfuse.Generation{
		TraceID:         rc.traceID,
		Name:            generationName,
		Model:           req.Model,
		ModelParameters: modelParameters(req),
		Input:           req.Messages,
		StartTime:       rc.started,
		EndTime:         time.Now(),
		Level:           langfuse.LevelError,
		StatusMessage:   message,
		Metadata:        map[string]any{"provider": rc.provider, "error_code": code},
	})
}

// traceMetadata layers routing details over the caller-supplied metadata
func (s *Service) traceMetadata(rc *requestContext, model string) map[string]any {
	return metadata.Merge(rc.metadata, map[string]any{
		"endpoint": endpointLabel,
		"model":    model,
		"provider": rc.provider,
	})
}

// recordUsage writes one ledger row. Runs on its own goroutine with its
// own deadline so the response is never held up by the database.
func (s *Service) recordUsage(rec *models.UsageRecord) {
	if s.usage == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), usageWriteTimeout)
	defer cancel()

	if err := s.usage.Insert(ctx, rec); err != nil {
		s.logger.Error("failed to record usage",
			zap.String("trace_id", rec.TraceID),
			zap.Error(err))
	}
}

// modelParameters collects the parameters the caller actually set
func modelParameters(req *CompletionRequest) map[string]any {
	params := make(map[string]any)
	if req.MaxTokens != nil {
		params["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		params["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		params["top_p"] = *req.TopP
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func firstChoiceContent(resp *providers.ChatResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

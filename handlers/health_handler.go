package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/langfuse"
	"github.com/tracegate/llm-proxy/repositories/postgres"
	"github.com/tracegate/llm-proxy/services/providers"
	"github.com/tracegate/llm-proxy/utils"
)

const (
	serviceName    = "llm-proxy"
	serviceVersion = "1.0.0"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	db       *postgres.DB
	registry *providers.Registry
	traces   *langfuse.Client
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and traces may be nil
// when the ledger or tracing are disabled.
func NewHealthHandler(db *postgres.DB, registry *providers.Registry, traces *langfuse.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		registry: registry,
		traces:   traces,
		logger:   logger,
	}
}

// HandleHealth handles GET /health
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   serviceVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /ready
// Readiness check - validates that all dependencies are available
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.registry == nil || h.registry.Count() == 0 {
		checks["providers"] = "unhealthy"
		ready = false
	} else {
		checks["providers"] = "healthy"
	}

	if h.db == nil {
		checks["database"] = "disabled"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		ready = false
	} else {
		checks["database"] = "healthy"
	}

	if h.traces == nil || !h.traces.Enabled() {
		checks["langfuse"] = "disabled"
	} else {
		checks["langfuse"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !ready {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Service:   serviceName,
		Version:   serviceVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

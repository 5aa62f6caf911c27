package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/repositories"
	"github.com/tracegate/llm-proxy/utils"
)

const (
	defaultUsageWindow = 24 * time.Hour
	defaultUserLimit   = 50
	maxUserLimit       = 200
)

// UsageHandler serves the usage ledger endpoints
type UsageHandler struct {
	usage  repositories.UsageRepository
	logger *zap.Logger
}

// NewUsageHandler creates a new UsageHandler. usage may be nil when the
// ledger is disabled.
func NewUsageHandler(usage repositories.UsageRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// HandleUsage handles GET /v1/usage. Without parameters it returns the
// per-model summary of the last 24 hours. `trace_id` looks up a single
// record, `user_id` lists a user's records with `limit`/`offset` paging.
func (h *UsageHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		_ = utils.WriteAPIError(w, http.StatusServiceUnavailable, utils.ErrTypeAPI, "ledger_disabled", "ledger disabled")
		return
	}

	ctx := r.Context()
	query := r.URL.Query()

	if traceID := query.Get("trace_id"); traceID != "" {
		h.serveRecord(ctx, w, traceID)
		return
	}

	if userID := query.Get("user_id"); userID != "" {
		h.serveUserRecords(ctx, w, userID, query)
		return
	}

	since := time.Now().Add(-defaultUsageWindow)
	summary, err := h.usage.Summary(ctx, since)
	if err != nil {
		h.logger.Error("failed to load usage summary", zap.Error(err))
		_ = utils.WriteInternalError(w)
		return
	}

	_ = utils.WriteOK(w, summary)
}

func (h *UsageHandler) serveRecord(ctx context.Context, w http.ResponseWriter, traceID string) {
	rec, err := h.usage.GetByTraceID(ctx, traceID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = utils.WriteAPIError(w, http.StatusNotFound, utils.ErrTypeInvalidRequest, "not_found", err.Error())
			return
		}
		h.logger.Error("failed to load usage record",
			zap.String("trace_id", traceID),
			zap.Error(err))
		_ = utils.WriteInternalError(w)
		return
	}

	_ = utils.WriteOK(w, rec)
}

func (h *UsageHandler) serveUserRecords(ctx context.Context, w http.ResponseWriter, userID string, query url.Values) {
	limit := parseQueryInt(query.Get("limit"), defaultUserLimit)
	if limit <= 0 {
		limit = defaultUserLimit
	}
	if limit > maxUserLimit {
		limit = maxUserLimit
	}

	offset := parseQueryInt(query.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	records, err := h.usage.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list usage records",
			zap.String("user_id", userID),
			zap.Error(err))
		_ = utils.WriteInternalError(w)
		return
	}

	_ = utils.WriteOK(w, records)
}

func parseQueryInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

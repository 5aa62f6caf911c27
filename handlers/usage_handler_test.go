package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/models"
	"github.com/tracegate/llm-proxy/repositories"
)

// MockUsageRepository is a mock implementation of repositories.UsageRepository
type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) Insert(ctx context.Context, rec *models.UsageRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockUsageRepository) GetByTraceID(ctx context.Context, traceID string) (*models.UsageRecord, error) {
	args := m.Called(ctx, traceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageRecord), args.Error(1)
}

func (m *MockUsageRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.UsageRecord, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UsageRecord), args.Error(1)
}

func (m *MockUsageRepository) Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UsageSummary), args.Error(1)
}

func TestHandleUsage(t *testing.T) {
	logger := zap.NewNop()

	t.Run("summary over the last 24 hours", func(t *testing.T) {
		mockRepo := new(MockUsageRepository)
		handler := NewUsageHandler(mockRepo, logger)

		summary := []models.UsageSummary{
			{Model: "gpt-4", Provider: "openai", Requests: 10, TotalTokens: 4200, TotalCost: 1.25},
			{Model: "claude-3-haiku", Provider: "anthropic", Requests: 25, TotalTokens: 9000, TotalCost: 0.02},
		}

		mockRepo.On("Summary", mock.Anything, mock.MatchedBy(func(since time.Time) bool {
			age := time.Since(since)
			return age > 23*time.Hour && age < 25*time.Hour
		})).Return(summary, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
		w := httptest.NewRecorder()

		handler.HandleUsage(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		data := response["data"].([]any)
		require.Len(t, data, 2)

		first := data[0].(map[string]any)
		assert.Equal(t, "gpt-4", first["model"])
		assert.Equal(t, float64(1.25), first["total_cost_usd"])
		mockRepo.AssertExpectations(t)
	})

	t.Run("ledger disabled", func(t *testing.T) {
		handler := NewUsageHandler(nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
		w := httptest.NewRecorder()

		handler.HandleUsage(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		errObj := decodeErrorBody(t, w)
		assert.Equal(t, "ledger_disabled", errObj["code"])
		assert.Equal(t, "ledger disabled", errObj["message"])
	})

	t.Run("lookup by trace id", func(t *testing.T) {
		mockRepo := new(MockUsageRepository)
		handler := NewUsageHandler(mockRepo, logger)

		rec := models.NewUsageRecord("trace-55", "user-1", "sess-1", "openai", "gpt-4")
		rec.Complete(100, 50, 0.0063, 900*time.Millisecond)
		mockRepo.On("GetByTraceID", mock.Anything, "trace-55").Return(rec, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/usage?trace_id=trace-55", nil)
		w := httptest.NewRecorder()

		handler.HandleUsage(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		data := response["data"].(map[string]any)
		assert.Equal(t, "trace-55", data["trace_id"])
		assert.Equal(t, "success", data["status"])
	})

	t.Run("trace id not found", func(t *testing.T) {
		mockRepo := new(MockUsageRepository)
		handler := NewUsageHandler(mockRepo, logger)

		mockRepo.On("GetByTraceID", mock.Anything, "trace-nope").
			Return(nil, fmt.Errorf("%w: trace-nope", repositories.ErrNotFound))

		req := httptest.NewRequest(http.MethodGet, "/v1/usage?trace_id=trace-nope", nil)
		w := httptest.NewRecorder()

		handler.HandleUsage(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		errObj := decodeErrorBody(t, w)
		assert.Equal(t, "not_found", errObj["code"])
	})

	t.Run("list by user with default paging", func(t *testing.T) {
		mockRepo := new(MockUsageRepository)
		handler := NewUsageHandler(mockRepo, logger)

		rec := models.NewUsageRecord("trace-1", "user-9", "", "openai", "gpt-4")
		mockRepo.On("ListByUser", mock.Anything, "user-9", 50, 0).
			Return([]*models.UsageRecord{rec}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/usage?user_id=user-9", nil)
		w := httptest.NewRecorder()

		handler.HandleUsage(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("list by user caps the limit", func(t *testing.T) {
		mockRepo := new(MockUsageRepository)
		handler := NewUsageHandler(mockRepo, logger)

		mockRepo.On("ListByUser", mock.Anything, "user-9", 200, 10).
			Return([]*models.UsageRecord{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/usage?user_id=user-9&limit=9999&offset=10", nil)
		w := httptest.NewRecorder()

		handler.HandleUsage(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("list by user ignores junk paging values", func(t *testing.T) {
		mockRepo := new(MockUsageRepository)
		handler := NewUsageHandler(mockRepo, logger)

		mockRepo.On("ListByUser", mock.Anything, "user-9", 50, 0).
			Return([]*models.UsageRecord{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/usage?user_id=user-9&limit=abc&offset=-3", nil)
		w := httptest.NewRecorder()

		handler.HandleUsage(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("summary failure maps to 500", func(t *testing.T) {
		mockRepo := new(MockUsageRepository)
		handler := NewUsageHandler(mockRepo, logger)

		mockRepo.On("Summary", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
		w := httptest.NewRecorder()

		handler.HandleUsage(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		errObj := decodeErrorBody(t, w)
		assert.Equal(t, "internal_error", errObj["code"])
	})
}

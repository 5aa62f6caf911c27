package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/tracegate/llm-proxy/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("usage record not found")

// UsageRepository handles usage ledger data operations
type UsageRepository interface {
	// Insert inserts a new usage record
	Insert(ctx context.Context, rec *models.UsageRecord) error

	// GetByTraceID retrieves a usage record by trace ID
	GetByTraceID(ctx context.Context, traceID string) (*models.UsageRecord, error)

	// ListByUser retrieves usage records for a user with pagination,
	// newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.UsageRecord, error)

	// Summary aggregates the ledger per model and provider since the
	// given time, most expensive first
	Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error)
}

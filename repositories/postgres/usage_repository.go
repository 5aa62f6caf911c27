package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tracegate/llm-proxy/models"
	"github.com/tracegate/llm-proxy/repositories"
	"go.uber.org/zap"
)

// UsageRepository implements the repositories.UsageRepository interface
type UsageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB, logger *zap.Logger) repositories.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new usage record
func (r *UsageRepository) Insert(ctx context.Context, rec *models.UsageRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid usage record: %w", err)
	}

	query := `
		INSERT INTO usage_records (
			id, trace_id, user_id, session_id, provider, model,
			prompt_tokens, completion_tokens, total_tokens, cost, latency_ms,
			status, error_code, error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.TraceID,
		rec.UserID,
		rec.SessionID,
		rec.Provider,
		rec.Model,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		rec.Cost,
		rec.LatencyMs,
		rec.Status,
		rec.ErrorCode,
		rec.ErrorMessage,
		rec.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	r.logger.Debug("usage record inserted",
		zap.String("id", rec.ID.String()),
		zap.String("trace_id", rec.TraceID))
	return nil
}

// GetByTraceID retrieves a usage record by trace ID
func (r *UsageRepository) GetByTraceID(ctx context.Context, traceID string) (*models.UsageRecord, error) {
	query := `
		SELECT id, trace_id, user_id, session_id, provider, model,
		       prompt_tokens, completion_tokens, total_tokens, cost, latency_ms,
		       status, error_code, error_message, created_at
		FROM usage_records
		WHERE trace_id = $1
	`

	rec := &models.UsageRecord{}

	err := r.db.QueryRowContext(ctx, query, traceID).Scan(
		&rec.ID,
		&rec.TraceID,
		&rec.UserID,
		&rec.SessionID,
		&rec.Provider,
		&rec.Model,
		&rec.PromptTokens,
		&rec.CompletionTokens,
		&rec.TotalTokens,
		&rec.Cost,
		&rec.LatencyMs,
		&rec.Status,
		&rec.ErrorCode,
		&rec.ErrorMessage,
		&rec.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", repositories.ErrNotFound, traceID)
		}
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}

	return rec, nil
}

// ListByUser retrieves usage records for a user with pagination, newest first
func (r *UsageRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.UsageRecord, error) {
	query := `
		SELECT id, trace_id, user_id, session_id, provider, model,
		       prompt_tokens, completion_tokens, total_tokens, cost, latency_ms,
		       status, error_code, error_message, created_at
		FROM usage_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryUsageRecords(ctx, query, userID, limit, offset)
}

// Summary aggregates the ledger per model and provider since the given
// time, most expensive first
func (r *UsageRepository) Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error) {
	query := `
		SELECT model, provider,
		       COUNT(*) as requests,
		       COALESCE(SUM(total_tokens), 0) as total_tokens,
		       COALESCE(SUM(cost), 0) as total_cost
		FROM usage_records
		WHERE created_at >= $1
		GROUP BY model, provider
		ORDER BY total_cost DESC
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var sum models.UsageSummary
		err := rows.Scan(
			&sum.Model,
			&sum.Provider,
			&sum.Requests,
			&sum.TotalTokens,
			&sum.TotalCost,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage summary: %w", err)
	}

	return summaries, nil
}

// queryUsageRecords executes a query returning multiple usage records
func (r *UsageRepository) queryUsageRecords(ctx context.Context, query string, args ...interface{}) ([]*models.UsageRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*models.UsageRecord
	for rows.Next() {
		rec := &models.UsageRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.TraceID,
			&rec.UserID,
			&rec.SessionID,
			&rec.Provider,
			&rec.Model,
			&rec.PromptTokens,
			&rec.CompletionTokens,
			&rec.TotalTokens,
			&rec.Cost,
			&rec.LatencyMs,
			&rec.Status,
			&rec.ErrorCode,
			&rec.ErrorMessage,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}

	return records, nil
}

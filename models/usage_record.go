package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageStatus represents the outcome of a proxied request
type UsageStatus string

const (
	UsageStatusSuccess UsageStatus = "success"
	UsageStatusError   UsageStatus = "error"
)

// UsageRecord is one row of the usage ledger: the tokens, cost and outcome
// of a single proxied chat completion.
type UsageRecord struct {
	ID      uuid.UUID `json:"id" db:"id"`
	TraceID string    `json:"trace_id" db:"trace_id"`

	// Caller identity as resolved from metadata and headers
	UserID    string `json:"user_id" db:"user_id"`
	SessionID string `json:"session_id" db:"session_id"`

	// Upstream details
	Provider string `json:"provider" db:"provider"`
	Model    string `json:"model" db:"model"`

	// Metrics
	PromptTokens     int     `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens" db:"total_tokens"`
	Cost             float64 `json:"cost" db:"cost"`
	LatencyMs        int     `json:"latency_ms" db:"latency_ms"`

	Status       UsageStatus `json:"status" db:"status"`
	ErrorCode    *string     `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage *string     `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the UsageRecord model
func (UsageRecord) TableName() string {
	return "usage_records"
}

// NewUsageRecord creates a ledger entry for a request about to be proxied
func NewUsageRecord(traceID, userID, sessionID, provider, model string) *UsageRecord {
	return &UsageRecord{
		ID:        uuid.New(),
		TraceID:   traceID,
		UserID:    userID,
		SessionID: sessionID,
		Provider:  provider,
		Model:     model,
		Status:    UsageStatusSuccess,
		CreatedAt: time.Now(),
	}
}

// Complete fills in the outcome of a successful request
func (ur *UsageRecord) Complete(promptTokens, completionTokens int, cost float64, latency time.Duration) {
	ur.Status = UsageStatusSuccess
	ur.PromptTokens = promptTokens
	ur.CompletionTokens = completionTokens
	ur.TotalTokens = promptTokens + completionTokens
	ur.Cost = cost
	ur.LatencyMs = int(latency.Milliseconds())
}

// Fail records the outcome of a failed request
func (ur *UsageRecord) Fail(errorCode, errorMessage string, latency time.Duration) {
	ur.Status = UsageStatusError
	ur.ErrorCode = &errorCode
	ur.ErrorMessage = &errorMessage
	ur.LatencyMs = int(latency.Milliseconds())
}

// Validate checks the record is complete enough to persist
func (ur *UsageRecord) Validate() error {
	if ur.ID == uuid.Nil {
		return fmt.Errorf("usage record id is required")
	}
	if ur.TraceID == "" {
		return fmt.Errorf("usage record trace id is required")
	}
	if ur.Model == "" {
		return fmt.Errorf("usage record model is required")
	}
	if ur.Status != UsageStatusSuccess && ur.Status != UsageStatusError {
		return fmt.Errorf("usage record status %q is invalid", ur.Status)
	}
	if ur.PromptTokens < 0 || ur.CompletionTokens < 0 {
		return fmt.Errorf("usage record token counts must be non-negative")
	}
	if ur.Cost < 0 {
		return fmt.Errorf("usage record cost must be non-negative")
	}
	return nil
}

// UsageSummary is one row of the per-model usage report
type UsageSummary struct {
	Model       string  `json:"model"`
	Provider    string  `json:"provider"`
	Requests    int64   `json:"requests"`
	TotalTokens int64   `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost_usd"`
}

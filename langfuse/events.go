package langfuse

import "time"

// Ingestion event types understood by the batch endpoint.
const (
	eventTypeTrace      = "trace-create"
	eventTypeGeneration = "generation-create"
	eventTypeScore      = "score-create"
)

// Observation levels reported on generations.
const (
	LevelDefault = "DEFAULT"
	LevelError   = "ERROR"
)

// UsageUnit is the unit reported for token usage.
const UsageUnit = "TOKENS"

// Trace is the root observation of one proxied request.
type Trace struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Input     any            `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Generation records a single model call inside a trace.
type Generation struct {
	ID              string         `json:"id"`
	TraceID         string         `json:"traceId"`
	Name            string         `json:"name"`
	Model           string         `json:"model"`
	ModelParameters map[string]any `json:"modelParameters,omitempty"`
	Input           any            `json:"input,omitempty"`
	Output          any            `json:"output,omitempty"`
	Usage           *Usage         `json:"usage,omitempty"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         time.Time      `json:"endTime"`
	Level           string         `json:"level,omitempty"`
	StatusMessage   string         `json:"statusMessage,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Usage carries token counts for a generation.
type Usage struct {
	Input  int    `json:"input"`
	Output int    `json:"output"`
	Total  int    `json:"total"`
	Unit   string `json:"unit,omitempty"`
}

// Score attaches a numeric evaluation to a trace.
type Score struct {
	ID      string  `json:"id"`
	TraceID string  `json:"traceId"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}

// ingestionEvent is the envelope the batch endpoint expects around each
// event body.
type ingestionEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Body      any    `json:"body"`
}

// ingestionRequest is the batch payload.
type ingestionRequest struct {
	Batch []ingestionEvent `json:"batch"`
}

package middleware

import (
	"context"
	"time"
)

// Context key type to avoid collisions
type contextKey string

const (
	// TraceIDKey is the context key for the trace ID
	TraceIDKey contextKey = "trace_id"

	// StartTimeKey is the context key for the request start time
	StartTimeKey contextKey = "start_time"

	// ClientIPKey is the context key for the client IP
	ClientIPKey contextKey = "client_ip"
)

// GetTraceIDFromContext retrieves the trace ID from context
func GetTraceIDFromContext(ctx context.Context) string {
	if val := ctx.Value(TraceIDKey); val != nil {
		if traceID, ok := val.(string); ok {
			return traceID
		}
	}
	return ""
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetStartTimeFromContext retrieves the request start time from context
func GetStartTimeFromContext(ctx context.Context) time.Time {
	if val := ctx.Value(StartTimeKey); val != nil {
		if start, ok := val.(time.Time); ok {
			return start
		}
	}
	return time.Time{}
}

// WithStartTime adds a request start time to the context
func WithStartTime(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, StartTimeKey, start)
}

// GetClientIPFromContext retrieves the client IP from context
func GetClientIPFromContext(ctx context.Context) string {
	if val := ctx.Value(ClientIPKey); val != nil {
		if ip, ok := val.(string); ok {
			return ip
		}
	}
	return ""
}

// WithClientIP adds a client IP to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

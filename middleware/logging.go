package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestLogger logs one structured line per request
type RequestLogger struct {
	logger *zap.Logger
}

// NewRequestLogger creates a new RequestLogger
func NewRequestLogger(logger *zap.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// Log wraps a handler with structured request logging. The duration is
// measured from the start time the tracing middleware stored, falling
// back to its own clock for untraced paths.
func (m *RequestLogger) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := GetStartTimeFromContext(r.Context())
		if start.IsZero() {
			start = time.Now()
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("trace_id", GetTraceIDFromContext(r.Context())),
			zap.String("client_ip", GetClientIPFromContext(r.Context())),
		)
	})
}

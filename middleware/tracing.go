package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Infrastructure endpoints that are not traced
var untracedPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Tracing assigns a trace ID to every API request and exposes it to the
// caller via X-Trace-ID, together with the time spent in the proxy via
// X-Duration-Ms. The trace ID, start time and client IP are stored in the
// request context for the pipeline and logging.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if untracedPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		traceID := uuid.NewString()

		ctx := WithTraceID(r.Context(), traceID)
		ctx = WithStartTime(ctx, start)
		ctx = WithClientIP(ctx, clientIP(r))

		w.Header().Set("X-Trace-ID", traceID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK, start: start, stampDuration: true}
		next.ServeHTTP(sw, r.WithContext(ctx))
	})
}

// statusWriter captures the response status code. When stampDuration is
// set it writes X-Duration-Ms just before the header is flushed, the last
// moment a header can still be set.
type statusWriter struct {
	http.ResponseWriter
	status        int
	wroteHeader   bool
	start         time.Time
	stampDuration bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.wroteHeader = true
	w.status = code
	if w.stampDuration {
		ms := time.Since(w.start).Milliseconds()
		w.Header().Set("X-Duration-Ms", strconv.FormatInt(ms, 10))
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// clientIP extracts the caller address. RealIP middleware has already
// resolved forwarding headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

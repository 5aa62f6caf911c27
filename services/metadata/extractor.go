package metadata

import (
	"net/http"
	"strings"
)

// Header names carrying caller identity.
const (
	UserIDHeader    = "X-User-ID"
	SessionIDHeader = "X-Session-ID"
)

// Anonymous is the sentinel identity used when a caller supplies no user or
// session header. The tracing service groups traces by these values, so they
// must always be concrete strings.
const Anonymous = "anonymous"

// Extract normalizes caller-supplied request metadata and identity headers.
//
// The returned map is always non-nil: a nil input (covering both an absent
// and an explicit null metadata field after JSON decoding) yields an empty
// map, and a populated input is shallow-copied with nil-valued entries
// dropped. The caller's map is never mutated. Extract is total: it returns
// normally for every combination of inputs, including nil headers, and
// re-extracting an already normalized map is a no-op.
func Extract(raw map[string]any, headers http.Header) (map[string]any, string, string) {
	normalized := make(map[string]any, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		normalized[k] = v
	}

	return normalized, headerOrAnonymous(headers, UserIDHeader), headerOrAnonymous(headers, SessionIDHeader)
}

// Merge layers extra over base into a fresh map. Either input may be nil.
// Keys from extra win on collision and nil-valued entries are dropped, so
// the result is always safe to iterate and serialize.
func Merge(base, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		if v == nil {
			continue
		}
		merged[k] = v
	}
	for k, v := range extra {
		if v == nil {
			continue
		}
		merged[k] = v
	}
	return merged
}

// FallbackUser substitutes the request body's user field when the identity
// header degraded to the anonymous sentinel. Header identity always wins.
func FallbackUser(userID, bodyUser string) string {
	if userID != Anonymous {
		return userID
	}
	if trimmed := strings.TrimSpace(bodyUser); trimmed != "" {
		return trimmed
	}
	return Anonymous
}

func headerOrAnonymous(headers http.Header, name string) string {
	if value := strings.TrimSpace(headers.Get(name)); value != "" {
		return value
	}
	return Anonymous
}

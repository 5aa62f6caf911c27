package utils

import (
	"encoding/json"
	"net/http"
)

// APIError is the OpenAI-compatible error body
type APIError struct {
	Message string            `json:"message"`
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError the way OpenAI clients expect
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error types used in responses
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeAPI            = "api_error"
)

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteAPIError writes an OpenAI-shaped error response
func WriteAPIError(w http.ResponseWriter, status int, errType, code, message string) error {
	return WriteJSON(w, status, ErrorResponse{
		Error: APIError{
			Message: message,
			Type:    errType,
			Code:    code,
		},
	})
}

// WriteInvalidRequest writes a 400 response, optionally carrying per-field
// validation details
func WriteInvalidRequest(w http.ResponseWriter, code, message string, details map[string]string) error {
	return WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: APIError{
			Message: message,
			Type:    ErrTypeInvalidRequest,
			Code:    code,
			Details: details,
		},
	})
}

// WriteInternalError writes a 500 response with a generic message
func WriteInternalError(w http.ResponseWriter) error {
	return WriteAPIError(w, http.StatusInternalServerError, ErrTypeAPI,
		"internal_error", "internal server error")
}

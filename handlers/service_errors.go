package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tracegate/llm-proxy/services"
	"github.com/tracegate/llm-proxy/services/providers"
	"github.com/tracegate/llm-proxy/utils"
)

// HandleServiceError maps pipeline errors to OpenAI-style HTTP responses.
// Provider errors are mapped by their code, never by the upstream status:
// an upstream 401 means the proxy's own credential is bad, which is a
// gateway problem from the caller's point of view.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	if provErr, ok := providers.AsProviderError(err); ok {
		writeProviderError(w, provErr, logger)
		return
	}

	switch {
	case utils.IsValidationError(err):
		HandleValidationError(w, err, logger)

	case services.IsValidationError(err):
		if werr := utils.WriteInvalidRequest(w, "invalid_request", err.Error(), domainDetails(err)); werr != nil {
			logger.Error("failed to write validation response", zap.Error(werr))
		}

	case services.IsNotFoundError(err):
		if werr := utils.WriteAPIError(w, http.StatusNotFound, utils.ErrTypeInvalidRequest, "not_found", err.Error()); werr != nil {
			logger.Error("failed to write not found response", zap.Error(werr))
		}

	default:
		// Unknown errors get logged in full but answered generically.
		logger.Error("internal server error", zap.Error(err))
		if werr := utils.WriteInternalError(w); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		if werr := utils.WriteInvalidRequest(w, "validation_failed", "Validation failed", fields); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if werr := utils.WriteInvalidRequest(w, "invalid_request", err.Error(), nil); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}

func writeProviderError(w http.ResponseWriter, provErr *providers.ProviderError, logger *zap.Logger) {
	status := http.StatusBadGateway
	errType := utils.ErrTypeAPI
	message := provErr.Message

	switch provErr.Code {
	case providers.CodeUnauthorized:
		// Never echo upstream auth details back to the caller.
		message = "upstream provider rejected the gateway credentials"
	case providers.CodeRateLimited:
		status = http.StatusTooManyRequests
		errType = utils.ErrTypeRateLimit
	case providers.CodeModelNotFound:
		status = http.StatusNotFound
		errType = utils.ErrTypeInvalidRequest
	case providers.CodeBadRequest:
		status = http.StatusBadRequest
		errType = utils.ErrTypeInvalidRequest
	case providers.CodeTimeout:
		status = http.StatusGatewayTimeout
	case providers.CodeUnavailable, providers.CodeAPIError:
		status = http.StatusBadGateway
	}

	logger.Warn("provider error",
		zap.String("provider", provErr.Provider),
		zap.String("code", provErr.Code),
		zap.Int("upstream_status", provErr.StatusCode),
		zap.Int("status", status))

	if werr := utils.WriteAPIError(w, status, errType, provErr.Code, message); werr != nil {
		logger.Error("failed to write provider error response", zap.Error(werr))
	}
}

func domainDetails(err error) map[string]string {
	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) || len(domainErr.Details) == 0 {
		return nil
	}

	details := make(map[string]string, len(domainErr.Details))
	for k, v := range domainErr.Details {
		details[k] = fmt.Sprintf("%v", v)
	}
	return details
}

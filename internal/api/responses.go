package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/middleware"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents an API error
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func requestID(c *gin.Context) string {
	if id, ok := c.Get(middleware.ContextKeyRequestID); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

func respondError(c *gin.Context, status int, apiErr *APIError) {
	c.JSON(status, APIResponse{
		Success:   false,
		Error:     apiErr,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// SuccessResponse sends a 200 OK response
func SuccessResponse(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, data)
}

// AcceptedResponse sends a 202 Accepted response
func AcceptedResponse(c *gin.Context, data interface{}) {
	respond(c, http.StatusAccepted, data)
}

// StatusCodeFor maps an error to its HTTP status
func StatusCodeFor(err error) int {
	appErr, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Type {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrorTypeUpstream:
		return http.StatusBadGateway
	case errors.ErrorTypeCircuitOpen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponseFromError sends an error response based on the error type
func ErrorResponseFromError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, &APIError{
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred",
		})
		return
	}

	apiErr := &APIError{
		Code:    appErr.Code,
		Message: appErr.Message,
	}
	if len(appErr.Details) > 0 {
		apiErr.Details = make(map[string]interface{}, len(appErr.Details))
		for k, v := range appErr.Details {
			apiErr.Details[k] = v
		}
	}

	respondError(c, StatusCodeFor(err), apiErr)
}

// NotFoundResponse sends a 404 Not Found response
func NotFoundResponse(c *gin.Context, code, message string) {
	respondError(c, http.StatusNotFound, &APIError{
		Code:    code,
		Message: message,
	})
}

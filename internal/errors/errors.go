package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error codes shared by the API and the problem mapper.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeNoData             = "NO_DATA"
	CodeDatasetUnavailable = "DATASET_UNAVAILABLE"
	CodeDatasetInvalid     = "DATASET_INVALID"
	CodeModelFitFailed     = "MODEL_FIT_FAILED"
	CodeInsufficientData   = "INSUFFICIENT_DATA"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeExportFailed       = "EXPORT_FAILED"
	CodeRenderFailed       = "RENDER_FAILED"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	ErrNoData             = New(http.StatusNotFound, CodeNoData, "No data after filtering")
	ErrModelFit           = New(http.StatusUnprocessableEntity, CodeModelFitFailed, "Forecast model could not be fitted")
	ErrDatasetUnavailable = New(http.StatusServiceUnavailable, CodeDatasetUnavailable, "Attendance dataset not found")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NotFoundError creates a not found error with details
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), resource)
}

// NoDataError reports an empty selection together with the filter that
// produced it.
func NoDataError(filter interface{}) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeNoData, "No data after filtering", filter)
}

// ModelFitError carries the per-model fit failures.
func ModelFitError(causes interface{}) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, CodeModelFitFailed, "Forecast model could not be fitted", causes)
}

// InsufficientDataError reports how many monthly points were available.
func InsufficientDataError(points, required int) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, CodeInsufficientData,
		fmt.Sprintf("Seasonal forecast needs at least %d monthly points, got %d", required, points),
		map[string]int{"points": points, "required": required})
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		CodeValidationFailed,
		"Request validation failed",
		ValidationErrors{Errors: errors},
	)
}

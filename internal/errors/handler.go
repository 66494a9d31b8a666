package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// Common error types following RFC 7807
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"
	TypeMethod      = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeNoData             = "/errors/data/no-data"
	TypeDatasetUnavailable = "/errors/dataset/unavailable"
	TypeDatasetInvalid     = "/errors/dataset/invalid"
	TypeModelFit           = "/errors/forecast/model-fit"
	TypeInsufficientData   = "/errors/forecast/insufficient-data"
	TypeExport             = "/errors/export/failed"
	TypeRender             = "/errors/chart/render-failed"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	_ = render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	// ModelFitError wraps its causes, so it is matched before ValidationError.
	var fitErr *forecast.ModelFitError
	if errors.As(err, &fitErr) {
		return h.apiErrorToProblem(ModelFitError(fitErr.Messages()), r)
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return h.apiErrorToProblem(NewWithDetails(http.StatusBadRequest, CodeValidationFailed, valErr.Error(), ValidationError{
			Field:   valErr.Field,
			Message: valErr.Message,
			Value:   valErr.Value,
		}), r)
	}

	if errors.Is(err, dataset.ErrDatasetNotFound) {
		return h.apiErrorToProblem(ErrDatasetUnavailable, r)
	}

	var parseErr *dataset.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, dataset.ErrMissingColumns) {
		return NewProblemDetails(
			http.StatusServiceUnavailable,
			TypeDatasetInvalid,
			"Dataset Invalid",
			err.Error(),
			path,
		).WithExtension("error_code", CodeDatasetInvalid)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, path)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		path,
	).WithExtension("error_code", CodeInternal)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType(apiErr.ErrorCode),
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

func problemType(code string) string {
	switch code {
	case CodeValidationFailed, CodeInvalidRequest:
		return TypeValidation
	case CodeNotFound:
		return TypeNotFound
	case CodeNoData:
		return TypeNoData
	case CodeDatasetUnavailable:
		return TypeDatasetUnavailable
	case CodeDatasetInvalid:
		return TypeDatasetInvalid
	case CodeModelFitFailed:
		return TypeModelFit
	case CodeInsufficientData:
		return TypeInsufficientData
	case CodeRateLimitExceeded:
		return TypeRateLimit
	case CodeServiceUnavailable:
		return TypeServiceDown
	case CodeExportFailed:
		return TypeExport
	case CodeRenderFailed:
		return TypeRender
	default:
		return TypeInternal
	}
}

func appErrorToProblem(appErr *AppError, path string) *ProblemDetails {
	status, code := http.StatusInternalServerError, CodeInternal
	switch appErr.Type {
	case ErrTypeExport:
		code = CodeExportFailed
	case ErrTypeRender:
		code = CodeRenderFailed
	}

	problem := NewProblemDetails(status, problemType(code), http.StatusText(status), appErr.Message, path).
		WithExtension("error_code", code)
	if len(appErr.Context) > 0 {
		problem.WithExtension("details", appErr.Context)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	_ = render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethod,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// JSON helper for consistent JSON responses
func (h *ErrorHandler) JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

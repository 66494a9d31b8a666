package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/internal/shared/testutil"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func modelFitError(t *testing.T) error {
	t.Helper()
	series := domain.MonthlySeries{{Month: domain.MonthKey{Year: 2023, Month: 1}, Total: 5}}
	_, err := forecast.Forecast(series, 3)
	require.Error(t, err)
	return err
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout, ""},
		{"canceled wrapped", fmt.Errorf("load: %w", context.Canceled), http.StatusGatewayTimeout, TypeTimeout, ""},
		{"api error", ErrNoData, http.StatusNotFound, TypeNoData, CodeNoData},
		{"domain validation", &domain.ValidationError{Field: "category", Message: "unknown category", Value: "Gripe"}, http.StatusBadRequest, TypeValidation, CodeValidationFailed},
		{"dataset missing", fmt.Errorf("open: %w", dataset.ErrDatasetNotFound), http.StatusServiceUnavailable, TypeDatasetUnavailable, CodeDatasetUnavailable},
		{"dataset malformed", &dataset.ParseError{Line: 3, Column: domain.ColumnMonth, Value: "13", Err: fmt.Errorf("bad")}, http.StatusServiceUnavailable, TypeDatasetInvalid, CodeDatasetInvalid},
		{"missing columns", fmt.Errorf("%w: Asma", dataset.ErrMissingColumns), http.StatusServiceUnavailable, TypeDatasetInvalid, CodeDatasetInvalid},
		{"export failure", NewExportError("xlsx", fmt.Errorf("disk full")), http.StatusInternalServerError, TypeExport, CodeExportFailed},
		{"render failure", NewRenderError("forecast", fmt.Errorf("bad canvas")), http.StatusInternalServerError, TypeRender, CodeRenderFailed},
		{"generic", fmt.Errorf("something went wrong"), http.StatusInternalServerError, TypeInternal, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/dashboard/overview", nil)
			handler.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/dashboard/overview", body["instance"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
			assert.NotContains(t, body, "stack")
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_ModelFitError(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/forecast", nil), modelFitError(t))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, TypeModelFit, body["type"])
	assert.Equal(t, CodeModelFitFailed, body["error_code"])

	details := body["details"].(map[string]interface{})
	assert.Contains(t, details, "seasonal")
	assert.Contains(t, details, "trend")
}

func TestErrorHandler_ValidationDetails(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	problem := handler.ErrorToProblem(
		&domain.ValidationError{Field: "horizon", Message: "must be positive", Value: 0},
		httptest.NewRequest(http.MethodGet, "/x", nil),
	)
	assert.Equal(t, "horizon: must be positive", problem.Detail)
	assert.Equal(t, ValidationError{Field: "horizon", Message: "must be positive", Value: 0}, problem.Extensions["details"])
}

func TestErrorHandler_NilError(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, 0, logs.Count())
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))
	assert.Contains(t, decodeProblem(t, w), "stack")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/panic", nil), "nil map")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body, "panic")
	assert.True(t, logs.ContainsMessage("panic recovered"))
}

func TestErrorHandler_NotFoundAndMethod(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", decodeProblem(t, w)["detail"])
}

func TestProblemDetailsMarshal(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNoData, "Not Found", "", "").
		WithExtension("error_code", CodeNoData).
		WithExtension("status", "shadowed")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, float64(http.StatusNotFound), body["status"], "standard members win over extensions")
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "instance")
	assert.Equal(t, CodeNoData, body["error_code"])
}

package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{"invalid request", InvalidRequestWithError(errors.New("bad query")), http.StatusBadRequest, CodeInvalidRequest},
		{"validation", ErrValidation("horizon", "must be between 1 and 24"), http.StatusBadRequest, CodeValidationFailed},
		{"not found", NotFoundError("chart"), http.StatusNotFound, CodeNotFound},
		{"no data", NoDataError(map[string]any{"years": []int{1999}}), http.StatusNotFound, CodeNoData},
		{"model fit", ModelFitError(map[string]string{"trend": "too few"}), http.StatusUnprocessableEntity, CodeModelFitFailed},
		{"insufficient", InsufficientDataError(12, 24), http.StatusUnprocessableEntity, CodeInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.Equal(t, tt.err.Message, tt.err.Error())
		})
	}
}

func TestInsufficientDataErrorMessage(t *testing.T) {
	err := InsufficientDataError(12, 24)
	assert.Equal(t, "Seasonal forecast needs at least 24 monthly points, got 12", err.Message)
	assert.Equal(t, map[string]int{"points": 12, "required": 24}, err.Details)
}

func TestNewValidationErrors(t *testing.T) {
	err := NewValidationErrors([]ValidationError{
		{Field: "year", Message: "must be a number", Value: "abc"},
		{Field: "horizon", Message: "too large", Value: 30},
	})

	details, ok := err.Details.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, details.Errors, 2)
	assert.Equal(t, CodeValidationFailed, err.ErrorCode)
}

func TestAPIErrorRender(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/dashboard/forecast", nil)

	require.NoError(t, render.Render(w, r, ErrModelFit))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeModelFitFailed, body["error_code"])
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{"no data", ErrNoData, http.StatusNotFound, CodeNoData},
		{"model fit", ErrModelFit, http.StatusUnprocessableEntity, CodeModelFitFailed},
		{"dataset unavailable", ErrDatasetUnavailable, http.StatusServiceUnavailable, CodeDatasetUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

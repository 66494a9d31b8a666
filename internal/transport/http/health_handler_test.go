package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	"github.com/prisnormando/atendimentosapsdf/internal/services"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

type stubProbe struct {
	records []domain.AttendanceRecord
	err     error
}

func (p *stubProbe) Get(ctx context.Context) ([]domain.AttendanceRecord, error) {
	return p.records, p.err
}

func (p *stubProbe) Stats() dataset.CacheStats {
	return dataset.CacheStats{Path: "data/atendimentos.csv"}
}

func newTestHealthHandler(probe services.DatasetProbe) *HealthHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHealthHandler(services.NewHealthService("1.0.0", "2024-01-01", probe, logger), logger)
}

func TestHealthHandler_Routes(t *testing.T) {
	h := newTestHealthHandler(&stubProbe{records: make([]domain.AttendanceRecord, 3)})

	tests := []struct {
		target       string
		expectedBody string
	}{
		{"/", `"status":"ok"`},
		{"/ready", `"status":"ready"`},
		{"/live", `"status":"alive"`},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}

func TestHealthHandler_ReadinessNotReady(t *testing.T) {
	h := newTestHealthHandler(&stubProbe{err: errors.New("dataset file not found")})

	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"not_ready"`)
	assert.Contains(t, rec.Body.String(), "dataset file not found")
}

func TestHealthHandler_Version(t *testing.T) {
	h := newTestHealthHandler(nil)

	rec := httptest.NewRecorder()
	h.Version(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "2024-01-01", body["build_time"])
}

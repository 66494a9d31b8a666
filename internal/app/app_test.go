package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisnormando/atendimentosapsdf/internal/config"
	"github.com/prisnormando/atendimentosapsdf/internal/shared/testutil"
)

// testConfig returns a configuration rooted in a temp dir with telemetry
// reduced to the Prometheus exporter.
func testConfig(t *testing.T) (*config.Config, *config.Paths) {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Logging.Output = "stdout"
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "prometheus"
	cfg.Security.RateLimit.Enabled = false

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	require.NoError(t, os.MkdirAll(paths.DataDir, 0755))
	return cfg, paths
}

func newTestApplication(t *testing.T, withDataset bool) *Application {
	t.Helper()

	cfg, paths := testConfig(t)
	if withDataset {
		testutil.WriteDatasetCSV(t, paths.DataDir, cfg.Dataset.File, testutil.SampleDataset())
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(cfg, paths, logger)
	require.NoError(t, err)
	return app
}

func TestNew(t *testing.T) {
	app := newTestApplication(t, true)

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.Dataset)
	require.NotNil(t, app.Services)
	assert.NotNil(t, app.Services.Dashboard)
	assert.NotNil(t, app.Services.Health)
	assert.NotNil(t, app.OTelProviders.PrometheusHTTP)
	assert.Equal(t, app.Paths.DatasetFile, app.Dataset.Path())
	assert.Equal(t, ":0", app.Server.Addr)
}

func TestApplication_Routes(t *testing.T) {
	app := newTestApplication(t, true)
	server := httptest.NewServer(app.Router)
	defer server.Close()

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedType   string
		expectedBody   string
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK, "application/json", `"status":"ok"`},
		{"health trailing slash", http.MethodGet, "/api/health/", http.StatusOK, "application/json", `"status":"ok"`},
		{"readiness", http.MethodGet, "/api/health/ready", http.StatusOK, "application/json", `"records":108`},
		{"liveness", http.MethodGet, "/api/health/live", http.StatusOK, "application/json", `"status":"alive"`},
		{"version", http.MethodGet, "/api/version", http.StatusOK, "application/json", `"version":"1.0.0"`},
		{"filters", http.MethodGet, "/api/dashboard/filters", http.StatusOK, "application/json", `"Central"`},
		{"monthly totals", http.MethodGet, "/api/dashboard/temporal/total", http.StatusOK, "application/json", `"count":36`},
		{"filtered region", http.MethodGet, "/api/dashboard/regions?region=Oeste", http.StatusOK, "application/json", `"count":1`},
		{"forecast", http.MethodGet, "/api/dashboard/forecast?horizon=3", http.StatusOK, "application/json", `"model":"seasonal"`},
		{"chart", http.MethodGet, "/api/dashboard/charts/monthly.png", http.StatusOK, "image/png", "PNG"},
		{"csv export", http.MethodGet, "/api/dashboard/export/csv?horizon=2", http.StatusOK, "text/csv", "month"},
		{"no data", http.MethodGet, "/api/dashboard/temporal/total?year=2030", http.StatusNotFound, "application/json", `"NO_DATA"`},
		{"bad horizon", http.MethodGet, "/api/dashboard/forecast?horizon=99", http.StatusBadRequest, "application/json", `"VALIDATION_FAILED"`},
		{"unknown route", http.MethodGet, "/api/unknown", http.StatusNotFound, "application/json", `"status":404`},
		{"reload", http.MethodPost, "/api/dataset/reload", http.StatusOK, "application/json", `"records":108`},
		{"reload wrong method", http.MethodGet, "/api/dataset/reload", http.StatusMethodNotAllowed, "application/json", `"status":405`},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "text/plain", "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, server.URL+tt.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))
			assert.Contains(t, resp.Header.Get("Content-Type"), tt.expectedType)
			assert.Contains(t, string(body), tt.expectedBody)
		})
	}
}

func TestApplication_SecurityHeaders(t *testing.T) {
	app := newTestApplication(t, true)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestApplication_DatasetMissing(t *testing.T) {
	app := newTestApplication(t, false)

	t.Run("readiness fails", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"not_ready"`)
	})

	t.Run("dashboard reports unavailable dataset", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/temporal/total", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"DATASET_UNAVAILABLE"`)
	})

	t.Run("liveness still ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("reload picks up the file", func(t *testing.T) {
		testutil.WriteDatasetCSV(t, app.Paths.DataDir, app.Config.Dataset.File, testutil.SampleDataset())

		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dataset/reload", nil))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "success", body["status"])
	})
}

func TestApplication_RateLimit(t *testing.T) {
	cfg, paths := testConfig(t)
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}

	app, err := New(cfg, paths, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Scrapes bypass the limiter.
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_getCORSConfig(t *testing.T) {
	app := newTestApplication(t, false)
	app.Config.Security.AllowedOrigins = []string{"https://painel.saude.df.gov.br"}

	cors := app.getCORSConfig()

	assert.Equal(t, []string{"https://painel.saude.df.gov.br"}, cors.AllowedOrigins)
	assert.Contains(t, cors.AllowedMethods, "POST")
	assert.Contains(t, cors.ExposedHeaders, "Content-Disposition")
	assert.NotNil(t, cors.Logger)
}

func TestApplication_performStartupHealthCheck(t *testing.T) {
	t.Run("dataset present", func(t *testing.T) {
		app := newTestApplication(t, true)

		assert.NoError(t, app.performStartupHealthCheck(context.Background()))
		assert.True(t, app.Dataset.Stats().Loaded)
	})

	t.Run("dataset missing", func(t *testing.T) {
		app := newTestApplication(t, false)

		err := app.performStartupHealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dataset not loaded")
		assert.NoFileExists(t, filepath.Join(app.Paths.ExportDir, ".write_test"))
	})
}

func TestApplication_StartStop(t *testing.T) {
	app := newTestApplication(t, true)
	app.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx, cancel))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	assert.NoError(t, app.Stop(shutdownCtx))

	// A clean shutdown must not cancel ctx.
	select {
	case <-ctx.Done():
		t.Fatal("context cancelled by a clean shutdown")
	default:
	}
}

func TestNewApplication_FromEnvironment(t *testing.T) {
	base := t.TempDir()
	t.Setenv("APS_PATHS_BASE_DIR", base)
	t.Setenv("APS_LOGGING_OUTPUT", "stdout")
	t.Setenv("APS_LOGGING_LEVEL", "error")
	t.Setenv("APS_TELEMETRY_TRACE_EXPORTER", "none")
	t.Setenv("APS_TELEMETRY_METRIC_EXPORTER", "none")
	t.Setenv("APS_FORECAST_MAX_HORIZON", "6")
	t.Setenv("APS_FORECAST_DEFAULT_HORIZON", "6")

	app, err := NewApplication()
	require.NoError(t, err)

	assert.Equal(t, base, app.Paths.BaseDir)
	assert.DirExists(t, app.Paths.ExportDir)
	assert.True(t, strings.HasPrefix(app.Paths.DatasetFile, base))
	assert.Nil(t, app.OTelProviders.PrometheusHTTP)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/forecast?horizon=7", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	t.Setenv("APS_PATHS_BASE_DIR", t.TempDir())
	t.Setenv("APS_LOGGING_LEVEL", "verbose")

	_, err := NewApplication()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

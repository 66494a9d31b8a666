package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test so .env and config.yaml
// discovery does not see the repository.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Security.RateLimit.Enabled)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)

	assert.Equal(t, DefaultDatasetFile, cfg.Dataset.File)
	assert.Equal(t, 5, cfg.Dataset.SampleRows)
	assert.Equal(t, 12, cfg.Forecast.DefaultHorizon)
	assert.Equal(t, 24, cfg.Forecast.MaxHorizon)
	assert.False(t, cfg.Forecast.RequireSufficientData)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
server:
  port: 9000
  read_timeout: 5s
forecast:
  default_horizon: 6
  max_horizon: 18
dataset:
  file: custom.csv
logging:
  level: DEBUG
  format: text
`), 0644))

	t.Setenv("APS_SERVER_PORT", "9100")
	t.Setenv("APS_FORECAST_REQUIRE_SUFFICIENT_DATA", "true")
	t.Setenv("APS_SECURITY_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := LoadFile(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout, "file wins over default")
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "default kept")
	assert.Equal(t, 6, cfg.Forecast.DefaultHorizon)
	assert.Equal(t, 18, cfg.Forecast.MaxHorizon)
	assert.True(t, cfg.Forecast.RequireSufficientData)
	assert.Equal(t, "custom.csv", cfg.Dataset.File)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format, "format is always json")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APS_DATASET_SAMPLE_ROWS=9\nAPS_SERVER_PORT=7000\n"), 0644))
	t.Setenv("APS_SERVER_PORT", "7100")
	t.Cleanup(func() { os.Unsetenv("APS_DATASET_SAMPLE_ROWS") })

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Dataset.SampleRows)
	assert.Equal(t, 7100, cfg.Server.Port, "process environment wins over .env")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port out of range", map[string]string{"APS_SERVER_PORT": "70000"}},
		{"default horizon above max", map[string]string{"APS_FORECAST_DEFAULT_HORIZON": "30"}},
		{"unknown log level", map[string]string{"APS_LOGGING_LEVEL": "loud"}},
		{"unknown trace exporter", map[string]string{"APS_TELEMETRY_TRACE_EXPORTER": "zipkin"}},
		{"sample ratio above one", map[string]string{"APS_TELEMETRY_SAMPLE_RATIO": "1.5"}},
		{"malformed duration", map[string]string{"APS_SERVER_READ_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := LoadFile("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.BaseDir = base

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(base, "data", DefaultDatasetFile), paths.DatasetFile)
	assert.Equal(t, filepath.Join(base, "logs", "app.log"), paths.LogFile)

	abs := filepath.Join(base, "elsewhere", "set.csv")
	cfg.Dataset.File = abs
	paths, err = cfg.ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, abs, paths.DatasetFile)

	require.NoError(t, paths.EnsureDirectories())
	assert.True(t, FileExists(paths.LogsDir))
	assert.True(t, FileExists(paths.ExportDir))
	assert.False(t, FileExists(paths.DatasetFile))
}

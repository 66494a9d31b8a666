package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/prisnormando/atendimentosapsdf/internal/charts"
	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	apperrors "github.com/prisnormando/atendimentosapsdf/internal/errors"
	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/internal/infrastructure"
	"github.com/prisnormando/atendimentosapsdf/internal/shared/testutil"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

type serviceFixture struct {
	svc     *DashboardService
	cache   *dataset.Cache
	logs    *testutil.BufferedSlogHandler
	reader  *sdkmetric.ManualReader
	options DashboardOptions
}

func newFixture(t *testing.T, records []domain.AttendanceRecord, opts DashboardOptions) *serviceFixture {
	t.Helper()

	path := testutil.WriteDatasetCSV(t, t.TempDir(), "atendimentos.csv", records)
	return newFixtureForPath(t, path, opts)
}

func newFixtureForPath(t *testing.T, path string, opts DashboardOptions) *serviceFixture {
	t.Helper()

	logger, logs := testutil.NewTestLogger(t)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := infrastructure.CreateDashboardMetrics(provider.Meter("test"))
	require.NoError(t, err)

	cache := dataset.NewCache(path, nil, logger)
	svc := NewDashboardService(cache, forecast.NewForecaster(forecast.WithLogger(logger)), opts, metrics, logger)
	return &serviceFixture{svc: svc, cache: cache, logs: logs, reader: reader, options: opts}
}

// counterValue sums the data points of the named counter.
func (f *serviceFixture) counterValue(t *testing.T, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func singleRecord() []domain.AttendanceRecord {
	return []domain.AttendanceRecord{
		testutil.Record("UBS 1", "Central", 2023, 1, map[domain.Category]int64{domain.CategoryAsthma: 10}),
	}
}

func TestDashboardService_Filters(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})

	got, err := f.svc.Filters(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2021, 2022, 2023}, got.Years)
	assert.Equal(t, []string{"Central", "Oeste", "Sudoeste"}, got.Regions)
	assert.Equal(t, domain.CategoryNames(), got.Categories)
}

func TestDashboardService_Overview(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{SampleRows: 3})

	got, err := f.svc.Overview(context.Background(), dataset.Filter{Regions: []string{"Central"}})
	require.NoError(t, err)

	assert.Equal(t, 1, got.Summary.Establishments)
	assert.Equal(t, 36, got.Summary.Months)
	assert.Equal(t, 36, got.Summary.Records)
	require.Len(t, got.Sample, 3)
	assert.Equal(t, "UBS 1 Asa Norte", got.Sample[0].Establishment)
	assert.Equal(t, int64(10), got.Sample[0].Counts["Asma"])
}

func TestDashboardService_MonthlyTotals(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})
	ctx := context.Background()

	t.Run("year filter", func(t *testing.T) {
		series, err := f.svc.MonthlyTotals(ctx, dataset.Filter{Years: []int{2023}}, nil)
		require.NoError(t, err)
		require.Len(t, series, 12)
		assert.Equal(t, domain.MonthKey{Year: 2023, Month: 1}, series[0].Month)
	})

	t.Run("category subset", func(t *testing.T) {
		series, err := f.svc.MonthlyTotals(ctx, dataset.Filter{Years: []int{2021}}, []string{"DPOC"})
		require.NoError(t, err)
		for _, p := range series {
			assert.Equal(t, int64(3), p.Total)
		}
	})

	t.Run("no data", func(t *testing.T) {
		_, err := f.svc.MonthlyTotals(ctx, dataset.Filter{Regions: []string{"Norte"}}, nil)
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := f.svc.MonthlyTotals(ctx, dataset.Filter{}, []string{"Gripe"})
		var valErr *domain.ValidationError
		assert.ErrorAs(t, err, &valErr)
	})
}

func TestDashboardService_Breakdowns(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})
	ctx := context.Background()
	filter := dataset.Filter{Years: []int{2022}}

	regions, err := f.svc.RegionTotals(ctx, filter)
	require.NoError(t, err)
	require.Len(t, regions, 3)
	assert.Equal(t, "Central", regions[0].Name)

	establishments, err := f.svc.EstablishmentTotals(ctx, filter)
	require.NoError(t, err)
	require.Len(t, establishments, 3)
	assert.Equal(t, "UBS 3 Taguatinga", establishments[0].Name)
	assert.Equal(t, int64(36), establishments[0].Total)

	dist, err := f.svc.ConditionDistribution(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, dist, domain.NumCategories)

	trends, err := f.svc.ConditionTrends(ctx, filter, []string{"Asma", "Tabagismo"})
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Len(t, trends[1].Series, 12)

	corr, err := f.svc.ConditionCorrelation(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, corr.Values, domain.NumCategories)
}

func TestDashboardService_ForecastSeasonal(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})

	report, err := f.svc.Forecast(context.Background(), dataset.Filter{}, 6)
	require.NoError(t, err)

	assert.Equal(t, forecast.ModelSeasonal, report.Model)
	assert.Empty(t, report.FallbackReason)
	assert.Nil(t, report.Warning)
	assert.Len(t, report.History, 36)
	require.Len(t, report.Forecast, 6)
	assert.Equal(t, domain.MonthKey{Year: 2024, Month: 1}, report.Forecast[0].Month)
	assert.Equal(t, int64(1), f.counterValue(t, "forecast_requests_total"))
	assert.Zero(t, f.counterValue(t, "forecast_fallbacks_total"))
}

func TestDashboardService_ForecastFallback(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})

	report, err := f.svc.Forecast(context.Background(), dataset.Filter{Years: []int{2023}}, 3)
	require.NoError(t, err)

	assert.Equal(t, forecast.ModelTrend, report.Model)
	assert.Contains(t, report.FallbackReason, "seasonal")
	require.NotNil(t, report.Warning)
	assert.Equal(t, 12, report.Warning.Points)
	assert.Len(t, report.Forecast, 3)

	testutil.AssertLogContains(t, f.logs, slog.LevelWarn, "seasonal model discarded, using trend fallback")
	assert.Equal(t, int64(1), f.counterValue(t, "forecast_fallbacks_total"))
}

func TestDashboardService_ForecastStrictMode(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{RequireSufficientData: true})

	_, err := f.svc.Forecast(context.Background(), dataset.Filter{Years: []int{2023}}, 3)
	require.ErrorIs(t, err, ErrInsufficientData)

	var histErr *InsufficientHistoryError
	require.ErrorAs(t, err, &histErr)
	assert.Equal(t, 12, histErr.Points)
	assert.Equal(t, forecast.MinSeasonalPoints, histErr.Required)

	report, err := f.svc.Forecast(context.Background(), dataset.Filter{}, 3)
	require.NoError(t, err)
	assert.Equal(t, forecast.ModelSeasonal, report.Model)
}

func TestDashboardService_ForecastHorizonBounds(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{MaxHorizon: 24})

	for _, horizon := range []int{0, -1, 25} {
		_, err := f.svc.Forecast(context.Background(), dataset.Filter{}, horizon)
		var valErr *domain.ValidationError
		require.ErrorAs(t, err, &valErr, "horizon %d", horizon)
		assert.Equal(t, "horizon", valErr.Field)
	}
}

func TestDashboardService_ForecastModelFitError(t *testing.T) {
	f := newFixture(t, singleRecord(), DashboardOptions{})

	_, err := f.svc.Forecast(context.Background(), dataset.Filter{}, 3)
	var fitErr *forecast.ModelFitError
	require.ErrorAs(t, err, &fitErr)
	assert.Len(t, fitErr.Causes, 2)
	assert.Equal(t, int64(1), f.counterValue(t, "dashboard_errors_total"))
}

func TestDashboardService_DatasetMissing(t *testing.T) {
	f := newFixtureForPath(t, filepath.Join(t.TempDir(), "missing.csv"), DashboardOptions{})

	_, err := f.svc.Filters(context.Background())
	assert.ErrorIs(t, err, dataset.ErrDatasetNotFound)

	_, err = f.svc.MonthlyTotals(context.Background(), dataset.Filter{}, nil)
	assert.ErrorIs(t, err, dataset.ErrDatasetNotFound)
}

func TestDashboardService_RenderChart(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})

	for _, kind := range charts.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			var buf bytes.Buffer
			err := f.svc.RenderChart(context.Background(), ChartRequest{Kind: kind, Horizon: 6}, &buf)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
		})
	}

	assert.Equal(t, int64(len(charts.Kinds())), f.counterValue(t, "dashboard_chart_renders_total"))
}

func TestDashboardService_RenderChartErrors(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})
	ctx := context.Background()
	var buf bytes.Buffer

	err := f.svc.RenderChart(ctx, ChartRequest{Kind: "pie"}, &buf)
	assert.ErrorIs(t, err, charts.ErrUnknownChart)

	err = f.svc.RenderChart(ctx, ChartRequest{Kind: charts.KindRegions, Filter: dataset.Filter{Years: []int{1999}}}, &buf)
	assert.ErrorIs(t, err, ErrNoData)

	err = f.svc.RenderChart(ctx, ChartRequest{Kind: charts.KindForecast, Horizon: 0}, &buf)
	var valErr *domain.ValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.Zero(t, buf.Len())
}

func TestDashboardService_ExportXLSX(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(context.Background(), FormatXLSX, dataset.Filter{}, 12, &buf))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()
	assert.Contains(t, wb.GetSheetList(), "Previsao")
	assert.Equal(t, int64(1), f.counterValue(t, "dashboard_exports_total"))
}

func TestDashboardService_ExportCSVWithoutForecast(t *testing.T) {
	f := newFixture(t, singleRecord(), DashboardOptions{})

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(context.Background(), FormatCSV, dataset.Filter{}, 12, &buf))

	assert.Contains(t, buf.String(), "month,total")
	assert.Contains(t, buf.String(), "2023-01,10")
	testutil.AssertLogContains(t, f.logs, slog.LevelWarn, "report without forecast")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDashboardService_ExportWriteFailure(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})

	err := f.svc.Export(context.Background(), FormatCSV, dataset.Filter{}, 12, failingWriter{})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeExport, appErr.Type)
	assert.Equal(t, "csv", appErr.Context["format"])

	err = f.svc.Export(context.Background(), ExportFormat("pdf"), dataset.Filter{}, 12, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDashboardService_ReloadDataset(t *testing.T) {
	f := newFixture(t, testutil.SampleDataset(), DashboardOptions{})
	ctx := context.Background()

	_, err := f.svc.Filters(ctx)
	require.NoError(t, err)

	info, err := f.svc.ReloadDataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 108, info.Records)
	assert.Equal(t, f.cache.Path(), info.Path)
	assert.False(t, info.LoadedAt.IsZero())
	assert.Equal(t, int64(2), f.cache.Stats().Loads)
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
	assert.Contains(t, format.ContentType(), "spreadsheetml")

	format, err = ParseExportFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", format.ContentType())

	_, err = ParseExportFormat("pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

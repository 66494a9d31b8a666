package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prisnormando/atendimentosapsdf/internal/analytics"
	"github.com/prisnormando/atendimentosapsdf/internal/charts"
	"github.com/prisnormando/atendimentosapsdf/internal/config"
	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	apperrors "github.com/prisnormando/atendimentosapsdf/internal/errors"
	"github.com/prisnormando/atendimentosapsdf/internal/exporter"
	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/internal/infrastructure"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// TracerName identifies spans started by the services.
const TracerName = "github.com/prisnormando/atendimentosapsdf/internal/services"

// DatasetSource provides the attendance records. *dataset.Cache implements it.
type DatasetSource interface {
	Get(ctx context.Context) ([]domain.AttendanceRecord, error)
	Invalidate()
	Stats() dataset.CacheStats
}

// DashboardOptions tune the dashboard behaviour.
type DashboardOptions struct {
	SampleRows            int
	MaxHorizon            int
	RequireSufficientData bool
}

// DashboardOptionsFromConfig builds options from the application config.
func DashboardOptionsFromConfig(cfg *config.Config) DashboardOptions {
	return DashboardOptions{
		SampleRows:            cfg.Dataset.SampleRows,
		MaxHorizon:            cfg.Forecast.MaxHorizon,
		RequireSufficientData: cfg.Forecast.RequireSufficientData,
	}
}

// FilterOptions lists the values the dashboard can filter by.
type FilterOptions struct {
	Years      []int    `json:"years"`
	Regions    []string `json:"regions"`
	Categories []string `json:"categories"`
}

// Overview holds the KPI cards and a sample of the filtered rows.
type Overview struct {
	Filter  dataset.Filter      `json:"filter"`
	Summary analytics.Summary   `json:"summary"`
	Sample  []domain.RecordView `json:"sample"`
}

// ForecastReport is the observed history with its forecast.
type ForecastReport struct {
	Filter         dataset.Filter                    `json:"filter"`
	Horizon        int                               `json:"horizon"`
	History        domain.MonthlySeries              `json:"history"`
	Forecast       domain.ForecastSeries             `json:"forecast"`
	Model          forecast.ModelKind                `json:"model"`
	Params         forecast.Params                   `json:"params"`
	FallbackReason string                            `json:"fallback_reason,omitempty"`
	Warning        *forecast.InsufficientDataWarning `json:"warning,omitempty"`
}

func (r *ForecastReport) result() *forecast.Result {
	return &forecast.Result{
		Points:         r.Forecast,
		Model:          r.Model,
		Params:         r.Params,
		FallbackReason: r.FallbackReason,
		Warning:        r.Warning,
	}
}

// DatasetInfo describes the loaded dataset.
type DatasetInfo struct {
	Path     string    `json:"path"`
	Records  int       `json:"records"`
	LoadedAt time.Time `json:"loaded_at"`
}

// ChartRequest selects the data behind a chart. Categories applies to the
// condition trends; Horizon to the forecast.
type ChartRequest struct {
	Kind       charts.Kind
	Filter     dataset.Filter
	Categories []string
	Horizon    int
}

// ExportFormat is a download format.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
)

// ParseExportFormat resolves a format name, ignoring case.
func ParseExportFormat(name string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatXLSX, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// DashboardService produces the dashboard views over the cached dataset.
type DashboardService struct {
	source     DatasetSource
	forecaster *forecast.Forecaster
	renderer   *charts.Renderer
	csv        *exporter.CSVWriter
	workbook   *exporter.WorkbookWriter
	metrics    *infrastructure.DashboardMetrics
	tracer     trace.Tracer
	opts       DashboardOptions
	logger     *slog.Logger
}

// NewDashboardService creates the service. A nil forecaster uses the default
// strategy and nil metrics record nothing.
func NewDashboardService(source DatasetSource, forecaster *forecast.Forecaster, opts DashboardOptions, metrics *infrastructure.DashboardMetrics, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if forecaster == nil {
		forecaster = forecast.NewForecaster(forecast.WithLogger(logger))
	}
	if metrics == nil {
		metrics = infrastructure.NewNoopDashboardMetrics()
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = config.DefaultSampleRows
	}
	if opts.MaxHorizon <= 0 {
		opts.MaxHorizon = config.MaxForecastHorizon
	}

	logger = logger.With(slog.String("component", "dashboard_service"))
	logger.Info("DashboardService initialized",
		slog.Int("sample_rows", opts.SampleRows),
		slog.Int("max_horizon", opts.MaxHorizon),
		slog.Bool("require_sufficient_data", opts.RequireSufficientData))

	return &DashboardService{
		source:     source,
		forecaster: forecaster,
		renderer:   charts.NewRenderer(charts.WithLogger(logger)),
		csv:        exporter.NewCSVWriter(true),
		workbook:   exporter.NewWorkbookWriter(),
		metrics:    metrics,
		tracer:     otel.Tracer(TracerName),
		opts:       opts,
		logger:     logger,
	}
}

// observe runs fn inside a span and records its duration.
func (s *DashboardService) observe(ctx context.Context, analysis string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "dashboard."+analysis)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	infrastructure.RecordAnalysis(ctx, s.metrics, analysis, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// records returns the filtered rows, or ErrNoData when none match.
func (s *DashboardService) records(ctx context.Context, filter dataset.Filter) ([]domain.AttendanceRecord, error) {
	all, err := s.source.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	rows := dataset.Apply(all, filter)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("dataset.records", len(all)),
		attribute.Int("dataset.filtered", len(rows)),
		attribute.String("dataset.filter", filter.Key()),
	)
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return rows, nil
}

// Filters returns the available years and regions of the full dataset.
func (s *DashboardService) Filters(ctx context.Context) (*FilterOptions, error) {
	var out *FilterOptions
	err := s.observe(ctx, "filters", func(ctx context.Context) error {
		all, err := s.source.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to load dataset: %w", err)
		}
		out = &FilterOptions{
			Years:      dataset.Years(all),
			Regions:    dataset.Regions(all),
			Categories: domain.CategoryNames(),
		}
		return nil
	})
	return out, err
}

// Overview returns the KPIs and the first rows of the filtered data.
func (s *DashboardService) Overview(ctx context.Context, filter dataset.Filter) (*Overview, error) {
	var out *Overview
	err := s.observe(ctx, "overview", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}

		n := s.opts.SampleRows
		if n > len(rows) {
			n = len(rows)
		}
		sample := make([]domain.RecordView, n)
		for i := range sample {
			sample[i] = rows[i].View()
		}

		out = &Overview{Filter: filter, Summary: analytics.Summarize(rows), Sample: sample}
		return nil
	})
	return out, err
}

// MonthlyTotals aggregates the filtered rows per month over the selected
// categories; none selects all.
func (s *DashboardService) MonthlyTotals(ctx context.Context, filter dataset.Filter, categories []string) (domain.MonthlySeries, error) {
	var out domain.MonthlySeries
	err := s.observe(ctx, "monthly_totals", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}
		out, err = analytics.MonthlyTotals(rows, categories)
		return err
	})
	return out, err
}

// ConditionTrends returns one monthly series per selected category.
func (s *DashboardService) ConditionTrends(ctx context.Context, filter dataset.Filter, categories []string) ([]analytics.ConditionSeries, error) {
	var out []analytics.ConditionSeries
	err := s.observe(ctx, "condition_trends", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}
		out, err = analytics.ConditionTrends(rows, categories)
		return err
	})
	return out, err
}

// RegionTotals returns the totals per health region.
func (s *DashboardService) RegionTotals(ctx context.Context, filter dataset.Filter) ([]analytics.GroupTotal, error) {
	var out []analytics.GroupTotal
	err := s.observe(ctx, "region_totals", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}
		out = analytics.TotalsByRegion(rows)
		return nil
	})
	return out, err
}

// EstablishmentTotals returns the totals per establishment, ascending.
func (s *DashboardService) EstablishmentTotals(ctx context.Context, filter dataset.Filter) ([]analytics.GroupTotal, error) {
	var out []analytics.GroupTotal
	err := s.observe(ctx, "establishment_totals", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}
		out = analytics.TotalsByEstablishment(rows)
		return nil
	})
	return out, err
}

// ConditionDistribution returns each category's total and share.
func (s *DashboardService) ConditionDistribution(ctx context.Context, filter dataset.Filter) ([]analytics.CategoryShare, error) {
	var out []analytics.CategoryShare
	err := s.observe(ctx, "condition_distribution", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}
		out = analytics.ConditionDistribution(rows)
		return nil
	})
	return out, err
}

// ConditionCorrelation returns the category correlation matrix.
func (s *DashboardService) ConditionCorrelation(ctx context.Context, filter dataset.Filter) (*analytics.CorrelationMatrix, error) {
	var out *analytics.CorrelationMatrix
	err := s.observe(ctx, "condition_correlation", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}
		m := analytics.ConditionCorrelation(rows)
		out = &m
		return nil
	})
	return out, err
}

// Forecast predicts horizon months after the filtered history. In strict
// mode a history shorter than two seasonal cycles is refused with an
// *InsufficientHistoryError.
func (s *DashboardService) Forecast(ctx context.Context, filter dataset.Filter, horizon int) (*ForecastReport, error) {
	if horizon < config.MinForecastHorizon || horizon > s.opts.MaxHorizon {
		return nil, &domain.ValidationError{
			Field:   "horizon",
			Message: fmt.Sprintf("horizon must be between %d and %d", config.MinForecastHorizon, s.opts.MaxHorizon),
			Value:   horizon,
		}
	}

	var out *ForecastReport
	err := s.observe(ctx, "forecast", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}
		history, err := analytics.MonthlyTotals(rows, nil)
		if err != nil {
			return err
		}

		if warn := forecast.CheckSufficiency(history); warn != nil && s.opts.RequireSufficientData {
			infrastructure.RecordFailure(ctx, s.metrics, "forecast", apperrors.CodeInsufficientData)
			return &InsufficientHistoryError{Points: warn.Points, Required: warn.Required}
		}

		start := time.Now()
		result, err := s.forecaster.Forecast(ctx, history, horizon)
		duration := time.Since(start)
		if err != nil {
			infrastructure.RecordForecast(ctx, s.metrics, "none", "failure", "", duration)
			var fitErr *forecast.ModelFitError
			if errors.As(err, &fitErr) {
				infrastructure.RecordFailure(ctx, s.metrics, "forecast", apperrors.CodeModelFitFailed)
			}
			return err
		}

		if result.FallbackReason != "" {
			s.logger.WarnContext(ctx, "seasonal model discarded, using trend fallback",
				slog.String("reason", result.FallbackReason),
				slog.Int("points", history.Len()),
				slog.String("filter", filter.Key()),
			)
		}
		infrastructure.RecordForecast(ctx, s.metrics, string(result.Model), "success", result.FallbackReason, duration)

		out = &ForecastReport{
			Filter:         filter,
			Horizon:        horizon,
			History:        history,
			Forecast:       result.Points,
			Model:          result.Model,
			Params:         result.Params,
			FallbackReason: result.FallbackReason,
			Warning:        result.Warning,
		}
		return nil
	})
	return out, err
}

// RenderChart draws the requested chart as PNG into w.
func (s *DashboardService) RenderChart(ctx context.Context, req ChartRequest, w io.Writer) error {
	err := s.renderChart(ctx, req, w)
	if err == nil {
		infrastructure.RecordChartRender(ctx, s.metrics, string(req.Kind))
		return nil
	}

	// Data errors keep their own mapping; only drawing failures become render errors.
	if errors.Is(err, charts.ErrEmptyData) || errors.Is(err, charts.ErrUnknownChart) {
		return err
	}
	var rendErr *renderFailure
	if errors.As(err, &rendErr) {
		infrastructure.RecordFailure(ctx, s.metrics, "chart", apperrors.CodeRenderFailed)
		return apperrors.NewRenderError(string(req.Kind), rendErr.err)
	}
	return err
}

type renderFailure struct{ err error }

func (r *renderFailure) Error() string { return r.err.Error() }
func (r *renderFailure) Unwrap() error { return r.err }

func (s *DashboardService) renderChart(ctx context.Context, req ChartRequest, w io.Writer) error {
	draw := func(err error) error {
		if err != nil && !errors.Is(err, charts.ErrEmptyData) {
			return &renderFailure{err: err}
		}
		return err
	}

	switch req.Kind {
	case charts.KindMonthly:
		series, err := s.MonthlyTotals(ctx, req.Filter, req.Categories)
		if err != nil {
			return err
		}
		return draw(s.renderer.Monthly(w, series))
	case charts.KindConditions:
		trends, err := s.ConditionTrends(ctx, req.Filter, req.Categories)
		if err != nil {
			return err
		}
		return draw(s.renderer.Conditions(w, trends))
	case charts.KindRegions:
		totals, err := s.RegionTotals(ctx, req.Filter)
		if err != nil {
			return err
		}
		return draw(s.renderer.Regions(w, totals))
	case charts.KindEstablishments:
		totals, err := s.EstablishmentTotals(ctx, req.Filter)
		if err != nil {
			return err
		}
		return draw(s.renderer.Establishments(w, totals))
	case charts.KindDistribution:
		shares, err := s.ConditionDistribution(ctx, req.Filter)
		if err != nil {
			return err
		}
		return draw(s.renderer.Distribution(w, shares))
	case charts.KindCorrelation:
		m, err := s.ConditionCorrelation(ctx, req.Filter)
		if err != nil {
			return err
		}
		return draw(s.renderer.Correlation(w, *m))
	case charts.KindForecast:
		report, err := s.Forecast(ctx, req.Filter, req.Horizon)
		if err != nil {
			return err
		}
		return draw(s.renderer.Forecast(w, report.History, report.Forecast, string(report.Model)))
	default:
		return fmt.Errorf("%w: %q", charts.ErrUnknownChart, req.Kind)
	}
}

// Export writes the filtered dashboard in format to w. The forecast section
// is included when a model could be fitted; a fit failure does not fail the
// export.
func (s *DashboardService) Export(ctx context.Context, format ExportFormat, filter dataset.Filter, horizon int, w io.Writer) error {
	report, err := s.BuildReport(ctx, filter, horizon)
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		err = s.csv.Write(w, *report)
	case FormatXLSX:
		err = s.workbook.Write(w, *report)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		infrastructure.RecordFailure(ctx, s.metrics, "export", apperrors.CodeExportFailed)
		return apperrors.NewExportError(string(format), err)
	}

	infrastructure.RecordExport(ctx, s.metrics, string(format))
	s.logger.InfoContext(ctx, "export generated",
		slog.String("format", string(format)),
		slog.String("filter", filter.Key()),
		slog.Int("months", report.Monthly.Len()),
		slog.Bool("forecast", report.Forecast != nil))
	return nil
}

// BuildReport gathers the exported sections for filter.
func (s *DashboardService) BuildReport(ctx context.Context, filter dataset.Filter, horizon int) (*exporter.Report, error) {
	var report *exporter.Report
	err := s.observe(ctx, "report", func(ctx context.Context) error {
		rows, err := s.records(ctx, filter)
		if err != nil {
			return err
		}
		monthly, err := analytics.MonthlyTotals(rows, nil)
		if err != nil {
			return err
		}
		report = &exporter.Report{
			GeneratedAt:  time.Now().UTC(),
			Filter:       filter,
			Summary:      analytics.Summarize(rows),
			Monthly:      monthly,
			Regions:      analytics.TotalsByRegion(rows),
			Distribution: analytics.ConditionDistribution(rows),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fc, err := s.Forecast(ctx, filter, horizon)
	switch {
	case err == nil:
		report.Forecast = fc.result()
	case isForecastUnavailable(err):
		s.logger.WarnContext(ctx, "report without forecast", slog.String("error", err.Error()))
	default:
		return nil, err
	}
	return report, nil
}

func isForecastUnavailable(err error) bool {
	var fitErr *forecast.ModelFitError
	return errors.As(err, &fitErr) || errors.Is(err, ErrInsufficientData)
}

// ReloadDataset drops the cached dataset and loads it again.
func (s *DashboardService) ReloadDataset(ctx context.Context) (*DatasetInfo, error) {
	s.source.Invalidate()

	var info *DatasetInfo
	err := s.observe(ctx, "reload", func(ctx context.Context) error {
		records, err := s.source.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to reload dataset: %w", err)
		}
		stats := s.source.Stats()
		info = &DatasetInfo{Path: stats.Path, Records: len(records), LoadedAt: stats.LoadedAt}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "dataset reload failed", slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "dataset reloaded",
		slog.String("path", info.Path),
		slog.Int("records", info.Records))
	return info, nil
}

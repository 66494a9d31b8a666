package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/prisnormando/atendimentosapsdf/internal/config"
)

// MeterName is the instrumentation scope for tracers and meters.
const MeterName = "github.com/prisnormando/atendimentosapsdf"

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers. Tracer and Meter are
// always usable; they fall back to the global no-op implementations when the
// matching exporter is disabled.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prometheus.Registry
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// NewOTelConfig maps the telemetry section of the application config.
func NewOTelConfig(cfg config.TelemetryConfig) *OTelConfig {
	return &OTelConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: config.AppVersion,
		Environment:    cfg.Environment,
		TraceExporter:  cfg.TraceExporter,
		MetricExporter: cfg.MetricExporter,
		SampleRatio:    cfg.SampleRatio,
	}
}

// DefaultOTelConfig returns the configuration used when none is supplied.
func DefaultOTelConfig() *OTelConfig {
	return NewOTelConfig(config.Default().Telemetry)
}

// InitializeOTel sets up tracing and metrics according to cfg.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))

	res := createResource(cfg)

	providers := &OTelProviders{
		Tracer: otel.GetTracerProvider().Tracer(MeterName),
		Meter:  noop.NewMeterProvider().Meter(MeterName),
		Logger: logger,
	}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

func createResource(cfg *OTelConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)
}

func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

// initializeMetrics wires the OTel meter provider to a dedicated Prometheus
// registry so repeated initialisation never collides with the default one.
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.Registry = registry
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))
	return nil
}

// DashboardMetrics holds the application-specific instruments.
type DashboardMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Analysis metrics
	AnalysisDuration metric.Float64Histogram

	// Forecast metrics
	ForecastRequests    metric.Int64Counter
	ForecastFallbacks   metric.Int64Counter
	ForecastFitDuration metric.Float64Histogram

	// Output metrics
	ExportsTotal metric.Int64Counter
	ChartRenders metric.Int64Counter

	ErrorsTotal metric.Int64Counter
}

// CreateDashboardMetrics registers every instrument on meter.
func CreateDashboardMetrics(meter metric.Meter) (*DashboardMetrics, error) {
	m := &DashboardMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.AnalysisDuration, err = meter.Float64Histogram(
		"dashboard_analysis_duration_seconds",
		metric.WithDescription("Time spent computing a dashboard view"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.ForecastRequests, err = meter.Int64Counter(
		"forecast_requests_total",
		metric.WithDescription("Forecasts produced, by model and outcome"),
	); err != nil {
		return nil, err
	}
	if m.ForecastFallbacks, err = meter.Int64Counter(
		"forecast_fallbacks_total",
		metric.WithDescription("Forecasts that fell back to the trend-only model"),
	); err != nil {
		return nil, err
	}
	if m.ForecastFitDuration, err = meter.Float64Histogram(
		"forecast_fit_duration_seconds",
		metric.WithDescription("Model fitting duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.ExportsTotal, err = meter.Int64Counter(
		"dashboard_exports_total",
		metric.WithDescription("Exports generated, by format"),
	); err != nil {
		return nil, err
	}
	if m.ChartRenders, err = meter.Int64Counter(
		"dashboard_chart_renders_total",
		metric.WithDescription("Charts rendered, by chart name"),
	); err != nil {
		return nil, err
	}
	if m.ErrorsTotal, err = meter.Int64Counter(
		"dashboard_errors_total",
		metric.WithDescription("Failed dashboard operations, by error code"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewNoopDashboardMetrics returns instruments that record nothing.
func NewNoopDashboardMetrics() *DashboardMetrics {
	m, err := CreateDashboardMetrics(noop.NewMeterProvider().Meter(MeterName))
	if err != nil {
		// The no-op meter never fails.
		panic(err)
	}
	return m
}

// DatasetStats is the snapshot reported by the dataset gauges.
type DatasetStats struct {
	Loaded  bool
	Records int64
	Hits    int64
	Misses  int64
	Loads   int64
	Errors  int64
}

// RegisterDatasetObserver exports the dataset cache state as observable
// instruments read from stats at collection time.
func RegisterDatasetObserver(meter metric.Meter, stats func() DatasetStats) (metric.Registration, error) {
	records, err := meter.Int64ObservableGauge(
		"dataset_records",
		metric.WithDescription("Records in the cached dataset"),
	)
	if err != nil {
		return nil, err
	}
	loaded, err := meter.Int64ObservableGauge(
		"dataset_loaded",
		metric.WithDescription("1 when a dataset snapshot is cached"),
	)
	if err != nil {
		return nil, err
	}
	lookups, err := meter.Int64ObservableCounter(
		"dataset_cache_lookups_total",
		metric.WithDescription("Dataset cache lookups, by result"),
	)
	if err != nil {
		return nil, err
	}
	loads, err := meter.Int64ObservableCounter(
		"dataset_loads_total",
		metric.WithDescription("Dataset reads from disk, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	hit := metric.WithAttributes(attribute.String("result", "hit"))
	miss := metric.WithAttributes(attribute.String("result", "miss"))
	ok := metric.WithAttributes(attribute.String("outcome", "success"))
	failed := metric.WithAttributes(attribute.String("outcome", "error"))

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(records, s.Records)
		var l int64
		if s.Loaded {
			l = 1
		}
		o.ObserveInt64(loaded, l)
		o.ObserveInt64(lookups, s.Hits, hit)
		o.ObserveInt64(lookups, s.Misses, miss)
		o.ObserveInt64(loads, s.Loads-s.Errors, ok)
		o.ObserveInt64(loads, s.Errors, failed)
		return nil
	}, records, loaded, lookups, loads)
}

// RecordAnalysis records how long a dashboard view took to compute.
func RecordAnalysis(ctx context.Context, m *DashboardMetrics, analysis string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.AnalysisDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("analysis", analysis),
		attribute.String("status", status),
	))
}

// RecordForecast records a finished forecast. An empty fallbackReason means
// the seasonal model was used.
func RecordForecast(ctx context.Context, m *DashboardMetrics, model, outcome, fallbackReason string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	)
	m.ForecastRequests.Add(ctx, 1, attrs)
	m.ForecastFitDuration.Record(ctx, duration.Seconds(), attrs)
	if fallbackReason != "" {
		m.ForecastFallbacks.Add(ctx, 1)
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("forecast.completed", trace.WithAttributes(
			attribute.String("model", model),
			attribute.String("outcome", outcome),
			attribute.Float64("duration_seconds", duration.Seconds()),
		))
	}
}

// RecordExport counts a generated export.
func RecordExport(ctx context.Context, m *DashboardMetrics, format string) {
	if m == nil {
		return
	}
	m.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}

// RecordChartRender counts a rendered chart.
func RecordChartRender(ctx context.Context, m *DashboardMetrics, chart string) {
	if m == nil {
		return
	}
	m.ChartRenders.Add(ctx, 1, metric.WithAttributes(attribute.String("chart", chart)))
}

// RecordFailure counts a failed operation by its error code.
func RecordFailure(ctx context.Context, m *DashboardMetrics, operation, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("code", code),
	))
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("opentelemetry shutdown: %w", err)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts the OTel trace ID from the active span.
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(toAttributes(attributes)...)
}

func toAttributes(attributes map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}

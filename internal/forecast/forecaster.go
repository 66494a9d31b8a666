package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// MinSeasonalPoints is the history length below which forecasts are flagged
// as unreliable: two full seasonal cycles.
const MinSeasonalPoints = 2 * SeasonalPeriod

// ModelFitError is returned when no model in the strategy could be fitted.
type ModelFitError struct {
	Causes map[ModelKind]error
	order  []ModelKind
}

func (e *ModelFitError) Error() string {
	return "model fit failed: " + e.describe()
}

func (e *ModelFitError) describe() string {
	parts := make([]string, 0, len(e.order))
	for _, k := range e.order {
		parts = append(parts, fmt.Sprintf("%s: %v", k, e.Causes[k]))
	}
	return strings.Join(parts, "; ")
}

// Messages returns the cause text keyed by model kind.
func (e *ModelFitError) Messages() map[string]string {
	out := make(map[string]string, len(e.Causes))
	for k, err := range e.Causes {
		out[string(k)] = err.Error()
	}
	return out
}

// Unwrap exposes every cause to errors.Is and errors.As.
func (e *ModelFitError) Unwrap() []error {
	out := make([]error, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, e.Causes[k])
	}
	return out
}

// InsufficientDataWarning is advisory: the forecast is still produced.
type InsufficientDataWarning struct {
	Points   int `json:"points"`
	Required int `json:"required"`
}

func (w *InsufficientDataWarning) Error() string {
	return fmt.Sprintf("insufficient history for a reliable forecast: %d points, %d recommended", w.Points, w.Required)
}

// CheckSufficiency returns a warning when series is shorter than
// MinSeasonalPoints, or nil.
func CheckSufficiency(series domain.MonthlySeries) *InsufficientDataWarning {
	if series.Len() < MinSeasonalPoints {
		return &InsufficientDataWarning{Points: series.Len(), Required: MinSeasonalPoints}
	}
	return nil
}

// Result is a forecast tagged with the model that produced it.
type Result struct {
	Points         domain.ForecastSeries    `json:"points"`
	Model          ModelKind                `json:"model"`
	Params         Params                   `json:"params"`
	FallbackReason string                   `json:"fallback_reason,omitempty"`
	Warning        *InsufficientDataWarning `json:"warning,omitempty"`
}

// Forecaster runs the model strategy.
type Forecaster struct {
	models []Model
	logger *slog.Logger
}

// Option configures a Forecaster.
type Option func(*Forecaster)

// WithLogger sets the logger used for fallback notices.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Forecaster) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithModels replaces the strategy. Models are tried in order.
func WithModels(models ...Model) Option {
	return func(f *Forecaster) {
		f.models = models
	}
}

// WithFitOptions replaces the default strategy with seasonal then trend
// models using opts.
func WithFitOptions(opts FitOptions) Option {
	return func(f *Forecaster) {
		f.models = []Model{NewHoltWinters(opts), NewHolt(opts)}
	}
}

// NewForecaster returns the seasonal-then-trend strategy.
func NewForecaster(opts ...Option) *Forecaster {
	f := &Forecaster{
		models: []Model{NewHoltWinters(DefaultFitOptions()), NewHolt(DefaultFitOptions())},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(slog.String("component", "forecaster"))
	return f
}

// Forecast predicts the horizon months after the last key of series.
func (f *Forecaster) Forecast(ctx context.Context, series domain.MonthlySeries, horizon int) (*Result, error) {
	if series.Len() == 0 {
		return nil, &domain.ValidationError{Field: "series", Message: "series must not be empty"}
	}
	if horizon <= 0 {
		return nil, &domain.ValidationError{Field: "horizon", Message: "horizon must be positive", Value: horizon}
	}
	if len(f.models) == 0 {
		return nil, errors.New("forecaster has no models")
	}

	y := series.Values()
	fitErr := &ModelFitError{Causes: make(map[ModelKind]error, len(f.models))}

	for _, model := range f.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fitted, err := model.Fit(y)
		if err != nil {
			fitErr.Causes[model.Kind()] = err
			fitErr.order = append(fitErr.order, model.Kind())
			f.logger.WarnContext(ctx, "model fit failed",
				slog.String("model", string(model.Kind())),
				slog.Int("points", len(y)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if params := fitted.Params(); !params.Converged {
			f.logger.DebugContext(ctx, "parameter search stopped before convergence",
				slog.String("model", string(model.Kind())),
				slog.String("status", params.Status),
				slog.Float64("sse", params.SSE),
			)
		}

		values := fitted.Predict(horizon)
		if err := checkFinite(values); err != nil {
			fitErr.Causes[model.Kind()] = fmt.Errorf("forecast: %w", err)
			fitErr.order = append(fitErr.order, model.Kind())
			continue
		}

		result := &Result{
			Points:  buildPoints(series.Last().Month, values),
			Model:   model.Kind(),
			Params:  fitted.Params(),
			Warning: CheckSufficiency(series),
		}
		if len(fitErr.order) > 0 {
			result.FallbackReason = fitErr.describe()
		}

		f.logger.DebugContext(ctx, "forecast produced",
			slog.String("model", string(result.Model)),
			slog.Int("points", len(y)),
			slog.Int("horizon", horizon),
			slog.Float64("sse", result.Params.SSE),
		)
		return result, nil
	}

	return nil, fitErr
}

func buildPoints(last domain.MonthKey, values []float64) domain.ForecastSeries {
	out := make(domain.ForecastSeries, len(values))
	key := last
	for i, v := range values {
		key = key.Next()
		out[i] = domain.ForecastPoint{Month: key, Value: v}
	}
	return out
}

var defaultForecaster = NewForecaster()

// Forecast runs the default strategy without cancellation.
func Forecast(series domain.MonthlySeries, horizon int) (*Result, error) {
	return defaultForecaster.Forecast(context.Background(), series, horizon)
}

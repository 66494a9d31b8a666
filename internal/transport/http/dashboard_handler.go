package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/prisnormando/atendimentosapsdf/internal/charts"
	"github.com/prisnormando/atendimentosapsdf/internal/config"
	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	apierrors "github.com/prisnormando/atendimentosapsdf/internal/errors"
	"github.com/prisnormando/atendimentosapsdf/internal/middleware"
	"github.com/prisnormando/atendimentosapsdf/internal/services"
)

// Accepted range for the year filter.
const (
	minYear = 1900
	maxYear = 2100
)

// ForecastLimits bound the horizon query parameter.
type ForecastLimits struct {
	DefaultHorizon int
	MaxHorizon     int
}

// ForecastLimitsFromConfig reads the limits from the application config.
func ForecastLimitsFromConfig(cfg config.ForecastConfig) ForecastLimits {
	return ForecastLimits{DefaultHorizon: cfg.DefaultHorizon, MaxHorizon: cfg.MaxHorizon}
}

// dashboardQuery is the filter shared by the dashboard endpoints.
type dashboardQuery struct {
	Years      []int    `json:"year"`
	Regions    []string `json:"region" validate:"dive,region"`
	Categories []string `json:"category" validate:"dive,category"`
	Horizon    int      `json:"horizon"`
}

func (q *dashboardQuery) filter() dataset.Filter {
	return dataset.Filter{Years: q.Years, Regions: q.Regions}
}

// DashboardHandler handles dashboard HTTP requests with RFC 7807 compliance
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	limits       ForecastLimits
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, limits ForecastLimits, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	if limits.MaxHorizon <= 0 {
		limits.MaxHorizon = config.MaxForecastHorizon
	}
	if limits.DefaultHorizon <= 0 || limits.DefaultHorizon > limits.MaxHorizon {
		limits.DefaultHorizon = min(config.DefaultForecastHorizon, limits.MaxHorizon)
	}

	return &DashboardHandler{
		service:      service,
		validator:    middleware.NewValidationMiddleware(logger),
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		limits:       limits,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes, mounted under /api/dashboard.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/filters", h.GetFilters)
	r.Get("/overview", h.GetOverview)

	r.Route("/temporal", func(r chi.Router) {
		r.Get("/total", h.GetMonthlyTotals)
		r.Get("/conditions", h.GetConditionTrends)
	})

	r.Get("/regions", h.GetRegionTotals)
	r.Get("/establishments", h.GetEstablishmentTotals)

	r.Route("/conditions", func(r chi.Router) {
		r.Get("/distribution", h.GetConditionDistribution)
		r.Get("/correlation", h.GetConditionCorrelation)
	})

	r.Get("/forecast", h.GetForecast)
	r.Get("/charts/{chart}.png", h.GetChart)
	r.Get("/export/{format}", h.GetExport)

	return r
}

// parseQuery reads and validates the filter. On failure the error response
// has been written and ok is false.
func (h *DashboardHandler) parseQuery(w http.ResponseWriter, r *http.Request) (*dashboardQuery, bool) {
	years, ok := h.query.ValidateIntList(w, r, "year", minYear, maxYear)
	if !ok {
		return nil, false
	}
	horizon, ok := h.query.ValidateInt(w, r, "horizon", config.MinForecastHorizon, h.limits.MaxHorizon, h.limits.DefaultHorizon)
	if !ok {
		return nil, false
	}

	q := &dashboardQuery{
		Years:      years,
		Regions:    middleware.SplitList(r.URL.Query()["region"]),
		Categories: middleware.SplitList(r.URL.Query()["category"]),
		Horizon:    horizon,
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return q, true
}

// handleServiceError maps service sentinels to API errors; everything else
// goes to the central error handler.
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, filter dataset.Filter) {
	reqID := chimiddleware.GetReqID(r.Context())
	h.logger.DebugContext(r.Context(), "dashboard request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
	)

	var histErr *services.InsufficientHistoryError
	switch {
	case errors.Is(err, services.ErrNoData), errors.Is(err, charts.ErrEmptyData):
		h.errorHandler.HandleError(w, r, apierrors.NoDataError(filter))
	case errors.As(err, &histErr):
		h.errorHandler.HandleError(w, r, apierrors.InsufficientDataError(histErr.Points, histErr.Required))
	case errors.Is(err, services.ErrUnsupportedFormat):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", "format must be one of: xlsx, csv"))
	case errors.Is(err, charts.ErrUnknownChart):
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("chart"))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

func respond(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

func respondList(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
		"count":  count,
	})
}

// GetFilters handles GET /api/dashboard/filters
func (h *DashboardHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := h.service.Filters(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, dataset.Filter{})
		return
	}
	respond(w, r, filters)
}

// GetOverview handles GET /api/dashboard/overview
func (h *DashboardHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	overview, err := h.service.Overview(r.Context(), q.filter())
	if err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}
	respond(w, r, overview)
}

// GetMonthlyTotals handles GET /api/dashboard/temporal/total
func (h *DashboardHandler) GetMonthlyTotals(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	series, err := h.service.MonthlyTotals(r.Context(), q.filter(), q.Categories)
	if err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}
	respondList(w, r, series, series.Len())
}

// GetConditionTrends handles GET /api/dashboard/temporal/conditions
func (h *DashboardHandler) GetConditionTrends(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	trends, err := h.service.ConditionTrends(r.Context(), q.filter(), q.Categories)
	if err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}
	respondList(w, r, trends, len(trends))
}

// GetRegionTotals handles GET /api/dashboard/regions
func (h *DashboardHandler) GetRegionTotals(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	totals, err := h.service.RegionTotals(r.Context(), q.filter())
	if err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}
	respondList(w, r, totals, len(totals))
}

// GetEstablishmentTotals handles GET /api/dashboard/establishments
func (h *DashboardHandler) GetEstablishmentTotals(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	totals, err := h.service.EstablishmentTotals(r.Context(), q.filter())
	if err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}
	respondList(w, r, totals, len(totals))
}

// GetConditionDistribution handles GET /api/dashboard/conditions/distribution
func (h *DashboardHandler) GetConditionDistribution(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	shares, err := h.service.ConditionDistribution(r.Context(), q.filter())
	if err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}
	respondList(w, r, shares, len(shares))
}

// GetConditionCorrelation handles GET /api/dashboard/conditions/correlation
func (h *DashboardHandler) GetConditionCorrelation(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	matrix, err := h.service.ConditionCorrelation(r.Context(), q.filter())
	if err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}
	respond(w, r, matrix)
}

// GetForecast handles GET /api/dashboard/forecast
func (h *DashboardHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	report, err := h.service.Forecast(r.Context(), q.filter(), q.Horizon)
	if err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}

	h.logger.InfoContext(r.Context(), "forecast served",
		slog.String("model", string(report.Model)),
		slog.Int("horizon", report.Horizon),
		slog.Int("history", report.History.Len()),
		slog.Bool("fallback", report.FallbackReason != ""),
		slog.String("request_id", chimiddleware.GetReqID(r.Context())),
	)
	respond(w, r, report)
}

// GetChart handles GET /api/dashboard/charts/{chart}.png
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	kind, err := charts.ParseKind(chi.URLParam(r, "chart"))
	if err != nil {
		h.handleServiceError(w, r, err, dataset.Filter{})
		return
	}
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	// Rendered into memory so a failure can still produce a problem response.
	var buf bytes.Buffer
	req := services.ChartRequest{Kind: kind, Filter: q.filter(), Categories: q.Categories, Horizon: q.Horizon}
	if err := h.service.RenderChart(r.Context(), req, &buf); err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GetExport handles GET /api/dashboard/export/{format}
func (h *DashboardHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	format, err := services.ParseExportFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.handleServiceError(w, r, err, dataset.Filter{})
		return
	}
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), format, q.filter(), q.Horizon, &buf); err != nil {
		h.handleServiceError(w, r, err, q.filter())
		return
	}

	filename := fmt.Sprintf("atendimentos_aps_%s.%s", time.Now().Format("20060102"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	h.logger.InfoContext(r.Context(), "export downloaded",
		slog.String("format", string(format)),
		slog.Int("bytes", buf.Len()),
		slog.String("request_id", chimiddleware.GetReqID(r.Context())),
	)
}

// ReloadDataset handles POST /api/dataset/reload
func (h *DashboardHandler) ReloadDataset(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.ReloadDataset(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, dataset.Filter{})
		return
	}
	respond(w, r, info)
}

package http

import (
	"context"
	"io"

	"github.com/prisnormando/atendimentosapsdf/internal/analytics"
	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	"github.com/prisnormando/atendimentosapsdf/internal/services"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dashboard operations used by the handlers
type DashboardServiceInterface interface {
	Filters(ctx context.Context) (*services.FilterOptions, error)
	Overview(ctx context.Context, filter dataset.Filter) (*services.Overview, error)
	MonthlyTotals(ctx context.Context, filter dataset.Filter, categories []string) (domain.MonthlySeries, error)
	ConditionTrends(ctx context.Context, filter dataset.Filter, categories []string) ([]analytics.ConditionSeries, error)
	RegionTotals(ctx context.Context, filter dataset.Filter) ([]analytics.GroupTotal, error)
	EstablishmentTotals(ctx context.Context, filter dataset.Filter) ([]analytics.GroupTotal, error)
	ConditionDistribution(ctx context.Context, filter dataset.Filter) ([]analytics.CategoryShare, error)
	ConditionCorrelation(ctx context.Context, filter dataset.Filter) (*analytics.CorrelationMatrix, error)
	Forecast(ctx context.Context, filter dataset.Filter, horizon int) (*services.ForecastReport, error)
	RenderChart(ctx context.Context, req services.ChartRequest, w io.Writer) error
	Export(ctx context.Context, format services.ExportFormat, filter dataset.Filter, horizon int, w io.Writer) error
	ReloadDataset(ctx context.Context) (*services.DatasetInfo, error)
}

var _ DashboardServiceInterface = (*services.DashboardService)(nil)

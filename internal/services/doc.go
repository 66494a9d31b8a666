// Package services implements the business logic between the HTTP handlers
// and the dataset, analytics and forecast packages.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Dependencies are injected through constructors
//	2. Every blocking method takes a context.Context for cancellation and tracing
//	3. Failures are returned as sentinel or typed errors; HTTP mapping
//	   happens in the transport layer
//	4. Business metrics and span events are recorded here, not in handlers
//
// # Services
//
// DashboardService loads the cached dataset, applies the year and region
// filter and produces the dashboard views, forecasts, charts and exports.
//
// HealthService reports liveness, readiness (the dataset can be loaded) and
// version information.
//
// # Usage
//
//	cache := dataset.NewCache(paths.DatasetFile, nil, logger)
//	svc := services.NewDashboardService(cache, forecast.NewForecaster(), opts, metrics, logger)
//	series, err := svc.MonthlyTotals(ctx, dataset.Filter{Years: []int{2023}}, nil)
//	if errors.Is(err, services.ErrNoData) {
//		// nothing matched the filter
//	}
package services

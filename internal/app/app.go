package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/metric"

	"github.com/prisnormando/atendimentosapsdf/internal/config"
	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	apierrors "github.com/prisnormando/atendimentosapsdf/internal/errors"
	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/internal/infrastructure"
	customMiddleware "github.com/prisnormando/atendimentosapsdf/internal/middleware"
	"github.com/prisnormando/atendimentosapsdf/internal/services"
	handlers "github.com/prisnormando/atendimentosapsdf/internal/transport/http"
)

// BuildTime is set at link time with -ldflags "-X .../internal/app.BuildTime=...".
var BuildTime = ""

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Dataset       *dataset.Cache
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.DashboardMetrics
	ErrorHandler  *apierrors.ErrorHandler

	datasetObserver metric.Registration
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Dashboard *services.DashboardService
	Health    *services.HealthService
}

// NewApplication loads the configuration, prepares the directories and the
// global logger, then builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logCfg := cfg.Logging
	logCfg.FilePath = paths.LogFile
	logger, err := infrastructure.InitializeLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, paths, logger)
}

// New wires the application from an already loaded configuration.
func New(cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("dataset", paths.DatasetFile))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateDashboardMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	cache := dataset.NewCache(a.Paths.DatasetFile, dataset.Load, a.Logger)
	a.Dataset = cache

	reg, err := infrastructure.RegisterDatasetObserver(a.OTelProviders.Meter, func() infrastructure.DatasetStats {
		s := cache.Stats()
		return infrastructure.DatasetStats{
			Loaded:  s.Loaded,
			Records: int64(s.Records),
			Hits:    s.Hits,
			Misses:  s.Misses,
			Loads:   s.Loads,
			Errors:  s.Errors,
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register dataset observer: %w", err)
	}
	a.datasetObserver = reg

	forecaster := forecast.NewForecaster(
		forecast.WithLogger(a.Logger),
		forecast.WithFitOptions(forecast.FitOptions{
			MaxIterations: a.Config.Forecast.MaxIterations,
			Tolerance:     a.Config.Forecast.Tolerance,
		}),
	)

	a.Services = &ServiceContainer{
		Dashboard: services.NewDashboardService(cache, forecaster, services.DashboardOptionsFromConfig(a.Config), a.Metrics, a.Logger),
		Health:    services.NewHealthService(config.AppVersion, BuildTime, cache, a.Logger),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer → headers/CORS/limits → Timeout
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Outside the middleware group so scrapes are not traced or rate limited.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.NotFound(a.ErrorHandler.NotFound)
		r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(customMiddleware.Compress(5))

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		dashboardHandler := handlers.NewDashboardHandler(
			a.Services.Dashboard,
			handlers.ForecastLimitsFromConfig(a.Config.Forecast),
			a.Logger,
			a.ErrorHandler,
		)
		r.Mount("/dashboard", dashboardHandler.Routes())

		r.With(customMiddleware.AuditLog(a.Logger)).Post("/dataset/reload", dashboardHandler.ReloadDataset)
	})
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts serving in the background. A listener failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("base_dir", a.Paths.BaseDir),
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("dataset_file", a.Paths.DatasetFile),
		slog.String("export_dir", a.Paths.ExportDir),
		slog.String("logs_dir", a.Paths.LogsDir))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.datasetObserver != nil {
		if err := a.datasetObserver.Unregister(); err != nil {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Error unregistering dataset observer")
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Error shutting down OpenTelemetry")
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(sigCtx, cancel); err != nil {
		return err
	}

	<-sigCtx.Done()
	a.Logger.InfoContext(context.Background(), "Received shutdown signal")

	return a.Stop(context.Background())
}

// performStartupHealthCheck warms the dataset cache and checks that the
// export directory is writable. Problems are reported, not fatal: the
// readiness probe keeps failing until the dataset appears.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []error

	start := time.Now()
	records, err := a.Dataset.Get(ctx)
	if err != nil {
		warnings = append(warnings, fmt.Errorf("dataset not loaded: %w", err))
	} else {
		a.Logger.InfoContext(ctx, "Dataset loaded",
			slog.String("path", a.Paths.DatasetFile),
			slog.Int("records", len(records)),
			slog.Duration("duration", time.Since(start)))
	}

	testFile := filepath.Join(a.Paths.ExportDir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		warnings = append(warnings, fmt.Errorf("export directory not writable: %s", a.Paths.ExportDir))
	} else {
		os.Remove(testFile)
	}

	if len(warnings) > 0 {
		return errors.Join(warnings...)
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}

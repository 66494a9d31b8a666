// Command aps-report prints the monthly attendance totals and their forecast
// for a slice of the dataset, and writes an XLSX workbook plus PNG charts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prisnormando/atendimentosapsdf/internal/charts"
	"github.com/prisnormando/atendimentosapsdf/internal/config"
	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	"github.com/prisnormando/atendimentosapsdf/internal/exporter"
	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/internal/infrastructure"
	"github.com/prisnormando/atendimentosapsdf/internal/services"
)

type options struct {
	dataPath string
	horizon  int
	filter   dataset.Filter
	outDir   string
	logLevel string
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "aps-report: %v\n", err)
		}
		os.Exit(1)
	}
}

// parseFlags reads the command line on top of the configured defaults.
func parseFlags(args []string, cfg *config.Config, paths *config.Paths, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("aps-report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	var years, regions string
	fs.StringVar(&opts.dataPath, "data", paths.DatasetFile, "attendance CSV file")
	fs.IntVar(&opts.horizon, "horizon", cfg.Forecast.DefaultHorizon, "months to forecast (1-24)")
	fs.StringVar(&years, "year", "", "comma separated years to keep (default all)")
	fs.StringVar(&regions, "region", "", "comma separated regions to keep (default all)")
	fs.StringVar(&opts.outDir, "out", paths.ExportDir, "output directory for the workbook and charts")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.horizon < config.MinForecastHorizon || opts.horizon > config.MaxForecastHorizon {
		return nil, fmt.Errorf("-horizon must be between %d and %d, got %d",
			config.MinForecastHorizon, config.MaxForecastHorizon, opts.horizon)
	}

	for _, y := range splitCSV(years) {
		n, err := strconv.Atoi(y)
		if err != nil {
			return nil, fmt.Errorf("-year: invalid year %q", y)
		}
		opts.filter.Years = append(opts.filter.Years, n)
	}
	opts.filter.Regions = splitCSV(regions)

	return opts, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	paths, err := cfg.ResolvePaths()
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}

	opts, err := parseFlags(args, cfg, paths, stderr)
	if err != nil {
		return err
	}

	logger := infrastructure.WithComponent(slog.New(infrastructure.NewHandlerForWriter(stderr, opts.logLevel)), "aps_report")
	ctx = infrastructure.EnsureTraceID(ctx)

	cache := dataset.NewCache(opts.dataPath, dataset.Load, logger)
	forecaster := forecast.NewForecaster(
		forecast.WithLogger(logger),
		forecast.WithFitOptions(forecast.FitOptions{
			MaxIterations: cfg.Forecast.MaxIterations,
			Tolerance:     cfg.Forecast.Tolerance,
		}),
	)
	svc := services.NewDashboardService(cache, forecaster, services.DashboardOptionsFromConfig(cfg), nil, logger)

	report, err := svc.BuildReport(ctx, opts.filter, opts.horizon)
	if err != nil {
		return err
	}

	if err := printReport(stdout, report); err != nil {
		return err
	}

	files, err := writeOutputs(ctx, svc, opts, report)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(stdout, "wrote %s\n", f)
	}
	return nil
}

// writeOutputs writes the workbook and charts concurrently and returns the
// paths written.
func writeOutputs(ctx context.Context, svc *services.DashboardService, opts *options, report *exporter.Report) ([]string, error) {
	stamp := report.GeneratedAt.Format("20060102")
	if report.GeneratedAt.IsZero() {
		stamp = time.Now().Format("20060102")
	}

	workbookPath := filepath.Join(opts.outDir, fmt.Sprintf("atendimentos_aps_%s.xlsx", stamp))
	files := []string{workbookPath}
	chartKinds := []charts.Kind{charts.KindMonthly}
	if report.Forecast != nil {
		chartKinds = append(chartKinds, charts.KindForecast)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exporter.WriteFile(workbookPath, func(w io.Writer) error {
			return exporter.NewWorkbookWriter().Write(w, *report)
		})
	})
	for _, kind := range chartKinds {
		path := filepath.Join(opts.outDir, fmt.Sprintf("atendimentos_aps_%s_%s.png", kind, stamp))
		files = append(files, path)
		g.Go(func() error {
			return exporter.WriteFile(path, func(w io.Writer) error {
				req := services.ChartRequest{Kind: kind, Filter: opts.filter, Horizon: opts.horizon}
				return svc.RenderChart(gctx, req, w)
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func printReport(w io.Writer, report *exporter.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "Total de atendimentos:\t%d\t\n", report.Summary.TotalAttendances)
	fmt.Fprintf(tw, "Estabelecimentos:\t%d\t\n", report.Summary.Establishments)
	fmt.Fprintf(tw, "Meses:\t%d\t\n", report.Summary.Months)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Mês\tTotal\t")
	for _, p := range report.Monthly {
		fmt.Fprintf(tw, "%s\t%d\t\n", p.Month, p.Total)
	}

	if fc := report.Forecast; fc != nil {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "Previsão (%s)\t\t\n", fc.Model)
		for _, p := range fc.Points {
			fmt.Fprintf(tw, "%s\t%.2f\t\n", p.Month, p.Value)
		}
		if fc.FallbackReason != "" {
			fmt.Fprintf(tw, "Modelo sazonal descartado:\t%s\t\n", fc.FallbackReason)
		}
		if fc.Warning != nil {
			fmt.Fprintf(tw, "Aviso:\t%s\t\n", fc.Warning.Error())
		}
	} else {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Previsão indisponível para esta seleção\t\t")
	}

	return tw.Flush()
}

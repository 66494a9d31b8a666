package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// utf8BOM lets spreadsheet applications detect UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV column headers.
var (
	monthlyHeaders  = []string{"month", "total"}
	forecastHeaders = []string{"month", "observed", "forecast", "model"}
)

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool
}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	bom bool
}

// NewCSVWriter creates a CSV writer. bom controls the UTF-8 byte order mark
// written before the header row.
func NewCSVWriter(bom bool) *CSVWriter {
	return &CSVWriter{bom: bom}
}

// WriteCSV writes headers and records to w.
func WriteCSV(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteMonthlySeries writes one row per month.
func (c *CSVWriter) WriteMonthlySeries(w io.Writer, series domain.MonthlySeries) error {
	records := make([][]string, len(series))
	for i, p := range series {
		records[i] = []string{p.Month.String(), formatInt(p.Total)}
	}
	return WriteCSV(w, WriteOptions{Headers: monthlyHeaders, Records: records, BOMPrefix: c.bom})
}

// WriteForecast writes the observed history followed by the forecast months.
// Observed rows leave the forecast column empty and vice versa.
func (c *CSVWriter) WriteForecast(w io.Writer, history domain.MonthlySeries, result *forecast.Result) error {
	records := make([][]string, 0, len(history)+forecastLen(result))
	for _, p := range history {
		records = append(records, []string{p.Month.String(), formatInt(p.Total), "", ""})
	}
	if result != nil {
		for _, p := range result.Points {
			records = append(records, []string{p.Month.String(), "", formatFloat(p.Value), string(result.Model)})
		}
	}
	return WriteCSV(w, WriteOptions{Headers: forecastHeaders, Records: records, BOMPrefix: c.bom})
}

// Write writes the report as the forecast table when a forecast is present,
// otherwise as the monthly series.
func (c *CSVWriter) Write(w io.Writer, report Report) error {
	if report.Forecast != nil {
		return c.WriteForecast(w, report.Monthly, report.Forecast)
	}
	return c.WriteMonthlySeries(w, report.Monthly)
}

func forecastLen(result *forecast.Result) int {
	if result == nil {
		return 0
	}
	return len(result.Points)
}

// WriteFile creates path, including missing parent directories, and fills
// it with write.
func WriteFile(path string, write func(io.Writer) error) error {
	slog.Info("Writing export file", slog.String("file_path", path))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

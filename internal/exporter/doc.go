// Package exporter writes dashboard results as downloadable files.
//
// CSVWriter produces UTF-8 CSV with an optional byte order mark so that
// spreadsheet applications detect the encoding of accented region and
// category names. WorkbookWriter produces an XLSX workbook with one sheet per
// analysis.
//
// Both writers take an io.Writer, so the same code serves HTTP downloads and
// the report command:
//
//	report := exporter.Report{Monthly: series, Forecast: result}
//	err := exporter.NewWorkbookWriter().Write(w, report)
package exporter

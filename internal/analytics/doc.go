// Package analytics aggregates attendance records into the views the dashboard
// plots: monthly totals, per-condition trends, regional and establishment
// rankings, the condition distribution and the condition correlation matrix.
//
// # Monthly totals
//
// MonthlyTotals is the entry point of the forecasting pipeline:
//
//	records → MonthlyTotals → domain.MonthlySeries → forecast.Forecaster
//
// Each record contributes the sum of the selected category counters to its
// competence month. Months are emitted in ascending calendar order, each at
// most once, and months without records are omitted rather than zero-filled.
//
// # Purity
//
// Every function in this package is pure: inputs are never mutated and equal
// inputs produce equal outputs. A record with a month outside 1-12 or a
// request naming an unknown category rejects the whole call with a
// *domain.ValidationError; no partial aggregate is returned.
package analytics

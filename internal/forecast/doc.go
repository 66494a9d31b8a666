// Package forecast projects a monthly attendance series forward with
// exponential smoothing.
//
// # Strategy
//
// A Forecaster holds an ordered list of models and uses the first one that
// fits the history:
//
//  1. Seasonal: additive level, additive trend and additive seasonality with a
//     12-month period (Holt-Winters). Needs at least two full cycles.
//  2. Trend: additive level and trend only (Holt). Needs two observations.
//
// The Result is tagged with the model that produced it. When the seasonal
// model is discarded its error is kept in Result.FallbackReason and logged at
// WARN. If every model fails, Forecast returns a *ModelFitError carrying each
// cause; it never returns an empty or zero forecast in place of an error.
//
// # Fitting
//
// Smoothing parameters are chosen by minimising the in-sample one-step-ahead
// squared error with Nelder-Mead. Parameters are optimised on the logit scale
// so every candidate stays inside (0, 1). Initial states come from the classic
// heuristic: first-cycle mean for the level, mean cycle-over-cycle change for
// the trend and first-cycle deviations for the seasonal indices.
//
// The series is indexed by position. Missing calendar months are not
// interpolated; forecast keys continue one calendar month at a time from the
// last observed key.
package forecast

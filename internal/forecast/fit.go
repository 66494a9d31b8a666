package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// FitOptions bound the parameter search.
type FitOptions struct {
	MaxIterations int
	Tolerance     float64
}

// DefaultFitOptions returns the settings used by NewForecaster.
func DefaultFitOptions() FitOptions {
	return FitOptions{MaxIterations: 1000, Tolerance: 1e-10}
}

// searchResult is the outcome of a parameter search. status names the
// optimizer's termination reason; converged is false when it stopped on a
// limit or reported an error alongside a usable point.
type searchResult struct {
	x         []float64
	f         float64
	status    string
	converged bool
}

// minimize searches the unit hypercube for the parameters minimising
// objective, starting from start.
func minimize(objective func(p []float64) float64, start []float64, opts FitOptions) (searchResult, error) {
	if opts.MaxIterations <= 0 {
		opts = DefaultFitOptions()
	}

	toUnit := func(x []float64) []float64 {
		p := make([]float64, len(x))
		for i, v := range x {
			p[i] = sigmoid(v)
		}
		return p
	}

	initX := make([]float64, len(start))
	for i, v := range start {
		initX[i] = logit(v)
	}
	initF := objective(toUnit(initX))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			f := objective(toUnit(x))
			if !isFinite(f) {
				return math.MaxFloat64
			}
			return f
		},
	}
	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		FuncEvaluations: 10 * opts.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Relative:   opts.Tolerance,
			Iterations: 50,
		},
	}

	res, err := optimize.Minimize(problem, initX, settings, &optimize.NelderMead{})
	if res == nil {
		return searchResult{}, fmt.Errorf("parameter search failed: %w", err)
	}
	if !isFinite(res.F) || res.F == math.MaxFloat64 {
		if err != nil {
			return searchResult{}, fmt.Errorf("parameter search failed: %w", err)
		}
		return searchResult{}, fmt.Errorf("%w objective after parameter search", ErrNonFinite)
	}

	out := searchResult{
		x:         toUnit(res.X),
		f:         res.F,
		status:    res.Status.String(),
		converged: err == nil && res.Status != optimize.IterationLimit && res.Status != optimize.FunctionEvaluationLimit,
	}
	if err != nil {
		out.status = fmt.Sprintf("%s: %v", out.status, err)
	}
	if isFinite(initF) && initF <= res.F {
		out.x, out.f = toUnit(initX), initF
	}
	return out, nil
}

// sigmoid maps the real line onto (0, 1), kept away from the endpoints so
// smoothing never degenerates to a constant or a pure echo.
func sigmoid(x float64) float64 {
	const eps = 1e-6
	v := 1 / (1 + math.Exp(-x))
	return eps + (1-2*eps)*v
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

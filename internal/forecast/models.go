package forecast

import (
	"errors"
	"fmt"
	"math"
)

// SeasonalPeriod is the cycle length of the seasonal model, in months.
const SeasonalPeriod = 12

var (
	// ErrInsufficientCycles is returned when the seasonal model sees fewer
	// than two full cycles.
	ErrInsufficientCycles = errors.New("fewer than two full seasonal cycles")

	// ErrTooFewPoints is returned when the trend model sees fewer than two
	// observations.
	ErrTooFewPoints = errors.New("at least two observations are required")

	// ErrNonFinite is returned when the history or the fitted model contains
	// NaN or infinite values.
	ErrNonFinite = errors.New("non-finite value")
)

// ModelKind tags which model produced a forecast.
type ModelKind string

const (
	ModelSeasonal ModelKind = "seasonal"
	ModelTrend    ModelKind = "trend"
)

// Params are the fitted smoothing parameters. Gamma is zero for the trend model.
type Params struct {
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Gamma  float64 `json:"gamma,omitempty"`
	Period int     `json:"period,omitempty"`
	SSE    float64 `json:"sse"`

	// Status is the optimizer's termination reason; Converged is false when
	// the search stopped on a limit.
	Status    string `json:"status,omitempty"`
	Converged bool   `json:"converged"`
}

// Model fits a smoothing model to a history.
type Model interface {
	Kind() ModelKind
	Fit(y []float64) (Fitted, error)
}

// Fitted is a model whose parameters have been estimated.
type Fitted interface {
	Predict(horizon int) []float64
	Params() Params
}

// HoltWinters is the additive trend, additive seasonal model.
type HoltWinters struct {
	Period  int
	Options FitOptions
}

// NewHoltWinters returns the seasonal model with the monthly period.
func NewHoltWinters(opts FitOptions) *HoltWinters {
	return &HoltWinters{Period: SeasonalPeriod, Options: opts}
}

// Kind implements Model.
func (hw *HoltWinters) Kind() ModelKind { return ModelSeasonal }

// Fit implements Model.
func (hw *HoltWinters) Fit(y []float64) (Fitted, error) {
	m := hw.Period
	if m <= 1 {
		return nil, fmt.Errorf("invalid seasonal period %d", m)
	}
	if len(y) < 2*m {
		return nil, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientCycles, len(y), 2*m)
	}
	if err := checkFinite(y); err != nil {
		return nil, err
	}

	init := seasonalInit(y, m)
	objective := func(p []float64) float64 {
		st := init.clone()
		return st.run(y, p[0], p[1], p[2])
	}

	search, err := minimize(objective, []float64{0.3, 0.1, 0.1}, hw.Options)
	if err != nil {
		return nil, err
	}
	best := search.x

	st := init.clone()
	st.run(y, best[0], best[1], best[2])
	if !st.finite() {
		return nil, fmt.Errorf("%w in fitted seasonal state", ErrNonFinite)
	}

	return &fittedModel{
		state: st,
		params: Params{
			Alpha:     best[0],
			Beta:      best[1],
			Gamma:     best[2],
			Period:    m,
			SSE:       search.f,
			Status:    search.status,
			Converged: search.converged,
		},
	}, nil
}

// Holt is the additive trend model without seasonality.
type Holt struct {
	Options FitOptions
}

// NewHolt returns the trend-only model.
func NewHolt(opts FitOptions) *Holt {
	return &Holt{Options: opts}
}

// Kind implements Model.
func (h *Holt) Kind() ModelKind { return ModelTrend }

// Fit implements Model.
func (h *Holt) Fit(y []float64) (Fitted, error) {
	if len(y) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrTooFewPoints, len(y))
	}
	if err := checkFinite(y); err != nil {
		return nil, err
	}

	init := state{level: y[0], trend: y[1] - y[0]}
	objective := func(p []float64) float64 {
		st := init.clone()
		return st.runFrom(y, 1, p[0], p[1], 0)
	}

	search, err := minimize(objective, []float64{0.3, 0.1}, h.Options)
	if err != nil {
		return nil, err
	}
	best := search.x

	st := init.clone()
	st.runFrom(y, 1, best[0], best[1], 0)
	if !st.finite() {
		return nil, fmt.Errorf("%w in fitted trend state", ErrNonFinite)
	}

	return &fittedModel{
		state:  st,
		params: Params{
			Alpha:     best[0],
			Beta:      best[1],
			SSE:       search.f,
			Status:    search.status,
			Converged: search.converged,
		},
	}, nil
}

// state is the smoothing state after consuming the history. season is nil
// for the trend model; otherwise season[t%period] holds the latest index for
// that phase.
type state struct {
	level  float64
	trend  float64
	season []float64
	t      int
}

func seasonalInit(y []float64, m int) state {
	first := mean(y[:m])
	second := mean(y[m : 2*m])
	season := make([]float64, m)
	for i := 0; i < m; i++ {
		season[i] = y[i] - first
	}
	return state{
		level:  first,
		trend:  (second - first) / float64(m),
		season: season,
	}
}

func (s state) clone() state {
	if s.season != nil {
		season := make([]float64, len(s.season))
		copy(season, s.season)
		s.season = season
	}
	return s
}

// run consumes y from the first observation and returns the one-step SSE.
func (s *state) run(y []float64, alpha, beta, gamma float64) float64 {
	return s.runFrom(y, 0, alpha, beta, gamma)
}

func (s *state) runFrom(y []float64, start int, alpha, beta, gamma float64) float64 {
	var sse float64
	m := len(s.season)
	s.t = start
	for t := start; t < len(y); t++ {
		var seasonal float64
		if m > 0 {
			seasonal = s.season[t%m]
		}
		predicted := s.level + s.trend + seasonal
		e := y[t] - predicted
		sse += e * e

		prevLevel := s.level
		s.level = alpha*(y[t]-seasonal) + (1-alpha)*(prevLevel+s.trend)
		s.trend = beta*(s.level-prevLevel) + (1-beta)*s.trend
		if m > 0 {
			s.season[t%m] = gamma*(y[t]-s.level) + (1-gamma)*seasonal
		}
		s.t = t + 1
	}
	return sse
}

func (s state) finite() bool {
	if !isFinite(s.level) || !isFinite(s.trend) {
		return false
	}
	for _, v := range s.season {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

type fittedModel struct {
	state  state
	params Params
}

func (f *fittedModel) Params() Params { return f.params }

func (f *fittedModel) Predict(horizon int) []float64 {
	out := make([]float64, horizon)
	m := len(f.state.season)
	for h := 1; h <= horizon; h++ {
		v := f.state.level + float64(h)*f.state.trend
		if m > 0 {
			v += f.state.season[(f.state.t+h-1)%m]
		}
		out[h-1] = v
	}
	return out
}

func checkFinite(y []float64) error {
	for i, v := range y {
		if !isFinite(v) {
			return fmt.Errorf("%w at position %d", ErrNonFinite, i)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

package charts

import (
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/prisnormando/atendimentosapsdf/internal/analytics"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

var (
	historyColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	forecastColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	barColor      = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	nanColor      = color.RGBA{R: 220, G: 220, B: 220, A: 255}
)

// Default image size.
const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

// rowHeight is the vertical space given to each bar of a horizontal chart.
const rowHeight = vg.Length(0.28) * vg.Inch

// Renderer draws charts as PNG.
type Renderer struct {
	width  vg.Length
	height vg.Length
	logger *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSize sets the image size.
func WithSize(width, height vg.Length) Option {
	return func(r *Renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRenderer creates a renderer with the default size.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{width: DefaultWidth, height: DefaultHeight, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "chart_renderer"))
	return r
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func monthXYs(series domain.MonthlySeries) plotter.XYs {
	xys := make(plotter.XYs, len(series))
	for i, pt := range series {
		xys[i].X = monthX(pt.Month)
		xys[i].Y = float64(pt.Total)
	}
	return xys
}

func monthX(k domain.MonthKey) float64 {
	return float64(k.Date().Unix())
}

func useMonthAxis(p *plot.Plot) {
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
}

func rotateXLabels(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

// Monthly draws the monthly attendance totals.
func (r *Renderer) Monthly(w io.Writer, series domain.MonthlySeries) error {
	if len(series) == 0 {
		return ErrEmptyData
	}

	p := newPlot("Total de Atendimentos por Mês", "Mês", "Atendimentos")
	useMonthAxis(p)

	xys := monthXYs(series)
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("failed to build line: %w", err)
	}
	line.Color = historyColor
	line.Width = vg.Points(2)

	points, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to build markers: %w", err)
	}
	points.GlyphStyle.Color = historyColor
	points.GlyphStyle.Radius = vg.Points(3)
	points.GlyphStyle.Shape = draw.CircleGlyph{}

	p.Add(line, points)
	return r.save(w, p, KindMonthly, r.width, r.height)
}

// Conditions draws one line per category over a shared month axis.
func (r *Renderer) Conditions(w io.Writer, trends []analytics.ConditionSeries) error {
	if len(trends) == 0 || len(trends[0].Series) == 0 {
		return ErrEmptyData
	}

	p := newPlot("Evolução dos Atendimentos por Condição", "Mês", "Atendimentos")
	useMonthAxis(p)
	p.Legend.Top = true

	for i, trend := range trends {
		line, err := plotter.NewLine(monthXYs(trend.Series))
		if err != nil {
			return fmt.Errorf("failed to build line for %s: %w", trend.Category, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(trend.Category.String(), line)
	}
	return r.save(w, p, KindConditions, r.width, r.height)
}

// Regions draws vertical bars of the totals per health region.
func (r *Renderer) Regions(w io.Writer, totals []analytics.GroupTotal) error {
	if len(totals) == 0 {
		return ErrEmptyData
	}

	p := newPlot("Atendimentos por Região de Saúde", "", "Atendimentos")

	values, names := groupValues(totals)
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("failed to build bars: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)

	p.Add(bars)
	p.NominalX(names...)
	rotateXLabels(p)
	return r.save(w, p, KindRegions, r.width, r.height)
}

// Establishments draws horizontal bars in input order, bottom to top. The
// image grows with the number of establishments.
func (r *Renderer) Establishments(w io.Writer, totals []analytics.GroupTotal) error {
	if len(totals) == 0 {
		return ErrEmptyData
	}

	p := newPlot("Atendimentos por Estabelecimento", "Atendimentos", "")

	values, names := groupValues(totals)
	bars, err := plotter.NewBarChart(values, vg.Points(10))
	if err != nil {
		return fmt.Errorf("failed to build bars: %w", err)
	}
	bars.Horizontal = true
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)

	p.Add(bars)
	p.NominalY(names...)

	height := r.height
	if h := rowHeight * vg.Length(len(totals)); h > height {
		height = h
	}
	return r.save(w, p, KindEstablishments, r.width, height)
}

func groupValues(totals []analytics.GroupTotal) (plotter.Values, []string) {
	values := make(plotter.Values, len(totals))
	names := make([]string, len(totals))
	for i, g := range totals {
		values[i] = float64(g.Total)
		names[i] = g.Name
	}
	return values, names
}

// Distribution draws the total per category with its share as a label.
func (r *Renderer) Distribution(w io.Writer, shares []analytics.CategoryShare) error {
	if len(shares) == 0 {
		return ErrEmptyData
	}

	p := newPlot("Distribuição por Condição", "", "Atendimentos")

	values := make(plotter.Values, len(shares))
	names := make([]string, len(shares))
	labels := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(shares)),
		Labels: make([]string, len(shares)),
	}
	for i, s := range shares {
		values[i] = float64(s.Total)
		names[i] = s.Category.String()
		labels.XYs[i] = plotter.XY{X: float64(i), Y: float64(s.Total)}
		labels.Labels[i] = fmt.Sprintf("%.1f%%", s.Share*100)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("failed to build bars: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = barColor

	shareLabels, err := plotter.NewLabels(labels)
	if err != nil {
		return fmt.Errorf("failed to build labels: %w", err)
	}

	p.Add(bars, shareLabels)
	p.NominalX(names...)
	rotateXLabels(p)
	return r.save(w, p, KindDistribution, r.width, r.height)
}

// correlationGrid adapts a CorrelationMatrix to plotter.GridXYZ. Undefined
// cells are NaN.
type correlationGrid struct {
	m analytics.CorrelationMatrix
}

func (g correlationGrid) Dims() (c, r int) { return len(g.m.Categories), len(g.m.Categories) }
func (g correlationGrid) X(c int) float64  { return float64(c) }
func (g correlationGrid) Y(r int) float64  { return float64(r) }

func (g correlationGrid) Z(c, r int) float64 {
	v, _ := g.m.At(r, c)
	return v
}

// Correlation draws the category correlation heatmap on a blue-red scale
// fixed to [-1, 1]. Undefined cells are grey.
func (r *Renderer) Correlation(w io.Writer, m analytics.CorrelationMatrix) error {
	n := len(m.Categories)
	if n == 0 || len(m.Values) != n {
		return ErrEmptyData
	}

	p := newPlot("Correlação entre Condições", "", "")

	colors := moreland.SmoothBlueRed()
	colors.SetMin(-1)
	colors.SetMax(1)

	heat := plotter.NewHeatMap(correlationGrid{m: m}, colors.Palette(255))
	heat.Min, heat.Max = -1, 1
	heat.NaN = nanColor

	labels := plotter.XYLabels{}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v, ok := m.At(i, j)
			if !ok {
				continue
			}
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(j), Y: float64(i)})
			labels.Labels = append(labels.Labels, fmt.Sprintf("%.2f", v))
		}
	}

	p.Add(heat)
	if len(labels.XYs) > 0 {
		cellLabels, err := plotter.NewLabels(labels)
		if err != nil {
			return fmt.Errorf("failed to build labels: %w", err)
		}
		p.Add(cellLabels)
	}

	names := make([]string, n)
	for i, c := range m.Categories {
		names[i] = c.String()
	}
	p.NominalX(names...)
	p.NominalY(names...)
	rotateXLabels(p)
	p.X.Tick.Label.Font.Size = vg.Points(8)
	p.Y.Tick.Label.Font.Size = vg.Points(8)

	return r.save(w, p, KindCorrelation, r.width, r.width)
}

// Forecast draws the history as a solid line and the forecast as a dashed
// line starting at the last observed month.
func (r *Renderer) Forecast(w io.Writer, history domain.MonthlySeries, forecast domain.ForecastSeries, model string) error {
	if len(history) == 0 || len(forecast) == 0 {
		return ErrEmptyData
	}

	title := "Previsão de Atendimentos"
	if model != "" {
		title = fmt.Sprintf("%s (modelo %s)", title, model)
	}
	p := newPlot(title, "Mês", "Atendimentos")
	useMonthAxis(p)
	p.Legend.Top = true

	past, err := plotter.NewLine(monthXYs(history))
	if err != nil {
		return fmt.Errorf("failed to build history line: %w", err)
	}
	past.Color = historyColor
	past.Width = vg.Points(2)

	last := history.Last()
	xys := make(plotter.XYs, 0, len(forecast)+1)
	xys = append(xys, plotter.XY{X: monthX(last.Month), Y: float64(last.Total)})
	for _, pt := range forecast {
		xys = append(xys, plotter.XY{X: monthX(pt.Month), Y: pt.Value})
	}
	future, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("failed to build forecast line: %w", err)
	}
	future.Color = forecastColor
	future.Width = vg.Points(2)
	future.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}

	p.Add(past, future)
	p.Legend.Add("Histórico", past)
	p.Legend.Add("Previsão", future)
	return r.save(w, p, KindForecast, r.width, r.height)
}

func (r *Renderer) save(w io.Writer, p *plot.Plot, kind Kind, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to render %s chart: %w", kind, err)
	}
	n, err := wt.WriteTo(w)
	if err != nil {
		return fmt.Errorf("failed to write %s chart: %w", kind, err)
	}

	r.logger.Debug("chart rendered",
		slog.String("chart", string(kind)),
		slog.Int64("bytes", n),
	)
	return nil
}

package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// GroupTotal is the attendance total of one region or establishment.
type GroupTotal struct {
	Name  string `json:"name"`
	Total int64  `json:"total"`
}

// TotalsByRegion sums all counters per health region, ordered by region name.
func TotalsByRegion(records []domain.AttendanceRecord) []GroupTotal {
	out := groupTotals(records, func(r domain.AttendanceRecord) string { return r.Region })
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TotalsByEstablishment sums all counters per establishment, ordered by
// ascending total with ties broken by name.
func TotalsByEstablishment(records []domain.AttendanceRecord) []GroupTotal {
	out := groupTotals(records, func(r domain.AttendanceRecord) string { return r.Establishment })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total < out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func groupTotals(records []domain.AttendanceRecord, key func(domain.AttendanceRecord) string) []GroupTotal {
	totals := make(map[string]int64)
	for _, r := range records {
		totals[key(r)] += r.Total(nil)
	}
	out := make([]GroupTotal, 0, len(totals))
	for name, total := range totals {
		out = append(out, GroupTotal{Name: name, Total: total})
	}
	return out
}

// CategoryShare is one slice of the condition distribution.
type CategoryShare struct {
	Category domain.Category `json:"category"`
	Total    int64           `json:"total"`
	Share    float64         `json:"share"`
}

// ConditionDistribution returns the total per category in canonical order and
// its share of the grand total. Shares are zero when nothing was recorded.
func ConditionDistribution(records []domain.AttendanceRecord) []CategoryShare {
	var sums [domain.NumCategories]int64
	var grand int64
	for _, r := range records {
		for i, v := range r.Counts {
			sums[i] += v
			grand += v
		}
	}

	out := make([]CategoryShare, domain.NumCategories)
	for i, v := range sums {
		share := 0.0
		if grand > 0 {
			share = float64(v) / float64(grand)
		}
		out[i] = CategoryShare{Category: domain.Category(i), Total: v, Share: share}
	}
	return out
}

// CorrelationMatrix holds pairwise Pearson coefficients between category
// counters across records. Cells are nil where the coefficient is undefined:
// fewer than two records or a constant counter.
type CorrelationMatrix struct {
	Categories []domain.Category `json:"categories"`
	Values     [][]*float64      `json:"values"`
}

// At returns the coefficient for (i, j) and whether it is defined.
func (m CorrelationMatrix) At(i, j int) (float64, bool) {
	v := m.Values[i][j]
	if v == nil {
		return math.NaN(), false
	}
	return *v, true
}

// ConditionCorrelation computes the Pearson correlation between every pair of
// category counters, treating each record as one observation.
func ConditionCorrelation(records []domain.AttendanceRecord) CorrelationMatrix {
	cols := make([][]float64, domain.NumCategories)
	for c := range cols {
		col := make([]float64, len(records))
		for i, r := range records {
			col[i] = float64(r.Counts[c])
		}
		cols[c] = col
	}

	variable := make([]bool, domain.NumCategories)
	if len(records) >= 2 {
		for c, col := range cols {
			variable[c] = stat.Variance(col, nil) > 0
		}
	}

	values := make([][]*float64, domain.NumCategories)
	for i := range values {
		row := make([]*float64, domain.NumCategories)
		for j := range row {
			if !variable[i] || !variable[j] {
				continue
			}
			var v float64
			if i == j {
				v = 1
			} else {
				v = clamp(stat.Correlation(cols[i], cols[j], nil), -1, 1)
			}
			row[j] = &v
		}
		values[i] = row
	}

	return CorrelationMatrix{Categories: domain.AllCategories(), Values: values}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Summary holds the overview indicators of a record set.
type Summary struct {
	TotalAttendances int64 `json:"total_attendances"`
	Establishments   int   `json:"establishments"`
	Months           int   `json:"months"`
	Regions          int   `json:"regions"`
	Records          int   `json:"records"`
}

// Summarize computes the overview indicators. Months counts distinct
// (year, month) pairs.
func Summarize(records []domain.AttendanceRecord) Summary {
	establishments := make(map[string]struct{})
	regions := make(map[string]struct{})
	months := make(map[domain.MonthKey]struct{})

	var s Summary
	for _, r := range records {
		s.TotalAttendances += r.Total(nil)
		establishments[r.Establishment] = struct{}{}
		regions[r.Region] = struct{}{}
		months[r.MonthKey()] = struct{}{}
	}
	s.Establishments = len(establishments)
	s.Regions = len(regions)
	s.Months = len(months)
	s.Records = len(records)
	return s
}

package dataset

import (
	"sort"
	"strconv"
	"strings"

	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// Filter restricts records by competence year and health region. An empty
// list places no restriction on that field.
type Filter struct {
	Years   []int    `json:"years,omitempty"`
	Regions []string `json:"regions,omitempty"`
}

// IsZero reports whether the filter selects every record.
func (f Filter) IsZero() bool {
	return len(f.Years) == 0 && len(f.Regions) == 0
}

// Key is a stable textual form of the filter, independent of value order.
func (f Filter) Key() string {
	years := append([]int(nil), f.Years...)
	sort.Ints(years)
	regions := append([]string(nil), f.Regions...)
	sort.Strings(regions)

	var b strings.Builder
	b.WriteString("years=")
	for i, y := range years {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(y))
	}
	b.WriteString(";regions=")
	b.WriteString(strings.Join(regions, ","))
	return b.String()
}

// Apply returns the records matching f in their original order. The input
// slice is not modified.
func Apply(records []domain.AttendanceRecord, f Filter) []domain.AttendanceRecord {
	if f.IsZero() {
		return clone(records)
	}

	years := make(map[int]bool, len(f.Years))
	for _, y := range f.Years {
		years[y] = true
	}
	regions := make(map[string]bool, len(f.Regions))
	for _, r := range f.Regions {
		regions[r] = true
	}

	out := make([]domain.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if len(years) > 0 && !years[r.Year] {
			continue
		}
		if len(regions) > 0 && !regions[r.Region] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Years returns the distinct competence years in ascending order.
func Years(records []domain.AttendanceRecord) []int {
	seen := make(map[int]bool)
	out := make([]int, 0)
	for _, r := range records {
		if !seen[r.Year] {
			seen[r.Year] = true
			out = append(out, r.Year)
		}
	}
	sort.Ints(out)
	return out
}

// Regions returns the distinct health regions in ascending order.
func Regions(records []domain.AttendanceRecord) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, r := range records {
		if !seen[r.Region] {
			seen[r.Region] = true
			out = append(out, r.Region)
		}
	}
	sort.Strings(out)
	return out
}

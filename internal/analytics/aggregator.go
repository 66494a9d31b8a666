package analytics

import (
	"sort"

	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// MonthlyTotals sums the selected category counters per competence month.
// A nil or empty categories slice selects all twelve categories.
func MonthlyTotals(records []domain.AttendanceRecord, categories []string) (domain.MonthlySeries, error) {
	cats, err := domain.ParseCategories(categories)
	if err != nil {
		return nil, err
	}
	return monthlyTotals(records, cats)
}

func monthlyTotals(records []domain.AttendanceRecord, cats []domain.Category) (domain.MonthlySeries, error) {
	if err := validateMonths(records); err != nil {
		return nil, err
	}

	totals := make(map[domain.MonthKey]int64)
	for _, r := range records {
		totals[r.MonthKey()] += r.Total(cats)
	}
	return sortedSeries(totals), nil
}

// ConditionSeries is the monthly series of one category.
type ConditionSeries struct {
	Category domain.Category      `json:"category"`
	Series   domain.MonthlySeries `json:"series"`
}

// ConditionTrends builds one monthly series per selected category. All series
// share the same month axis: a month present in the input appears in every
// series, with zero where the category had no attendances.
func ConditionTrends(records []domain.AttendanceRecord, categories []string) ([]ConditionSeries, error) {
	cats, err := domain.ParseCategories(categories)
	if err != nil {
		return nil, err
	}
	if err := validateMonths(records); err != nil {
		return nil, err
	}

	perMonth := make(map[domain.MonthKey]*[domain.NumCategories]int64)
	for _, r := range records {
		acc, ok := perMonth[r.MonthKey()]
		if !ok {
			acc = new([domain.NumCategories]int64)
			perMonth[r.MonthKey()] = acc
		}
		for i, v := range r.Counts {
			acc[i] += v
		}
	}

	keys := make([]domain.MonthKey, 0, len(perMonth))
	for k := range perMonth {
		keys = append(keys, k)
	}
	sortKeys(keys)

	out := make([]ConditionSeries, 0, len(cats))
	for _, c := range cats {
		series := make(domain.MonthlySeries, len(keys))
		for i, k := range keys {
			series[i] = domain.MonthlyPoint{Month: k, Total: perMonth[k][c]}
		}
		out = append(out, ConditionSeries{Category: c, Series: series})
	}
	return out, nil
}

func validateMonths(records []domain.AttendanceRecord) error {
	for _, r := range records {
		if r.Month < 1 || r.Month > 12 {
			return &domain.ValidationError{
				Field:   "month",
				Message: "month must be between 1 and 12",
				Value:   r.Month,
			}
		}
	}
	return nil
}

func sortedSeries(totals map[domain.MonthKey]int64) domain.MonthlySeries {
	keys := make([]domain.MonthKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sortKeys(keys)

	series := make(domain.MonthlySeries, len(keys))
	for i, k := range keys {
		series[i] = domain.MonthlyPoint{Month: k, Total: totals[k]}
	}
	return series
}

func sortKeys(keys []domain.MonthKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
}

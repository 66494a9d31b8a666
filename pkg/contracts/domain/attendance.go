package domain

import "fmt"

// AttendanceRecord is one row of the source dataset: the attendance counters
// of one establishment for one competence month.
type AttendanceRecord struct {
	Establishment string               `json:"establishment"`
	Region        string               `json:"region"`
	Year          int                  `json:"year"`
	Month         int                  `json:"month"`
	Counts        [NumCategories]int64 `json:"-"`
}

// Count returns the counter for c, or zero for an unknown category.
func (r AttendanceRecord) Count(c Category) int64 {
	if !c.Valid() {
		return 0
	}
	return r.Counts[c]
}

// Total sums the counters of the given categories. A nil slice sums all.
func (r AttendanceRecord) Total(categories []Category) int64 {
	if categories == nil {
		var sum int64
		for _, v := range r.Counts {
			sum += v
		}
		return sum
	}
	var sum int64
	for _, c := range categories {
		sum += r.Count(c)
	}
	return sum
}

// MonthKey returns the competence month of the record.
func (r AttendanceRecord) MonthKey() MonthKey {
	return MonthKey{Year: r.Year, Month: r.Month}
}

// Validate checks the record invariants.
func (r AttendanceRecord) Validate() error {
	if r.Month < 1 || r.Month > 12 {
		return &ValidationError{
			Field:   "month",
			Message: fmt.Sprintf("month %d outside 1-12 for %q", r.Month, r.Establishment),
			Value:   r.Month,
		}
	}
	for i, v := range r.Counts {
		if v < 0 {
			return &ValidationError{
				Field:   Category(i).String(),
				Message: fmt.Sprintf("negative counter %d for %q", v, r.Establishment),
				Value:   v,
			}
		}
	}
	return nil
}

// CountsByName exposes the counters keyed by category name, for JSON views.
func (r AttendanceRecord) CountsByName() map[string]int64 {
	out := make(map[string]int64, NumCategories)
	for i, v := range r.Counts {
		out[categoryNames[i]] = v
	}
	return out
}

// RecordView is the JSON projection of an AttendanceRecord.
type RecordView struct {
	Establishment string           `json:"establishment"`
	Region        string           `json:"region"`
	Year          int              `json:"year"`
	Month         int              `json:"month"`
	Counts        map[string]int64 `json:"counts"`
}

// View builds the JSON projection.
func (r AttendanceRecord) View() RecordView {
	return RecordView{
		Establishment: r.Establishment,
		Region:        r.Region,
		Year:          r.Year,
		Month:         r.Month,
		Counts:        r.CountsByName(),
	}
}

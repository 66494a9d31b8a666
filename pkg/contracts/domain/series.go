package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MonthKey identifies a calendar month. Ordering is by (Year, Month).
type MonthKey struct {
	Year  int
	Month int
}

// MonthKeyFromTime truncates t to its calendar month.
func MonthKeyFromTime(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: int(t.Month())}
}

// Date returns the first day of the month at midnight UTC.
func (k MonthKey) Date() time.Time {
	return time.Date(k.Year, time.Month(k.Month), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves the key n calendar months, normalising across years.
func (k MonthKey) AddMonths(n int) MonthKey {
	idx := k.Year*12 + (k.Month - 1) + n
	year := idx / 12
	month := idx%12 + 1
	if idx < 0 && idx%12 != 0 {
		year--
		month = idx%12 + 13
	}
	return MonthKey{Year: year, Month: month}
}

// Next is AddMonths(1).
func (k MonthKey) Next() MonthKey {
	return k.AddMonths(1)
}

// Before reports whether k is strictly earlier than other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// MarshalJSON encodes the key as "YYYY-MM".
func (k MonthKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts "YYYY-MM".
func (k *MonthKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return fmt.Errorf("invalid month key %q: %w", s, err)
	}
	*k = MonthKeyFromTime(t)
	return nil
}

// MonthlyPoint is one aggregated month.
type MonthlyPoint struct {
	Month MonthKey `json:"month"`
	Total int64    `json:"total"`
}

// MonthlySeries is strictly ascending by month with unique keys. Months
// without data are absent, not zero.
type MonthlySeries []MonthlyPoint

// Len returns the number of points.
func (s MonthlySeries) Len() int { return len(s) }

// Values returns the totals as float64 in series order.
func (s MonthlySeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = float64(p.Total)
	}
	return out
}

// Keys returns the month keys in series order.
func (s MonthlySeries) Keys() []MonthKey {
	out := make([]MonthKey, len(s))
	for i, p := range s {
		out[i] = p.Month
	}
	return out
}

// Last returns the final point. It panics on an empty series.
func (s MonthlySeries) Last() MonthlyPoint {
	return s[len(s)-1]
}

// Sum returns the sum of all totals.
func (s MonthlySeries) Sum() int64 {
	var sum int64
	for _, p := range s {
		sum += p.Total
	}
	return sum
}

// Lookup returns the total for key and whether it is present.
func (s MonthlySeries) Lookup(key MonthKey) (int64, bool) {
	for _, p := range s {
		if p.Month == key {
			return p.Total, true
		}
	}
	return 0, false
}

// ForecastPoint is one predicted month.
type ForecastPoint struct {
	Month MonthKey `json:"month"`
	Value float64  `json:"value"`
}

// ForecastSeries is ordered, consecutive months after the last observation.
type ForecastSeries []ForecastPoint

// Values returns the predicted values in order.
func (f ForecastSeries) Values() []float64 {
	out := make([]float64, len(f))
	for i, p := range f {
		out[i] = p.Value
	}
	return out
}

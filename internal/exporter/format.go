package exporter

import (
	"strconv"
)

// formatFloat formats a value with exactly two decimal places.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// formatInt formats an integer counter.
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}


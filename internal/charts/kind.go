package charts

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names a chart served by the dashboard.
type Kind string

const (
	KindMonthly        Kind = "monthly"
	KindConditions     Kind = "conditions"
	KindRegions        Kind = "regions"
	KindEstablishments Kind = "establishments"
	KindDistribution   Kind = "distribution"
	KindCorrelation    Kind = "correlation"
	KindForecast       Kind = "forecast"
)

var (
	// ErrUnknownChart is returned by ParseKind for an unsupported name.
	ErrUnknownChart = errors.New("unknown chart")

	// ErrEmptyData is returned when there is nothing to draw.
	ErrEmptyData = errors.New("no data to plot")
)

// Kinds lists every chart in display order.
func Kinds() []Kind {
	return []Kind{
		KindMonthly,
		KindConditions,
		KindRegions,
		KindEstablishments,
		KindDistribution,
		KindCorrelation,
		KindForecast,
	}
}

// ParseKind resolves a chart name, ignoring case.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChart, name)
}

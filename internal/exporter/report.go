package exporter

import (
	"time"

	"github.com/prisnormando/atendimentosapsdf/internal/analytics"
	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// Report gathers the results written by the exporters. Empty sections are
// skipped.
type Report struct {
	GeneratedAt  time.Time
	Filter       dataset.Filter
	Summary      analytics.Summary
	Monthly      domain.MonthlySeries
	Forecast     *forecast.Result
	Regions      []analytics.GroupTotal
	Distribution []analytics.CategoryShare
}

func (r Report) generatedAt() time.Time {
	if r.GeneratedAt.IsZero() {
		return time.Now().UTC()
	}
	return r.GeneratedAt
}

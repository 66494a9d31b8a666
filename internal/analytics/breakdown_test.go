package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

func TestTotalsByRegion(t *testing.T) {
	got := TotalsByRegion(sampleRecords())
	assert.Equal(t, []GroupTotal{
		{Name: "Norte", Total: 14},
		{Name: "Sul", Total: 11},
	}, got)
}

func TestTotalsByEstablishmentAscending(t *testing.T) {
	got := TotalsByEstablishment(sampleRecords())
	assert.Equal(t, []GroupTotal{
		{Name: "UBS 3", Total: 5},
		{Name: "UBS 2", Total: 6},
		{Name: "UBS 1", Total: 14},
	}, got)

	ties := TotalsByEstablishment([]domain.AttendanceRecord{
		record("B", "R", 2023, 1, map[domain.Category]int64{domain.CategoryAsthma: 1}),
		record("A", "R", 2023, 1, map[domain.Category]int64{domain.CategoryAsthma: 1}),
	})
	assert.Equal(t, "A", ties[0].Name)
}

func TestConditionDistribution(t *testing.T) {
	dist := ConditionDistribution(sampleRecords())
	require.Len(t, dist, domain.NumCategories)

	assert.Equal(t, domain.CategoryAsthma, dist[0].Category)
	assert.Equal(t, int64(10), dist[0].Total)
	assert.InDelta(t, 10.0/25.0, dist[0].Share, 1e-12)

	var share float64
	for _, d := range dist {
		share += d.Share
	}
	assert.InDelta(t, 1.0, share, 1e-9)

	empty := ConditionDistribution(nil)
	for _, d := range empty {
		assert.Zero(t, d.Share)
	}
}

func TestConditionCorrelation(t *testing.T) {
	records := []domain.AttendanceRecord{
		record("A", "R", 2023, 1, map[domain.Category]int64{domain.CategoryAsthma: 1, domain.CategoryCOPD: 2, domain.CategorySmoking: 9}),
		record("A", "R", 2023, 2, map[domain.Category]int64{domain.CategoryAsthma: 2, domain.CategoryCOPD: 4, domain.CategorySmoking: 6}),
		record("A", "R", 2023, 3, map[domain.Category]int64{domain.CategoryAsthma: 3, domain.CategoryCOPD: 6, domain.CategorySmoking: 3}),
	}

	m := ConditionCorrelation(records)
	require.Len(t, m.Values, domain.NumCategories)

	v, ok := m.At(int(domain.CategoryAsthma), int(domain.CategoryCOPD))
	require.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-9)

	v, ok = m.At(int(domain.CategoryAsthma), int(domain.CategorySmoking))
	require.True(t, ok)
	assert.InDelta(t, -1.0, v, 1e-9)

	v, ok = m.At(int(domain.CategoryCOPD), int(domain.CategoryCOPD))
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	// Pré-natal is constant zero.
	_, ok = m.At(int(domain.CategoryPrenatal), int(domain.CategoryAsthma))
	assert.False(t, ok)

	single := ConditionCorrelation(records[:1])
	_, ok = single.At(0, 0)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecords())
	assert.Equal(t, Summary{
		TotalAttendances: 25,
		Establishments:   3,
		Months:           4,
		Regions:          2,
		Records:          5,
	}, s)
}

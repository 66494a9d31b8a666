package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// Record builds an attendance record with the given counters.
func Record(establishment, region string, year, month int, counts map[domain.Category]int64) domain.AttendanceRecord {
	r := domain.AttendanceRecord{
		Establishment: establishment,
		Region:        region,
		Year:          year,
		Month:         month,
	}
	for c, v := range counts {
		r.Counts[c] = v
	}
	return r
}

// MonthlyRecords builds n consecutive months of records for one
// establishment starting at start. value returns the counters for month i.
func MonthlyRecords(establishment, region string, start domain.MonthKey, n int, value func(i int) map[domain.Category]int64) []domain.AttendanceRecord {
	out := make([]domain.AttendanceRecord, 0, n)
	k := start
	for i := 0; i < n; i++ {
		out = append(out, Record(establishment, region, k.Year, k.Month, value(i)))
		k = k.Next()
	}
	return out
}

// Header returns the dataset header row in canonical order.
func Header() []string {
	return append([]string{
		domain.ColumnEstablishment,
		domain.ColumnRegion,
		domain.ColumnYear,
		domain.ColumnMonth,
	}, domain.CategoryNames()...)
}

// WriteDatasetCSV writes records to name under dir and returns the path.
func WriteDatasetCSV(t *testing.T, dir, name string, records []domain.AttendanceRecord) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header()); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, r := range records {
		row := []string{r.Establishment, r.Region, strconv.Itoa(r.Year), strconv.Itoa(r.Month)}
		for _, v := range r.Counts {
			row = append(row, strconv.FormatInt(v, 10))
		}
		if err := w.Write(row); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush fixture: %v", err)
	}
	return path
}

// SampleDataset is three years of monthly records across two regions and
// three establishments, with a seasonal Asma pattern.
func SampleDataset() []domain.AttendanceRecord {
	start := domain.MonthKey{Year: 2021, Month: 1}
	var out []domain.AttendanceRecord
	out = append(out, MonthlyRecords("UBS 1 Asa Norte", "Central", start, 36, func(i int) map[domain.Category]int64 {
		return map[domain.Category]int64{
			domain.CategoryAsthma:       int64(10 + i%12),
			domain.CategoryMentalHealth: 5,
		}
	})...)
	out = append(out, MonthlyRecords("UBS 2 Ceilândia", "Oeste", start, 36, func(i int) map[domain.Category]int64 {
		return map[domain.Category]int64{
			domain.CategoryPrenatal: int64(20 + i%6),
			domain.CategorySmoking:  2,
		}
	})...)
	out = append(out, MonthlyRecords("UBS 3 Taguatinga", "Sudoeste", start, 36, func(i int) map[domain.Category]int64 {
		return map[domain.Category]int64{
			domain.CategoryCOPD: 3,
		}
	})...)
	return out
}

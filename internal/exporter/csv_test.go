package exporter

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisnormando/atendimentosapsdf/internal/forecast"
	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

func testSeries() domain.MonthlySeries {
	return domain.MonthlySeries{
		{Month: domain.MonthKey{Year: 2023, Month: 11}, Total: 120},
		{Month: domain.MonthKey{Year: 2023, Month: 12}, Total: 95},
	}
}

func testForecast() *forecast.Result {
	return &forecast.Result{
		Model: forecast.ModelTrend,
		Points: domain.ForecastSeries{
			{Month: domain.MonthKey{Year: 2024, Month: 1}, Value: 101.456},
			{Month: domain.MonthKey{Year: 2024, Month: 2}, Value: 99.5},
		},
		FallbackReason: "seasonal: fewer than two full seasonal cycles",
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name     string
		options  WriteOptions
		expected string
	}{
		{
			name:     "headers and records",
			options:  WriteOptions{Headers: []string{"a", "b"}, Records: [][]string{{"1", "2"}}},
			expected: "a,b\n1,2\n",
		},
		{
			name:     "bom prefix",
			options:  WriteOptions{Headers: []string{"a"}, BOMPrefix: true},
			expected: "\ufeffa\n",
		},
		{
			name:     "quotes separators",
			options:  WriteOptions{Records: [][]string{{"Região Sul, DF", "3"}}},
			expected: "\"Região Sul, DF\",3\n",
		},
		{
			name:     "empty",
			options:  WriteOptions{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tt.options))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestCSVWriter_WriteMonthlySeries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(true).WriteMonthlySeries(&buf, testSeries()))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
	assert.Equal(t, [][]string{
		{"month", "total"},
		{"2023-11", "120"},
		{"2023-12", "95"},
	}, readCSV(t, buf.Bytes()))
}

func TestCSVWriter_WriteForecast(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(false).WriteForecast(&buf, testSeries(), testForecast()))

	assert.False(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
	assert.Equal(t, [][]string{
		{"month", "observed", "forecast", "model"},
		{"2023-11", "120", "", ""},
		{"2023-12", "95", "", ""},
		{"2024-01", "", "101.46", "trend"},
		{"2024-02", "", "99.50", "trend"},
	}, readCSV(t, buf.Bytes()))
}

func TestCSVWriter_Write(t *testing.T) {
	t.Run("without forecast", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewCSVWriter(false).Write(&buf, Report{Monthly: testSeries()}))
		rows := readCSV(t, buf.Bytes())
		assert.Equal(t, monthlyHeaders, rows[0])
		assert.Len(t, rows, 3)
	})

	t.Run("with forecast", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewCSVWriter(false).Write(&buf, Report{Monthly: testSeries(), Forecast: testForecast()}))
		rows := readCSV(t, buf.Bytes())
		assert.Equal(t, forecastHeaders, rows[0])
		assert.Len(t, rows, 5)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteCSV_PropagatesWriterError(t *testing.T) {
	err := WriteCSV(failingWriter{}, WriteOptions{Headers: []string{"a"}, BOMPrefix: true})
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	err = WriteCSV(failingWriter{}, WriteOptions{Headers: []string{"a"}})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "series.csv")

	err := WriteFile(path, func(w io.Writer) error {
		return NewCSVWriter(true).WriteMonthlySeries(w, testSeries())
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, data), 3)
}

func TestWriteFile_WriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	err := WriteFile(path, func(io.Writer) error { return io.ErrUnexpectedEOF })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

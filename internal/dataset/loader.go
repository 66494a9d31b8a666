package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

var (
	// ErrDatasetNotFound is returned when the dataset file does not exist.
	ErrDatasetNotFound = errors.New("dataset file not found")

	// ErrMissingColumns is returned when required header columns are absent.
	ErrMissingColumns = errors.New("required columns not found")
)

// ParseError locates a malformed cell.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %q: invalid value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads the dataset CSV at path.
func Load(path string) ([]domain.AttendanceRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	records, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

// columnIndices maps dataset fields to header positions.
type columnIndices struct {
	establishment int
	region        int
	year          int
	month         int
	categories    [domain.NumCategories]int
}

// Parse reads dataset rows from r. The header row is required; extra columns
// are ignored. Empty counter cells read as zero.
func Parse(r io.Reader) ([]domain.AttendanceRecord, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := findColumnIndices(header)
	if err != nil {
		return nil, err
	}

	records := make([]domain.AttendanceRecord, 0, 1024)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(row) {
			continue
		}

		rec, err := parseRow(row, line, cols)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func findColumnIndices(header []string) (columnIndices, error) {
	positions := make(map[string]int, len(header))
	for i, col := range header {
		clean := strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if _, dup := positions[clean]; !dup {
			positions[clean] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		idx, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return idx
	}

	cols := columnIndices{
		establishment: lookup(domain.ColumnEstablishment),
		region:        lookup(domain.ColumnRegion),
		year:          lookup(domain.ColumnYear),
		month:         lookup(domain.ColumnMonth),
	}
	for i, name := range domain.CategoryNames() {
		cols.categories[i] = lookup(name)
	}

	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRow(row []string, line int, cols columnIndices) (domain.AttendanceRecord, error) {
	cell := func(idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	rec := domain.AttendanceRecord{
		Establishment: cell(cols.establishment),
		Region:        cell(cols.region),
	}

	year, err := parseInteger(cell(cols.year), false)
	if err != nil {
		return rec, &ParseError{Line: line, Column: domain.ColumnYear, Value: cell(cols.year), Err: err}
	}
	month, err := parseInteger(cell(cols.month), false)
	if err != nil {
		return rec, &ParseError{Line: line, Column: domain.ColumnMonth, Value: cell(cols.month), Err: err}
	}
	if month < 1 || month > 12 {
		return rec, &ParseError{Line: line, Column: domain.ColumnMonth, Value: cell(cols.month), Err: errors.New("month must be between 1 and 12")}
	}
	rec.Year = int(year)
	rec.Month = int(month)

	for i, idx := range cols.categories {
		raw := cell(idx)
		v, err := parseInteger(raw, true)
		if err != nil {
			return rec, &ParseError{Line: line, Column: domain.Category(i).String(), Value: raw, Err: err}
		}
		if v < 0 {
			return rec, &ParseError{Line: line, Column: domain.Category(i).String(), Value: raw, Err: errors.New("counter must not be negative")}
		}
		rec.Counts[i] = v
	}
	return rec, nil
}

// parseInteger accepts plain integers and integral decimals such as "12.0",
// the form spreadsheet exports use for numeric columns.
func parseInteger(s string, emptyIsZero bool) (int64, error) {
	if s == "" {
		if emptyIsZero {
			return 0, nil
		}
		return 0, errors.New("value is required")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if math.IsNaN(f) {
		if emptyIsZero {
			return 0, nil
		}
		return 0, errors.New("value is required")
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errors.New("not an integer")
	}
	return int64(f), nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

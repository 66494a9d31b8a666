package exporter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/prisnormando/atendimentosapsdf/internal/dataset"
)

// Sheet names of the exported workbook.
const (
	SheetSummary    = "Resumo"
	SheetMonthly    = "Mensal"
	SheetForecast   = "Previsao"
	SheetRegions    = "Regioes"
	SheetConditions = "Condicoes"
)

// Built-in excelize number formats.
const (
	numFmtThousands = 3  // #,##0
	numFmtDecimal   = 4  // #,##0.00
	numFmtPercent   = 10 // 0.00%
)

// WorkbookWriter builds an XLSX workbook from a Report.
type WorkbookWriter struct {
	columnWidth float64
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter() *WorkbookWriter {
	return &WorkbookWriter{columnWidth: 18}
}

type workbook struct {
	f      *excelize.File
	header int
	styles map[int]int
	width  float64
}

// Write renders report into a new workbook and writes it to w. Sections
// without data get no sheet; the summary sheet is always present.
func (ww *WorkbookWriter) Write(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	wb := &workbook{f: f, styles: make(map[int]int), width: ww.columnWidth}
	if err := wb.init(); err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := wb.summary(report); err != nil {
		return err
	}
	if len(report.Monthly) > 0 {
		if err := wb.monthly(report); err != nil {
			return err
		}
	}
	if report.Forecast != nil && len(report.Forecast.Points) > 0 {
		if err := wb.forecast(report); err != nil {
			return err
		}
	}
	if len(report.Regions) > 0 {
		if err := wb.regions(report); err != nil {
			return err
		}
	}
	if len(report.Distribution) > 0 {
		if err := wb.conditions(report); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (wb *workbook) init() error {
	header, err := wb.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	wb.header = header

	for _, numFmt := range []int{numFmtThousands, numFmtDecimal, numFmtPercent} {
		id, err := wb.f.NewStyle(&excelize.Style{NumFmt: numFmt})
		if err != nil {
			return fmt.Errorf("failed to create number style: %w", err)
		}
		wb.styles[numFmt] = id
	}
	return nil
}

func (wb *workbook) newSheet(name string) error {
	if _, err := wb.f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return nil
}

func (wb *workbook) headers(sheet string, row int, headers ...string) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := wb.f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := wb.f.SetCellStyle(sheet, cell, cell, wb.header); err != nil {
			return err
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return wb.f.SetColWidth(sheet, "A", last, wb.width)
}

// set writes value at (col,row); numFmt 0 leaves the default style.
func (wb *workbook) set(sheet string, col, row int, value interface{}, numFmt int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := wb.f.SetCellValue(sheet, cell, value); err != nil {
		return err
	}
	if numFmt != 0 {
		return wb.f.SetCellStyle(sheet, cell, cell, wb.styles[numFmt])
	}
	return nil
}

func (wb *workbook) summary(report Report) error {
	rows := []struct {
		label  string
		value  interface{}
		numFmt int
	}{
		{"Gerado em", report.generatedAt().Format("2006-01-02 15:04:05"), 0},
		{"Anos", describeYears(report.Filter), 0},
		{"Regiões", describeRegions(report.Filter), 0},
		{"Total de atendimentos", report.Summary.TotalAttendances, numFmtThousands},
		{"Estabelecimentos", report.Summary.Establishments, 0},
		{"Meses", report.Summary.Months, 0},
		{"Registros", report.Summary.Records, 0},
	}

	if err := wb.headers(SheetSummary, 1, "Indicador", "Valor"); err != nil {
		return err
	}
	for i, r := range rows {
		row := i + 2
		if err := wb.set(SheetSummary, 1, row, r.label, 0); err != nil {
			return err
		}
		if err := wb.set(SheetSummary, 2, row, r.value, r.numFmt); err != nil {
			return err
		}
	}
	return nil
}

func (wb *workbook) monthly(report Report) error {
	if err := wb.newSheet(SheetMonthly); err != nil {
		return err
	}
	if err := wb.headers(SheetMonthly, 1, "Mês", "Total"); err != nil {
		return err
	}
	for i, p := range report.Monthly {
		row := i + 2
		if err := wb.set(SheetMonthly, 1, row, p.Month.String(), 0); err != nil {
			return err
		}
		if err := wb.set(SheetMonthly, 2, row, p.Total, numFmtThousands); err != nil {
			return err
		}
	}
	return nil
}

func (wb *workbook) forecast(report Report) error {
	result := report.Forecast
	if err := wb.newSheet(SheetForecast); err != nil {
		return err
	}
	if err := wb.headers(SheetForecast, 1, "Mês", "Previsão"); err != nil {
		return err
	}
	for i, p := range result.Points {
		row := i + 2
		if err := wb.set(SheetForecast, 1, row, p.Month.String(), 0); err != nil {
			return err
		}
		if err := wb.set(SheetForecast, 2, row, p.Value, numFmtDecimal); err != nil {
			return err
		}
	}

	// Model description to the right of the table.
	meta := [][2]interface{}{
		{"Modelo", string(result.Model)},
		{"alpha", result.Params.Alpha},
		{"beta", result.Params.Beta},
		{"gamma", result.Params.Gamma},
		{"SSE", result.Params.SSE},
	}
	if result.FallbackReason != "" {
		meta = append(meta, [2]interface{}{"Motivo do fallback", result.FallbackReason})
	}
	if result.Warning != nil {
		meta = append(meta, [2]interface{}{"Aviso", result.Warning.Error()})
	}
	for i, m := range meta {
		if err := wb.set(SheetForecast, 4, i+1, m[0], 0); err != nil {
			return err
		}
		if err := wb.set(SheetForecast, 5, i+1, m[1], 0); err != nil {
			return err
		}
	}
	return nil
}

func (wb *workbook) regions(report Report) error {
	if err := wb.newSheet(SheetRegions); err != nil {
		return err
	}
	if err := wb.headers(SheetRegions, 1, "Região de Saúde", "Total"); err != nil {
		return err
	}
	for i, g := range report.Regions {
		row := i + 2
		if err := wb.set(SheetRegions, 1, row, g.Name, 0); err != nil {
			return err
		}
		if err := wb.set(SheetRegions, 2, row, g.Total, numFmtThousands); err != nil {
			return err
		}
	}
	return nil
}

func (wb *workbook) conditions(report Report) error {
	if err := wb.newSheet(SheetConditions); err != nil {
		return err
	}
	if err := wb.headers(SheetConditions, 1, "Condição", "Total", "Participação"); err != nil {
		return err
	}
	for i, s := range report.Distribution {
		row := i + 2
		if err := wb.set(SheetConditions, 1, row, s.Category.String(), 0); err != nil {
			return err
		}
		if err := wb.set(SheetConditions, 2, row, s.Total, numFmtThousands); err != nil {
			return err
		}
		if err := wb.set(SheetConditions, 3, row, s.Share, numFmtPercent); err != nil {
			return err
		}
	}
	return nil
}

func describeYears(f dataset.Filter) string {
	if len(f.Years) == 0 {
		return "Todos"
	}
	years := make([]string, len(f.Years))
	for i, y := range f.Years {
		years[i] = strconv.Itoa(y)
	}
	return strings.Join(years, ", ")
}

func describeRegions(f dataset.Filter) string {
	if len(f.Regions) == 0 {
		return "Todas"
	}
	return strings.Join(f.Regions, ", ")
}

package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"coefcalc/internal/config"
	apperrors "coefcalc/internal/errors"
	"coefcalc/internal/security"
	"coefcalc/pkg/contracts/domain"
)

// Sheet names of the report workbook
const (
	SheetCoefficients = "Coefficients and metrics"
	SheetStatistics   = "Statistics"
	SheetInfo         = "Info"
)

const (
	percentFormat    = "0.000%"
	shareFormat      = "0.0%"
	timestampLayout  = "2006-01-02 15:04:05"
	defaultSheetName = "Sheet1"
)

// WorkbookWriter renders calculation results as an XLSX report
type WorkbookWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewWorkbookWriter creates a writer saving into paths.ReportsDir
func NewWorkbookWriter(paths *config.Paths, logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{
		paths:  paths,
		logger: logger.With(slog.String("component", "workbook_writer")),
	}
}

// Save writes the report into the reports directory and returns its path
func (w *WorkbookWriter) Save(ctx context.Context, res *domain.CalculationResult) (string, error) {
	return w.SaveAs(ctx, w.paths.GetReportPath(ReportFilename(res.GeneratedAt)), res)
}

// SaveAs writes the report to path
func (w *WorkbookWriter) SaveAs(ctx context.Context, path string, res *domain.CalculationResult) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create reports directory", err)
	}

	f, err := w.Build(res)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to save workbook %s", path), err)
	}

	w.logger.InfoContext(ctx, "Workbook saved",
		slog.String("path", path),
		slog.Int("products", len(res.Results)))
	return path, nil
}

// Write streams the report to out
func (w *WorkbookWriter) Write(ctx context.Context, out io.Writer, res *domain.CalculationResult) error {
	f, err := w.Build(res)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return apperrors.NewStorageError("failed to write workbook", err)
	}

	w.logger.DebugContext(ctx, "Workbook written",
		slog.String("calculation_id", res.ID),
		slog.Int("products", len(res.Results)))
	return nil
}

// Build assembles the three report sheets in memory
func (w *WorkbookWriter) Build(res *domain.CalculationResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(defaultSheetName, SheetCoefficients); err != nil {
		f.Close()
		return nil, apperrors.NewStorageError("failed to name sheet", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		f.Close()
		return nil, apperrors.NewStorageError("failed to create header style", err)
	}

	steps := []func(*excelize.File, int, *domain.CalculationResult) error{
		writeCoefficientSheet,
		writeStatisticsSheet,
		writeInfoSheet,
	}
	for _, step := range steps {
		if err := step(f, header, res); err != nil {
			f.Close()
			return nil, apperrors.NewStorageError("failed to build workbook", err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeCoefficientSheet(f *excelize.File, header int, res *domain.CalculationResult) error {
	sheet := SheetCoefficients

	headers := make([]any, len(resultColumns))
	for i, c := range resultColumns {
		headers[i] = c.Header
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(resultColumns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return err
	}

	for i, r := range res.Results {
		row := make([]any, len(resultColumns))
		for j, c := range resultColumns {
			row[j] = cellValue(c, r)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	pct, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr(percentFormat)})
	if err != nil {
		return err
	}

	for i, c := range resultColumns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, c.Width); err != nil {
			return err
		}
		if c.Percent && len(res.Results) > 0 {
			from := fmt.Sprintf("%s2", name)
			to := fmt.Sprintf("%s%d", name, len(res.Results)+1)
			if err := f.SetCellStyle(sheet, from, to, pct); err != nil {
				return err
			}
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// cellValue converts a column value for the sheet: percentages become
// fractions and text is neutralized
func cellValue(c column, r domain.ProductResult) any {
	v := c.Value(r)
	switch x := v.(type) {
	case string:
		return security.NeutralizeFormula(x)
	case float64:
		if c.Percent {
			return x / 100
		}
	}
	return v
}

func writeStatisticsSheet(f *excelize.File, header int, res *domain.CalculationResult) error {
	sheet := SheetStatistics
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	s := res.Statistics
	rows := [][]any{
		{"Coefficient statistics", "Count", "Percent"},
		{"Coefficient = 1.00", s.AtParity, s.ParityPercent / 100},
		{"Coefficient = 0.80", s.AtFloor, s.FloorPercent / 100},
		{"Coefficient = 1.50", s.AtCeiling, s.CeilingPercent / 100},
		{"Other coefficients", s.Other, s.OtherPercent / 100},
		{"Total products", s.Total, totalShare(s.Total)},
	}
	if err := setRows(f, sheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", header); err != nil {
		return err
	}

	share, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr(shareFormat)})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "C2", fmt.Sprintf("C%d", len(rows)), share); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 28); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "C", 12)
}

func totalShare(total int) float64 {
	if total == 0 {
		return 0
	}
	return 1
}

func writeInfoSheet(f *excelize.File, header int, res *domain.CalculationResult) error {
	sheet := SheetInfo
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	sum := res.Summary
	rows := [][]any{
		{"Parameter", "Value"},
		{"Report generated", res.GeneratedAt.Format(timestampLayout)},
		{"Calculation ID", res.ID},
		{"Products", len(res.Results)},
		{"Calculated metrics", "Coefficient, Difference, Bias %, OSA %, Writeoffs %, Accuracy (final) %"},
		{"Column order", "Sales, Demand, Prediction Final, SWAT, Difference, Bias %, Coefficients"},
		{"Percent format", "Bias %, OSA %, Writeoffs %, Accuracy (final) % as percentages with 3 decimals"},
		{"Bias % formula", "(prediction_final - demand) / demand * 100"},
		{"Difference formula", "prediction_final - demand"},
		{"Coefficient formula", "demand / swat"},
		{"Adjustment", "[0.96, 1.04] -> 1.00, below 0.80 -> 0.80, above 1.50 -> 1.50"},
		{"Keyset", sum.Keyset},
		{"DEMAND files", sum.DemandFileCount},
		{"SWAT files", sum.SwatFileCount},
	}
	if sum.Warning != "" {
		rows = append(rows, []any{"Skipped files", sum.Warning})
	}

	for _, row := range rows {
		for i, v := range row {
			if s, ok := v.(string); ok {
				row[i] = security.NeutralizeFormula(s)
			}
		}
	}

	if err := setRows(f, sheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", header); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 24); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "B", 80)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

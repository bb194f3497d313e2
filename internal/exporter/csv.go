package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"coefcalc/internal/config"
	apperrors "coefcalc/internal/errors"
	"coefcalc/internal/security"
	"coefcalc/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export of calculation results
type CSVWriter struct {
	paths     *config.Paths
	logger    *slog.Logger
	delimiter rune
}

// NewCSVWriter creates a writer using ';' as delimiter, matching the
// input exports
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		paths:     paths,
		logger:    logger.With(slog.String("component", "csv_writer")),
		delimiter: ';',
	}
}

// CSVHeaders returns the export header row: the workbook columns plus the
// adjustment type
func CSVHeaders() []string {
	return append(Headers(), "Adjustment")
}

// Save writes the export into the reports directory and returns its path
func (w *CSVWriter) Save(ctx context.Context, res *domain.CalculationResult) (string, error) {
	return w.SaveAs(ctx, w.paths.GetReportPath(CSVFilename(res.GeneratedAt)), res)
}

// SaveAs writes the export to path
func (w *CSVWriter) SaveAs(ctx context.Context, path string, res *domain.CalculationResult) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create reports directory", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to create %s", path), err)
	}

	if err := w.Write(ctx, file, res); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to close %s", path), err)
	}

	w.logger.InfoContext(ctx, "CSV export saved",
		slog.String("path", path),
		slog.Int("record_count", len(res.Results)))
	return path, nil
}

// Write renders the results as CSV with a UTF-8 BOM for spreadsheet
// compatibility
func (w *CSVWriter) Write(ctx context.Context, out io.Writer, res *domain.CalculationResult) error {
	if _, err := out.Write(utf8BOM); err != nil {
		return apperrors.NewStorageError("failed to write BOM", err)
	}

	writer := csv.NewWriter(out)
	writer.Comma = w.delimiter

	if err := writer.Write(CSVHeaders()); err != nil {
		return apperrors.NewStorageError("failed to write headers", err)
	}

	for i, r := range res.Results {
		if err := writer.Write(csvRecord(r)); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to write record %d", i), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("failed to flush CSV", err)
	}

	w.logger.DebugContext(ctx, "CSV written", slog.Int("record_count", len(res.Results)))
	return nil
}

func csvRecord(r domain.ProductResult) []string {
	return []string{
		security.NeutralizeFormula(r.ProductID),
		security.NeutralizeFormula(r.Level1),
		security.NeutralizeFormula(r.Level2),
		security.NeutralizeFormula(r.Level3),
		security.NeutralizeFormula(r.Level4),
		formatInt(r.SalesSum),
		formatInt(r.DemandSum),
		formatInt(r.PredictionFinalSum),
		formatInt(r.SwatSum),
		formatInt(r.Difference),
		formatPercent(r.BiasPercent),
		formatCoefficient(r.CoefficientRaw),
		formatCoefficient(r.CoefficientAdjusted),
		formatPercent(r.OSAPercent),
		formatPercent(r.WriteoffsPercent),
		formatPercent(r.AccuracyFinal),
		string(r.AdjustmentType),
	}
}

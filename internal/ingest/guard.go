package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"coefcalc/internal/config"
	apperrors "coefcalc/internal/errors"
	"coefcalc/internal/infrastructure"
	"coefcalc/internal/security"
	"coefcalc/pkg/contracts/domain"
)

// ErrLimitExceeded is wrapped by every fatal volume violation
var ErrLimitExceeded = errors.New("volume limit exceeded")

// File is one uploaded export held in memory
type File struct {
	Name   string
	Family domain.FileFamily
	Data   []byte
	// Declared is the size reported by the transport when the content was
	// not read because it is already over the limit
	Declared int64
}

// Size returns the larger of the content length and the declared size
func (f File) Size() int64 {
	if f.Declared > int64(len(f.Data)) {
		return f.Declared
	}
	return int64(len(f.Data))
}

// Limits caps what a single calculation may ingest
type Limits struct {
	MaxFileBytes   int64
	MaxFiles       int
	MaxRowsPerFile int
	MaxTotalRows   int
}

// LimitsFromConfig converts the configured limits
func LimitsFromConfig(cfg config.LimitsConfig) Limits {
	return Limits{
		MaxFileBytes:   cfg.MaxFileBytes,
		MaxFiles:       cfg.MaxFiles,
		MaxRowsPerFile: cfg.MaxRowsPerFile,
		MaxTotalRows:   cfg.MaxTotalRows,
	}
}

// Batch is the accepted part of a screened upload
type Batch struct {
	Demand        []File
	Swat          []File
	Rejections    []domain.FileRejection
	EstimatedRows int
}

// Files returns the accepted files of one family
func (b *Batch) Files(family domain.FileFamily) []File {
	if family == domain.FamilySwat {
		return b.Swat
	}
	return b.Demand
}

// Guard applies the acceptance rules and volume limits
type Guard struct {
	limits  Limits
	scanner *security.ContentScanner
	logger  *slog.Logger
	metrics *infrastructure.CalculationMetrics
}

// NewGuard creates a guard. A nil scanner gets the default configuration.
func NewGuard(limits Limits, scanner *security.ContentScanner, logger *slog.Logger) *Guard {
	if scanner == nil {
		scanner = security.NewContentScanner(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		limits:  limits,
		scanner: scanner,
		logger:  logger.With(slog.String("component", "ingest")),
	}
}

// WithMetrics counts rejected files on m
func (g *Guard) WithMetrics(m *infrastructure.CalculationMetrics) *Guard {
	g.metrics = m
	return g
}

// Limits returns the configured limits
func (g *Guard) Limits() Limits {
	return g.limits
}

// Screen sorts files into accepted and rejected. Malformed files become
// rejections; any limit violation is returned as a LIMIT error and no
// Batch is produced.
func (g *Guard) Screen(ctx context.Context, files []File) (*Batch, error) {
	if err := g.checkCounts(files); err != nil {
		return nil, err
	}

	batch := &Batch{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if f.Size() > g.limits.MaxFileBytes {
			return nil, limitError(
				fmt.Sprintf("file %s is %s, the limit is %s", f.Name, FormatBytes(f.Size()), FormatBytes(g.limits.MaxFileBytes)),
				"max_file_bytes", g.limits.MaxFileBytes)
		}

		if reason, threat := g.accept(ctx, f); reason != "" {
			g.reject(ctx, batch, f, reason, threat)
			continue
		}

		rows := EstimateRows(f.Data)
		if rows > g.limits.MaxRowsPerFile {
			return nil, limitError(
				fmt.Sprintf("file %s has about %d rows, the limit is %d per file", f.Name, rows, g.limits.MaxRowsPerFile),
				"max_rows_per_file", g.limits.MaxRowsPerFile)
		}
		batch.EstimatedRows += rows

		if f.Family == domain.FamilySwat {
			batch.Swat = append(batch.Swat, f)
		} else {
			batch.Demand = append(batch.Demand, f)
		}
	}

	if batch.EstimatedRows > g.limits.MaxTotalRows {
		return nil, limitError(
			fmt.Sprintf("the files hold about %d rows in total, the limit is %d", batch.EstimatedRows, g.limits.MaxTotalRows),
			"max_total_rows", g.limits.MaxTotalRows)
	}

	g.logger.InfoContext(ctx, "Upload screened",
		slog.Int("demand_files", len(batch.Demand)),
		slog.Int("swat_files", len(batch.Swat)),
		slog.Int("rejected_files", len(batch.Rejections)),
		slog.Int("estimated_rows", batch.EstimatedRows))

	return batch, nil
}

func (g *Guard) checkCounts(files []File) error {
	counts := make(map[domain.FileFamily]int)
	for _, f := range files {
		counts[f.Family]++
	}
	for _, family := range []domain.FileFamily{domain.FamilyDemand, domain.FamilySwat} {
		if counts[family] > g.limits.MaxFiles {
			return limitError(
				fmt.Sprintf("%d %s files were given, the limit is %d", counts[family], family, g.limits.MaxFiles),
				"max_files", g.limits.MaxFiles)
		}
	}
	return nil
}

// accept returns a rejection reason, or "" when the file may be parsed
func (g *Guard) accept(ctx context.Context, f File) (string, string) {
	if !f.Family.Valid() {
		return fmt.Sprintf("unknown file family %q", f.Family), "unknown_family"
	}
	if security.ContainsPathTraversal(f.Name) {
		return "file name contains path components", string(security.ThreatPathTraversal)
	}
	if !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
		return "not a .csv file", "extension"
	}
	if len(bytes.TrimSpace(f.Data)) == 0 {
		return "", ""
	}

	scan := g.scanner.Scan(ctx, f.Name, f.Data)
	if !scan.IsValid {
		threat := ""
		if len(scan.ThreatTypes) > 0 {
			threat = scan.ThreatTypes[0]
		}
		return scan.Reason(), threat
	}
	return "", ""
}

func (g *Guard) reject(ctx context.Context, batch *Batch, f File, reason, threat string) {
	batch.Rejections = append(batch.Rejections, domain.FileRejection{
		Name:   f.Name,
		Family: f.Family,
		Reason: reason,
	})
	g.metrics.RecordRejection(ctx, threat)
	g.logger.WarnContext(ctx, "File rejected",
		slog.String("file", f.Name),
		slog.String("family", string(f.Family)),
		slog.String("reason", reason))
}

func limitError(message, limit string, value any) error {
	return apperrors.NewLimitError(message, ErrLimitExceeded).WithContext(limit, value)
}

// EstimateRows counts data lines without parsing: line breaks, plus an
// unterminated last line, minus the header.
func EstimateRows(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	lines := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		lines++
	}
	if lines <= 1 {
		return 0
	}
	return lines - 1
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

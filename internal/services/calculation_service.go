package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"coefcalc/internal/config"
	"coefcalc/internal/dataprocessing"
	apperrors "coefcalc/internal/errors"
	"coefcalc/internal/infrastructure"
	"coefcalc/internal/ingest"
	"coefcalc/pkg/contracts/domain"
)

// Progress stages
const (
	StageDemand       = "demand"
	StageSwat         = "swat"
	StageMetrics      = "metrics"
	StageCoefficients = "coefficients"
)

// ProgressReporter receives stage updates while a calculation runs
type ProgressReporter interface {
	Report(ctx context.Context, stage string, percent int, message string)
}

// ProgressFunc adapts a function to ProgressReporter
type ProgressFunc func(ctx context.Context, stage string, percent int, message string)

// Report calls f
func (f ProgressFunc) Report(ctx context.Context, stage string, percent int, message string) {
	f(ctx, stage, percent, message)
}

type noopReporter struct{}

func (noopReporter) Report(context.Context, string, int, string) {}

// CalculationOptions tunes one calculation
type CalculationOptions struct {
	// ID is assigned when empty
	ID string
	// Keyset overrides the configured keyset policy
	Keyset   string
	Reporter ProgressReporter
}

// CalculationService runs the coefficient pipeline over screened files
type CalculationService struct {
	guard       *ingest.Guard
	keyset      dataprocessing.KeysetPolicy
	parallelism int
	metrics     *infrastructure.CalculationMetrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewCalculationService creates a calculation service
func NewCalculationService(guard *ingest.Guard, cfg config.CalculationConfig, metrics *infrastructure.CalculationMetrics, logger *slog.Logger) (*CalculationService, error) {
	if guard == nil {
		return nil, fmt.Errorf("calculation service requires an ingest guard")
	}
	keyset, err := dataprocessing.ParseKeysetPolicy(cfg.Keyset)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid keyset policy", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	return &CalculationService{
		guard:       guard,
		keyset:      keyset,
		parallelism: parallelism,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "calculation_service")),
		now:         time.Now,
	}, nil
}

// Keyset returns the default keyset policy
func (s *CalculationService) Keyset() dataprocessing.KeysetPolicy {
	return s.keyset
}

// parsedFamily is the merged parse output of one file family
type parsedFamily struct {
	observations [][]domain.Observation
	summaries    []domain.FileParseSummary
	rows         int
}

// Calculate screens files, parses them and returns the per-product results.
// Rejected files are reported in the summary; limit violations, missing
// families and empty inputs abort with an error and no result.
func (s *CalculationService) Calculate(ctx context.Context, files []ingest.File, opts CalculationOptions) (*domain.CalculationResult, error) {
	start := s.now()
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = noopReporter{}
	}

	ctx, span := infrastructure.StartSpan(ctx, "calculation.run",
		attribute.String("calculation.id", opts.ID),
		attribute.Int("calculation.files", len(files)))
	defer span.End()

	logger := s.logger.With(slog.String("calculation_id", opts.ID))

	res, err := s.calculate(ctx, logger, files, opts, reporter)
	duration := s.now().Sub(start)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordCalculation(ctx, duration, outcomeOf(err), 0)
		logger.WarnContext(ctx, "Calculation failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", duration))
		return nil, err
	}

	res.Summary.Duration = duration
	s.metrics.RecordCalculation(ctx, duration, "success", len(res.Results))
	logger.InfoContext(ctx, "Calculation completed",
		slog.Int("products", len(res.Results)),
		slog.Int("at_parity", res.Statistics.AtParity),
		slog.Int("at_floor", res.Statistics.AtFloor),
		slog.Int("at_ceiling", res.Statistics.AtCeiling),
		slog.Duration("duration", duration))
	return res, nil
}

func (s *CalculationService) calculate(ctx context.Context, logger *slog.Logger, files []ingest.File, opts CalculationOptions, reporter ProgressReporter) (*domain.CalculationResult, error) {
	policy := s.keyset
	if opts.Keyset != "" {
		p, err := dataprocessing.ParseKeysetPolicy(opts.Keyset)
		if err != nil {
			return nil, apperrors.NewAppValidationError(err.Error()).WithContext("keyset", opts.Keyset)
		}
		policy = p
	}

	batch, err := s.guard.Screen(ctx, files)
	if err != nil {
		return nil, err
	}
	warning := ingest.RejectionWarning(batch.Rejections, ingest.DefaultMaxExamples)

	if len(batch.Demand) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			missingFamilyMessage("demand", warning), ErrNoDemandFiles)
	}
	if len(batch.Swat) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			missingFamilyMessage("SWAT", warning), ErrNoSwatFiles)
	}

	demand, err := s.parseFamily(ctx, logger, batch.Demand, domain.FamilyDemand)
	if err != nil {
		return nil, err
	}
	reporter.Report(ctx, StageDemand, 25, fmt.Sprintf("Parsed %d demand file(s), %d rows", len(batch.Demand), demand.rows))

	swat, err := s.parseFamily(ctx, logger, batch.Swat, domain.FamilySwat)
	if err != nil {
		return nil, err
	}
	reporter.Report(ctx, StageSwat, 50, fmt.Sprintf("Parsed %d SWAT file(s), %d rows", len(batch.Swat), swat.rows))

	limits := s.guard.Limits()
	if total := demand.rows + swat.rows; limits.MaxTotalRows > 0 && total > limits.MaxTotalRows {
		return nil, apperrors.NewLimitError(
			fmt.Sprintf("the files hold %d rows in total, the limit is %d", total, limits.MaxTotalRows),
			ErrLimitExceeded).WithContext("max_total_rows", limits.MaxTotalRows)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	demandAggs := dataprocessing.AggregateDemand(demand.observations...)
	swatAggs := dataprocessing.AggregateSwat(swat.observations...)
	metrics := dataprocessing.CalculateMetrics(demandAggs)
	reporter.Report(ctx, StageMetrics, 75, fmt.Sprintf("Aggregated %d demand and %d SWAT products", len(demandAggs), len(swatAggs)))

	results := dataprocessing.CalculateCoefficients(metrics, swatAggs, policy)
	if len(results) == 0 {
		msg := "the demand files contain no products"
		if warning != "" {
			msg += "; " + warning
		}
		return nil, apperrors.NewNoDataError(msg, ErrNoData)
	}
	stats := dataprocessing.ComputeStatistics(results)
	reporter.Report(ctx, StageCoefficients, 100, fmt.Sprintf("Calculated %d coefficients", len(results)))

	summaries := make([]domain.FileParseSummary, 0, len(demand.summaries)+len(swat.summaries))
	summaries = append(summaries, demand.summaries...)
	summaries = append(summaries, swat.summaries...)

	return &domain.CalculationResult{
		ID:          opts.ID,
		GeneratedAt: s.now(),
		Results:     results,
		Statistics:  stats,
		Summary: domain.CalculationSummary{
			Keyset:          string(policy),
			DemandFileCount: len(batch.Demand),
			SwatFileCount:   len(batch.Swat),
			Files:           summaries,
			Rejections:      batch.Rejections,
			Warning:         warning,
			DemandProducts:  len(demandAggs),
			SwatProducts:    len(swatAggs),
			Products:        len(results),
		},
	}, nil
}

// parseFamily reads and classifies the files of one family concurrently.
// Each file's observations land in its own slot and are merged in input
// order only after every parse has finished.
func (s *CalculationService) parseFamily(ctx context.Context, logger *slog.Logger, files []ingest.File, family domain.FileFamily) (*parsedFamily, error) {
	ctx, span := infrastructure.StartSpan(ctx, "calculation.parse",
		attribute.String("family", string(family)),
		attribute.Int("files", len(files)))
	defer span.End()

	out := &parsedFamily{
		observations: make([][]domain.Observation, len(files)),
		summaries:    make([]domain.FileParseSummary, len(files)),
	}
	maxRows := s.guard.Limits().MaxRowsPerFile

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table, err := dataprocessing.ReadTable(bytes.NewReader(f.Data), dataprocessing.ReaderOptions{MaxRows: maxRows})
			if err != nil {
				if errors.Is(err, dataprocessing.ErrTooManyRows) {
					return apperrors.NewLimitError(
						fmt.Sprintf("file %s has more than %d rows, the limit per file", f.Name, maxRows),
						fmt.Errorf("%w: %w", ErrLimitExceeded, err)).WithContext("max_rows_per_file", maxRows)
				}
				return apperrors.NewParsingError(fmt.Sprintf("could not read %s", f.Name), err)
			}

			obs, summary := dataprocessing.ClassifyTable(f.Name, family, table)
			summary.Bytes = int64(len(f.Data))
			out.observations[i] = obs
			out.summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, summary := range out.summaries {
		out.rows += summary.RowsRead
		if summary.RowsRead == 0 {
			logger.WarnContext(ctx, "File has no data rows",
				slog.String("file", summary.Name),
				slog.String("family", string(family)))
		}
		logger.InfoContext(ctx, "File parsed",
			slog.String("file", summary.Name),
			slog.String("family", string(family)),
			slog.Int("rows_read", summary.RowsRead),
			slog.Int("rows_accepted", summary.RowsAccepted),
			slog.Int("rows_skipped", summary.RowsSkipped),
			slog.String("value_column", summary.ValueColumn))
		if summary.RowsSkipped > 0 {
			logger.DebugContext(ctx, "Rows skipped",
				slog.String("file", summary.Name),
				slog.Any("measures_seen", summary.MeasuresSeen))
		}
	}
	s.metrics.RecordRows(ctx, string(family), out.rows)

	return out, nil
}

func missingFamilyMessage(family, warning string) string {
	msg := fmt.Sprintf("no usable %s files were given", family)
	if warning != "" {
		msg += "; " + warning
	}
	return msg
}

// outcomeOf labels a failed calculation for metrics
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrLimitExceeded):
		return "limit"
	case errors.Is(err, ErrNoData):
		return "no_data"
	}
	switch apperrors.TypeOf(err) {
	case apperrors.ErrTypeValidation:
		return "invalid"
	case apperrors.ErrTypeParsing:
		return "parse_error"
	}
	return "error"
}

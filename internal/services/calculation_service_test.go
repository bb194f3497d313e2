package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coefcalc/internal/config"
	"coefcalc/internal/dataprocessing"
	apperrors "coefcalc/internal/errors"
	"coefcalc/internal/ingest"
	"coefcalc/internal/shared/testutil"
	"coefcalc/pkg/contracts/domain"
)

func newTestService(t *testing.T, limits ingest.Limits, keyset string) *CalculationService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default().Calculation
	cfg.Keyset = keyset
	svc, err := NewCalculationService(ingest.NewGuard(limits, nil, logger), cfg, nil, logger)
	require.NoError(t, err)
	return svc
}

func defaultLimits() ingest.Limits {
	return ingest.Limits{
		MaxFileBytes:   1 << 20,
		MaxFiles:       5,
		MaxRowsPerFile: 1000,
		MaxTotalRows:   2000,
	}
}

func file(name string, family domain.FileFamily, rows ...testutil.Row) ingest.File {
	return ingest.File{Name: name, Family: family, Data: []byte(testutil.BuildCSV(rows...))}
}

func scenarioFiles() []ingest.File {
	return []ingest.File{
		file("demand_1.csv", domain.FamilyDemand,
			testutil.DemandRow("A", "1", "demand", "100"),
			testutil.DemandRow("A", "1", "osa", "0.9"),
			testutil.DemandRow("B", "2", "demand", "40"),
		),
		file("demand_2.csv", domain.FamilyDemand,
			testutil.DemandRow("A", "1", "demand", "50,0"),
			testutil.DemandRow("A", "1", "osa", "0.8"),
			testutil.DemandRow("A", "1", "unknown_measure", "5"),
		),
		file("swat.csv", domain.FamilySwat,
			testutil.SwatRow("A", "1", "100"),
			testutil.SwatRow("C", "3", "70"),
		),
	}
}

func byID(results []domain.ProductResult) map[string]domain.ProductResult {
	out := make(map[string]domain.ProductResult, len(results))
	for _, r := range results {
		out[r.ProductID] = r
	}
	return out
}

func TestCalculationService_Calculate_EndToEnd(t *testing.T) {
	svc := newTestService(t, defaultLimits(), "")

	type progress struct {
		stage   string
		percent int
	}
	var seen []progress
	reporter := ProgressFunc(func(_ context.Context, stage string, percent int, _ string) {
		seen = append(seen, progress{stage, percent})
	})

	res, err := svc.Calculate(context.Background(), scenarioFiles(), CalculationOptions{ID: "calc-1", Reporter: reporter})
	require.NoError(t, err)

	assert.Equal(t, "calc-1", res.ID)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "A1", res.Results[0].ProductID)
	assert.Equal(t, "B2", res.Results[1].ProductID)

	results := byID(res.Results)
	a := results["A1"]
	assert.Equal(t, int64(150), a.DemandSum)
	assert.Equal(t, int64(100), a.SwatSum)
	assert.InDelta(t, 85.0, a.OSAPercent, 1e-9)
	assert.Equal(t, 1.5, a.CoefficientRaw)
	assert.Equal(t, 1.5, a.CoefficientAdjusted)

	b := results["B2"]
	assert.Equal(t, int64(0), b.SwatSum)
	assert.Equal(t, 0.0, b.CoefficientRaw)
	assert.Equal(t, dataprocessing.CoefficientFloor, b.CoefficientAdjusted)

	assert.Equal(t, []progress{
		{StageDemand, 25}, {StageSwat, 50}, {StageMetrics, 75}, {StageCoefficients, 100},
	}, seen)

	s := res.Summary
	assert.Equal(t, "demand", s.Keyset)
	assert.Equal(t, 2, s.DemandFileCount)
	assert.Equal(t, 1, s.SwatFileCount)
	assert.Equal(t, 2, s.DemandProducts)
	assert.Equal(t, 2, s.SwatProducts)
	assert.Equal(t, 2, s.Products)
	require.Len(t, s.Files, 3)
	assert.Equal(t, "demand_1.csv", s.Files[0].Name)
	assert.Equal(t, 1, s.Files[1].RowsSkipped)
	assert.Empty(t, s.Warning)

	assert.Equal(t, 2, res.Statistics.Total)
	assert.Equal(t, 1, res.Statistics.AtFloor)
	assert.Equal(t, 1, res.Statistics.AtCeiling)
}

func TestCalculationService_Calculate_UnionKeyset(t *testing.T) {
	svc := newTestService(t, defaultLimits(), "demand")

	res, err := svc.Calculate(context.Background(), scenarioFiles(), CalculationOptions{Keyset: "union"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "union", res.Summary.Keyset)
	require.Len(t, res.Results, 3)
	c := res.Results[2]
	assert.Equal(t, "C3", c.ProductID)
	assert.Equal(t, int64(0), c.DemandSum)
	assert.Equal(t, int64(70), c.SwatSum)
	assert.Equal(t, dataprocessing.CoefficientFloor, c.CoefficientAdjusted)
}

func TestCalculationService_Calculate_RejectionsBecomeWarning(t *testing.T) {
	svc := newTestService(t, defaultLimits(), "")

	files := append(scenarioFiles(),
		ingest.File{Name: "notes.txt", Family: domain.FamilyDemand, Data: []byte("a;b\n1;2\n")},
	)
	res, err := svc.Calculate(context.Background(), files, CalculationOptions{})
	require.NoError(t, err)

	require.Len(t, res.Summary.Rejections, 1)
	assert.Contains(t, res.Summary.Warning, "notes.txt")
	assert.Equal(t, 2, res.Summary.Products)
}

func TestCalculationService_Calculate_Errors(t *testing.T) {
	tooMany := make([]testutil.Row, 0, 20)
	tooMany = append(tooMany, testutil.ManyRows(20)...)

	tests := []struct {
		name     string
		limits   ingest.Limits
		files    []ingest.File
		opts     CalculationOptions
		sentinel error
		errType  apperrors.ErrorType
	}{
		{
			name:     "no demand files",
			limits:   defaultLimits(),
			files:    []ingest.File{file("swat.csv", domain.FamilySwat, testutil.SwatRow("A", "1", "1"))},
			sentinel: ErrNoDemandFiles,
			errType:  apperrors.ErrTypeValidation,
		},
		{
			name:     "no swat files",
			limits:   defaultLimits(),
			files:    []ingest.File{file("demand.csv", domain.FamilyDemand, testutil.DemandRow("A", "1", "demand", "1"))},
			sentinel: ErrNoSwatFiles,
			errType:  apperrors.ErrTypeValidation,
		},
		{
			name:   "headerless demand yields no data",
			limits: defaultLimits(),
			files: []ingest.File{
				{Name: "empty.csv", Family: domain.FamilyDemand, Data: []byte{}},
				file("swat.csv", domain.FamilySwat, testutil.SwatRow("A", "1", "1")),
			},
			sentinel: ErrNoData,
			errType:  apperrors.ErrTypeNoData,
		},
		{
			name: "row estimate over per-file limit",
			limits: ingest.Limits{
				MaxFileBytes: 1 << 20, MaxFiles: 5, MaxRowsPerFile: 10, MaxTotalRows: 100,
			},
			files: []ingest.File{
				file("big.csv", domain.FamilyDemand, tooMany...),
				file("swat.csv", domain.FamilySwat, testutil.SwatRow("A", "1", "1")),
			},
			sentinel: ErrLimitExceeded,
			errType:  apperrors.ErrTypeLimit,
		},
		{
			name:     "unknown keyset",
			limits:   defaultLimits(),
			files:    scenarioFiles(),
			opts:     CalculationOptions{Keyset: "everything"},
			errType:  apperrors.ErrTypeValidation,
			sentinel: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.limits, "")
			reported := false
			tt.opts.Reporter = ProgressFunc(func(context.Context, string, int, string) { reported = true })

			res, err := svc.Calculate(context.Background(), tt.files, tt.opts)
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			}
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
			if tt.errType == apperrors.ErrTypeLimit {
				assert.False(t, reported, "no stage may run after a limit violation")
			}
		})
	}
}

func TestCalculationService_Calculate_Canceled(t *testing.T) {
	svc := newTestService(t, defaultLimits(), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Calculate(ctx, scenarioFiles(), CalculationOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCalculationService_InvalidKeyset(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default().Calculation
	cfg.Keyset = "bogus"

	_, err := NewCalculationService(ingest.NewGuard(defaultLimits(), nil, logger), cfg, nil, logger)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeConfig, apperrors.TypeOf(err))

	_, err = NewCalculationService(nil, config.Default().Calculation, nil, logger)
	assert.Error(t, err)
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "canceled"},
		{apperrors.NewLimitError("x", ErrLimitExceeded), "limit"},
		{apperrors.NewNoDataError("x", ErrNoData), "no_data"},
		{apperrors.NewAppValidationError("x"), "invalid"},
		{apperrors.NewParsingError("x", nil), "parse_error"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outcomeOf(tt.err), tt.err.Error())
	}
}

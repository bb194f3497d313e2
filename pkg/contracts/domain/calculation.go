package domain

import "time"

// CoefficientStats summarizes the distribution of adjusted coefficients and
// the column totals of a result set.
type CoefficientStats struct {
	Total              int     `json:"total"`
	AtParity           int     `json:"at_parity"`
	AtFloor            int     `json:"at_floor"`
	AtCeiling          int     `json:"at_ceiling"`
	Other              int     `json:"other"`
	ParityPercent      float64 `json:"parity_percent"`
	FloorPercent       float64 `json:"floor_percent"`
	CeilingPercent     float64 `json:"ceiling_percent"`
	OtherPercent       float64 `json:"other_percent"`
	SalesTotal         int64   `json:"sales_total"`
	DemandTotal        int64   `json:"demand_total"`
	PredictionTotal    int64   `json:"prediction_total"`
	SwatTotal          int64   `json:"swat_total"`
	DifferenceTotal    int64   `json:"difference_total"`
	AverageBiasPercent float64 `json:"average_bias_percent"`
}

// FileRejection describes an input file refused at ingestion.
type FileRejection struct {
	Name   string     `json:"name"`
	Family FileFamily `json:"family"`
	Reason string     `json:"reason"`
}

// FileParseSummary describes how the rows of one accepted file were used.
type FileParseSummary struct {
	Name         string     `json:"name"`
	Family       FileFamily `json:"family"`
	Bytes        int64      `json:"bytes"`
	RowsRead     int        `json:"rows_read"`
	RowsAccepted int        `json:"rows_accepted"`
	RowsSkipped  int        `json:"rows_skipped"`
	ValueColumn  string     `json:"value_column"`
	MeasuresSeen []string   `json:"measures_seen,omitempty"`
}

// CalculationSummary describes one pipeline run.
type CalculationSummary struct {
	Keyset          string             `json:"keyset"`
	DemandFileCount int                `json:"demand_file_count"`
	SwatFileCount   int                `json:"swat_file_count"`
	Files           []FileParseSummary `json:"files"`
	Rejections      []FileRejection    `json:"rejections,omitempty"`
	Warning         string             `json:"warning,omitempty"`
	DemandProducts  int                `json:"demand_products"`
	SwatProducts    int                `json:"swat_products"`
	Products        int                `json:"products"`
	Duration        time.Duration      `json:"duration"`
}

// CalculationResult is the immutable output of a calculation, consumed by
// previews and exports.
type CalculationResult struct {
	ID          string             `json:"id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Results     []ProductResult    `json:"results"`
	Statistics  CoefficientStats   `json:"statistics"`
	Summary     CalculationSummary `json:"summary"`
}

package http

import (
	"time"

	"coefcalc/internal/dataprocessing"
	"coefcalc/pkg/contracts/domain"
)

// PreviewRow is one result row with its display hints
type PreviewRow struct {
	domain.ProductResult
	RawClass        string `json:"raw_class,omitempty"`
	AdjustedClass   string `json:"adjusted_class,omitempty"`
	DifferenceClass string `json:"difference_class"`
	// Marker is "*" for a parity snap and "**" for a floor or ceiling clamp
	Marker string `json:"marker,omitempty"`
}

// Preview is a window over a calculation result
type Preview struct {
	ID          string                    `json:"id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Summary     domain.CalculationSummary `json:"summary"`
	Statistics  domain.CoefficientStats   `json:"statistics"`
	Offset      int                       `json:"offset"`
	Limit       int                       `json:"limit"`
	Total       int                       `json:"total"`
	// Remaining counts rows after this window
	Remaining int          `json:"remaining"`
	Rows      []PreviewRow `json:"rows"`
}

// BuildPreview returns rows [offset, offset+limit) of res. sorted orders
// the rows by product identifier first.
func BuildPreview(res *domain.CalculationResult, offset, limit int, sorted bool) Preview {
	results := res.Results
	if sorted {
		results = dataprocessing.SortByProductID(results)
	}

	total := len(results)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit >= 0 && offset+limit < total {
		end = offset + limit
	}

	rows := make([]PreviewRow, 0, end-offset)
	for _, r := range results[offset:end] {
		rows = append(rows, previewRow(r))
	}

	return Preview{
		ID:          res.ID,
		GeneratedAt: res.GeneratedAt,
		Summary:     res.Summary,
		Statistics:  res.Statistics,
		Offset:      offset,
		Limit:       limit,
		Total:       total,
		Remaining:   total - end,
		Rows:        rows,
	}
}

func previewRow(r domain.ProductResult) PreviewRow {
	row := PreviewRow{
		ProductResult:   r,
		RawClass:        dataprocessing.CoefficientClass(r.CoefficientRaw, true),
		AdjustedClass:   dataprocessing.CoefficientClass(r.CoefficientAdjusted, false),
		DifferenceClass: "neutral",
	}
	switch {
	case r.Difference > 0:
		row.DifferenceClass = "positive"
	case r.Difference < 0:
		row.DifferenceClass = "negative"
	}
	switch r.AdjustmentType {
	case domain.AdjustmentParity:
		row.Marker = "*"
	case domain.AdjustmentFloor, domain.AdjustmentCeiling:
		row.Marker = "**"
	}
	return row
}

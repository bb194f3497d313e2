package dataprocessing

import (
	"fmt"
	"math"
	"strings"

	"coefcalc/pkg/contracts/domain"
)

// Adjustment bands.
const (
	CoefficientFloor   = 0.80
	CoefficientCeiling = 1.50
	CoefficientParity  = 1.00
	ParityLow          = 0.96
	ParityHigh         = 1.04
)

// KeysetPolicy selects which products produce a result record.
type KeysetPolicy string

const (
	// KeysetDemand emits one result per product of the demand aggregation.
	KeysetDemand KeysetPolicy = "demand"
	// KeysetUnion also emits results for products only present in SWAT
	// data, with zeroed demand metrics.
	KeysetUnion KeysetPolicy = "union"
)

// ParseKeysetPolicy accepts "demand", "union" or "" (demand).
func ParseKeysetPolicy(s string) (KeysetPolicy, error) {
	switch KeysetPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeysetDemand:
		return KeysetDemand, nil
	case KeysetUnion:
		return KeysetUnion, nil
	default:
		return "", fmt.Errorf("unknown keyset policy %q", s)
	}
}

// Adjust applies the adjustment policy to a raw coefficient. The first
// matching band wins: non-finite values go to the floor, [0.96, 1.04]
// snaps to parity, values under 0.80 rise to the floor and values over 1.50
// drop to the ceiling. Anything else passes through.
func Adjust(raw float64) (float64, domain.AdjustmentType) {
	switch {
	case math.IsNaN(raw) || math.IsInf(raw, 0):
		return CoefficientFloor, domain.AdjustmentFloor
	case raw >= ParityLow && raw <= ParityHigh:
		return CoefficientParity, adjustmentFor(raw, CoefficientParity, domain.AdjustmentParity)
	case raw < CoefficientFloor:
		return CoefficientFloor, domain.AdjustmentFloor
	case raw > CoefficientCeiling:
		return CoefficientCeiling, domain.AdjustmentCeiling
	default:
		return raw, domain.AdjustmentNone
	}
}

func adjustmentFor(raw, adjusted float64, t domain.AdjustmentType) domain.AdjustmentType {
	if raw == adjusted {
		return domain.AdjustmentNone
	}
	return t
}

// CoefficientFor returns the exact demand/SWAT ratio and its two-decimal
// half-up rounding. Either side being zero yields 0 for both.
func CoefficientFor(demand int64, swat float64) (exact, raw float64) {
	if demand == 0 || swat == 0 || math.IsNaN(swat) || math.IsInf(swat, 0) {
		return 0, 0
	}
	exact = float64(demand) / swat
	raw = RoundedQuotient(float64(demand), swat, 1, 2)
	return exact, raw
}

// RoundAndAdjust rounds an exact coefficient to two decimals and adjusts it.
func RoundAndAdjust(exact float64) (raw, adjusted float64, t domain.AdjustmentType) {
	raw = exact
	if !math.IsNaN(exact) && !math.IsInf(exact, 0) {
		raw = RoundHalfUp(exact, 2)
	}
	adjusted, t = Adjust(raw)
	return raw, adjusted, t
}

// ResultFor joins one metric record with its SWAT value.
func ResultFor(m domain.ProductMetrics, swat float64) domain.ProductResult {
	exact, raw := CoefficientFor(m.DemandSum, swat)
	adjusted, t := Adjust(raw)
	return domain.ProductResult{
		ProductMetrics:      m,
		SwatSum:             RoundInt(swat),
		ExactCoefficient:    exact,
		CoefficientRaw:      raw,
		CoefficientAdjusted: adjusted,
		AdjustmentType:      t,
	}
}

// CalculateCoefficients joins metric records with the SWAT aggregation.
// Products missing from SWAT data get a SWAT value of 0. Under KeysetUnion,
// SWAT-only products follow the demand products in first-seen order.
func CalculateCoefficients(metrics []domain.ProductMetrics, swat []domain.SwatAggregate, policy KeysetPolicy) []domain.ProductResult {
	index := SwatIndex(swat)
	results := make([]domain.ProductResult, 0, len(metrics))
	present := make(map[string]struct{}, len(metrics))

	for _, m := range metrics {
		present[m.ProductID] = struct{}{}
		results = append(results, ResultFor(m, index[m.ProductID]))
	}

	if policy != KeysetUnion {
		return results
	}

	for _, s := range swat {
		if _, ok := present[s.ProductID]; ok {
			continue
		}
		present[s.ProductID] = struct{}{}
		m := domain.ProductMetrics{
			ProductID: s.ProductID,
			Level1:    s.Descriptors.Level1,
			Level2:    s.Descriptors.Level2,
			Level3:    s.Descriptors.Level3,
			Level4:    s.Descriptors.Level4,
		}
		results = append(results, ResultFor(m, index[s.ProductID]))
	}
	return results
}

// CoefficientClass returns the display class of a coefficient cell. raw
// selects the rule for the raw column, where the whole parity band counts.
func CoefficientClass(value float64, raw bool) string {
	switch {
	case value <= CoefficientFloor:
		return "coef-08"
	case value >= CoefficientCeiling:
		return "coef-15"
	case raw && value >= ParityLow && value <= ParityHigh:
		return "coef-1"
	case !raw && value == CoefficientParity:
		return "coef-1"
	default:
		return ""
	}
}

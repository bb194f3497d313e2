package dataprocessing

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"coefcalc/pkg/contracts/domain"
)

// ComputeStatistics counts results per adjusted band and totals the integer
// columns. Percentages carry one decimal, the average bias three.
func ComputeStatistics(results []domain.ProductResult) domain.CoefficientStats {
	stats := domain.CoefficientStats{Total: len(results)}
	var biasSum float64

	for _, r := range results {
		switch r.CoefficientAdjusted {
		case CoefficientParity:
			stats.AtParity++
		case CoefficientFloor:
			stats.AtFloor++
		case CoefficientCeiling:
			stats.AtCeiling++
		}
		stats.SalesTotal += r.SalesSum
		stats.DemandTotal += r.DemandSum
		stats.PredictionTotal += r.PredictionFinalSum
		stats.SwatTotal += r.SwatSum
		stats.DifferenceTotal += r.Difference
		biasSum += r.BiasPercent
	}
	stats.Other = stats.Total - stats.AtParity - stats.AtFloor - stats.AtCeiling

	if stats.Total == 0 {
		return stats
	}
	total := float64(stats.Total)
	stats.ParityPercent = RoundedQuotient(float64(stats.AtParity), total, 100, 1)
	stats.FloorPercent = RoundedQuotient(float64(stats.AtFloor), total, 100, 1)
	stats.CeilingPercent = RoundedQuotient(float64(stats.AtCeiling), total, 100, 1)
	stats.OtherPercent = RoundedQuotient(float64(stats.Other), total, 100, 1)
	stats.AverageBiasPercent = RoundedQuotient(biasSum, total, 1, 3)
	return stats
}

// SortByProductID orders results by product identifier using Unicode
// collation, so Cyrillic and Latin identifiers sort the way users expect.
// The input slice is left untouched.
func SortByProductID(results []domain.ProductResult) []domain.ProductResult {
	sorted := make([]domain.ProductResult, len(results))
	copy(sorted, results)

	c := collate.New(language.Und)
	sort.SliceStable(sorted, func(i, j int) bool {
		return c.CompareString(sorted[i].ProductID, sorted[j].ProductID) < 0
	})
	return sorted
}

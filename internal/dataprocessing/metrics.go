package dataprocessing

import "coefcalc/pkg/contracts/domain"

// MetricsFor derives the rounded metric record of one demand aggregate.
// Sums round half-up to integers; bias is the difference over demand as a
// percentage, and the averaged fractions are scaled to percentages, all
// with three decimals.
func MetricsFor(a domain.DemandAggregate) domain.ProductMetrics {
	demand := RoundInt(a.Demand)
	prediction := RoundInt(a.PredictionFinal)
	diff := prediction - demand

	var bias float64
	if demand != 0 {
		bias = RoundedQuotient(float64(diff), float64(demand), 100, 3)
	}

	return domain.ProductMetrics{
		ProductID:          a.ProductID,
		Level1:             a.Descriptors.Level1,
		Level2:             a.Descriptors.Level2,
		Level3:             a.Descriptors.Level3,
		Level4:             a.Descriptors.Level4,
		SalesSum:           RoundInt(a.Sales),
		DemandSum:          demand,
		PredictionFinalSum: prediction,
		Difference:         diff,
		BiasPercent:        bias,
		OSAPercent:         ScaledRound(a.OSA, 100, 3),
		WriteoffsPercent:   ScaledRound(a.WriteoffsPerc, 100, 3),
		AccuracyFinal:      ScaledRound(a.AccuracyFinal, 100, 3),
	}
}

// CalculateMetrics maps every aggregate to its metric record, preserving
// order.
func CalculateMetrics(aggs []domain.DemandAggregate) []domain.ProductMetrics {
	out := make([]domain.ProductMetrics, len(aggs))
	for i, a := range aggs {
		out[i] = MetricsFor(a)
	}
	return out
}

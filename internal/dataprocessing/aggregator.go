package dataprocessing

import "coefcalc/pkg/contracts/domain"

type meanAccumulator struct {
	sum   float64
	count int
}

func (m *meanAccumulator) add(v float64) {
	m.sum += v
	m.count++
}

func (m meanAccumulator) mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

type demandGroup struct {
	agg                            domain.DemandAggregate
	osa, writeoffs, bias, accuracy meanAccumulator
}

// AggregateDemand reduces demand-side observations per product. Summed
// measures accumulate across all batches; averaged measures are the mean of
// every contributing row, or 0 without any. Products keep the order in
// which they were first seen, with the descriptors of that first row.
func AggregateDemand(batches ...[]domain.Observation) []domain.DemandAggregate {
	groups := make(map[string]*demandGroup)
	var order []string

	for _, batch := range batches {
		for _, o := range batch {
			if !o.Kind.DemandSide() || o.ProductID == "" {
				continue
			}
			g, ok := groups[o.ProductID]
			if !ok {
				g = &demandGroup{agg: domain.DemandAggregate{
					ProductID:   o.ProductID,
					Descriptors: o.Descriptors,
				}}
				groups[o.ProductID] = g
				order = append(order, o.ProductID)
			}

			switch o.Kind {
			case domain.MeasureDemand:
				g.agg.Demand += o.Value
			case domain.MeasureSales:
				g.agg.Sales += o.Value
			case domain.MeasurePredictionFinal:
				g.agg.PredictionFinal += o.Value
			case domain.MeasureOSA:
				g.osa.add(o.Value)
			case domain.MeasureWriteoffsPerc:
				g.writeoffs.add(o.Value)
			case domain.MeasureBias:
				g.bias.add(o.Value)
			case domain.MeasureAccuracyFinal:
				g.accuracy.add(o.Value)
			}
		}
	}

	out := make([]domain.DemandAggregate, 0, len(order))
	for _, id := range order {
		g := groups[id]
		g.agg.OSA = g.osa.mean()
		g.agg.WriteoffsPerc = g.writeoffs.mean()
		g.agg.Bias = g.bias.mean()
		g.agg.AccuracyFinal = g.accuracy.mean()
		out = append(out, g.agg)
	}
	return out
}

// AggregateSwat sums prediction_swat observations per product, in first-seen
// order. Other kinds are ignored.
func AggregateSwat(batches ...[]domain.Observation) []domain.SwatAggregate {
	index := make(map[string]int)
	out := []domain.SwatAggregate{}

	for _, batch := range batches {
		for _, o := range batch {
			if o.Kind != domain.MeasurePredictionSwat || o.ProductID == "" {
				continue
			}
			i, ok := index[o.ProductID]
			if !ok {
				i = len(out)
				index[o.ProductID] = i
				out = append(out, domain.SwatAggregate{
					ProductID:   o.ProductID,
					Descriptors: o.Descriptors,
				})
			}
			out[i].SwatSum += o.Value
		}
	}
	return out
}

// SwatIndex maps product identifiers to their summed SWAT value.
func SwatIndex(aggs []domain.SwatAggregate) map[string]float64 {
	m := make(map[string]float64, len(aggs))
	for _, a := range aggs {
		m[a.ProductID] += a.SwatSum
	}
	return m
}

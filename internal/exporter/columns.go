package exporter

import "coefcalc/pkg/contracts/domain"

// column is one output column of the coefficient table
type column struct {
	Header  string
	Width   float64
	Percent bool
	Value   func(r domain.ProductResult) any
}

var resultColumns = []column{
	{Header: "Product ID", Width: 20, Value: func(r domain.ProductResult) any { return r.ProductID }},
	{Header: "Level 1", Width: 15, Value: func(r domain.ProductResult) any { return r.Level1 }},
	{Header: "Level 2", Width: 25, Value: func(r domain.ProductResult) any { return r.Level2 }},
	{Header: "Level 3", Width: 40, Value: func(r domain.ProductResult) any { return r.Level3 }},
	{Header: "Level 4", Width: 12, Value: func(r domain.ProductResult) any { return r.Level4 }},
	{Header: "Sales", Width: 10, Value: func(r domain.ProductResult) any { return r.SalesSum }},
	{Header: "Demand", Width: 10, Value: func(r domain.ProductResult) any { return r.DemandSum }},
	{Header: "Prediction Final", Width: 15, Value: func(r domain.ProductResult) any { return r.PredictionFinalSum }},
	{Header: "SWAT", Width: 10, Value: func(r domain.ProductResult) any { return r.SwatSum }},
	{Header: "Difference", Width: 12, Value: func(r domain.ProductResult) any { return r.Difference }},
	{Header: "Bias %", Width: 10, Percent: true, Value: func(r domain.ProductResult) any { return r.BiasPercent }},
	{Header: "Coefficient (raw)", Width: 15, Value: func(r domain.ProductResult) any { return r.CoefficientRaw }},
	{Header: "Coefficient (adjusted)", Width: 15, Value: func(r domain.ProductResult) any { return r.CoefficientAdjusted }},
	{Header: "OSA %", Width: 10, Percent: true, Value: func(r domain.ProductResult) any { return r.OSAPercent }},
	{Header: "Writeoffs %", Width: 12, Percent: true, Value: func(r domain.ProductResult) any { return r.WriteoffsPercent }},
	{Header: "Accuracy (final) %", Width: 15, Percent: true, Value: func(r domain.ProductResult) any { return r.AccuracyFinal }},
}

// Headers returns the coefficient table headers in output order
func Headers() []string {
	out := make([]string, len(resultColumns))
	for i, c := range resultColumns {
		out[i] = c.Header
	}
	return out
}

// Package dataprocessing implements the coefficient pipeline: reading the
// semicolon-delimited demand and SWAT exports, classifying and aggregating
// their rows per product, deriving the per-product metrics and computing the
// bounded adjustment coefficient.
//
// # Architecture
//
// The package is organized as a chain of pure stages:
//
// 1. Reader: ReadTable splits file text into headers and positional rows
// 2. Classifier: ClassifyTable resolves header aliases once per file and turns
// rows into typed observations
// 3. Aggregator: AggregateDemand and AggregateSwat reduce observations per
// product identifier
// 4. Metrics: CalculateMetrics derives rounded sums and percentages
// 5. Coefficients: CalculateCoefficients joins metrics with SWAT sums and
// applies the adjustment policy
//
// # Usage
//
//	table, err := dataprocessing.ReadTable(file, dataprocessing.ReaderOptions{})
//	if err != nil {
//	    return err
//	}
//	obs, summary := dataprocessing.ClassifyTable(name, domain.FamilyDemand, table)
//	metrics := dataprocessing.CalculateMetrics(dataprocessing.AggregateDemand(obs))
//	results := dataprocessing.CalculateCoefficients(metrics, swat, dataprocessing.KeysetDemand)
//
// # Data Flow
//
//	CSV text → Table → Observations → Aggregates → ProductMetrics → ProductResults
//
// # Rounding
//
// Every rounding step is decimal half-up (half away from zero), evaluated on
// the shortest decimal representation of the float operands, so 0.955 rounds
// to 0.96 rather than to the binary neighbour 0.95.
//
// # Error Handling
//
// Only ReadTable returns errors, for I/O failures and the row cap. Malformed
// rows, unknown measures and missing identifiers are skipped and counted in
// the file summary. No stage keeps state between calls.
package dataprocessing

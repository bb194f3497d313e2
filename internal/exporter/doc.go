// Package exporter writes calculation results to downloadable reports.
//
// WorkbookWriter produces the XLSX report with three sheets: the per-product
// coefficients and metrics, the coefficient distribution, and run
// information. CSVWriter produces a semicolon-delimited export of the same
// rows for tools that cannot read workbooks.
//
// Every text cell passes through security.NeutralizeFormula before it is
// written, so identifiers such as "=HYPERLINK(...)" stay inert.
//
// Example usage:
//
//	w := exporter.NewWorkbookWriter(paths, logger)
//	path, err := w.Save(ctx, result)
package exporter

package exporter

import (
	"strconv"
	"time"

	"coefcalc/internal/config"
)

// formatCoefficient renders a coefficient with two decimals
func formatCoefficient(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// formatPercent renders a percentage value with three decimals
func formatPercent(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// ReportFilename returns coefficients_report_<date>.xlsx for t
func ReportFilename(t time.Time) string {
	return config.ReportFilePrefix + t.Format(config.ReportDateLayout) + ".xlsx"
}

// CSVFilename returns coefficients_report_<date>.csv for t
func CSVFilename(t time.Time) string {
	return config.ReportFilePrefix + t.Format(config.ReportDateLayout) + ".csv"
}

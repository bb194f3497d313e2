package dataprocessing

import (
	"strings"
	"unicode"

	"coefcalc/pkg/contracts/domain"
)

var measureNames = map[string]domain.MeasureKind{
	"demand":           domain.MeasureDemand,
	"sales":            domain.MeasureSales,
	"prediction_final": domain.MeasurePredictionFinal,
	"osa":              domain.MeasureOSA,
	"writeoffs_perc":   domain.MeasureWriteoffsPerc,
	"bias":             domain.MeasureBias,
	"accuracy(final)":  domain.MeasureAccuracyFinal,
	"accuracy_final":   domain.MeasureAccuracyFinal,
	"prediction_swat":  domain.MeasurePredictionSwat,
}

// ParseMeasureKind maps a "Measure Names" value to its kind, ignoring case
// and whitespace.
func ParseMeasureKind(raw string) (domain.MeasureKind, bool) {
	key := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, raw)
	kind, ok := measureNames[key]
	return kind, ok
}

// acceptsMeasure reports whether rows of kind are kept for the family.
func acceptsMeasure(family domain.FileFamily, kind domain.MeasureKind) bool {
	if family == domain.FamilySwat {
		return kind == domain.MeasurePredictionSwat
	}
	return kind.DemandSide()
}

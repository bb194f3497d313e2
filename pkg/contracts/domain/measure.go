package domain

// MeasureKind identifies the semantic category of an input row, as tagged by
// the "Measure Names" column.
type MeasureKind string

const (
	MeasureDemand          MeasureKind = "demand"
	MeasureSales           MeasureKind = "sales"
	MeasurePredictionFinal MeasureKind = "prediction_final"
	MeasureOSA             MeasureKind = "osa"
	MeasureWriteoffsPerc   MeasureKind = "writeoffs_perc"
	MeasureBias            MeasureKind = "bias"
	MeasureAccuracyFinal   MeasureKind = "accuracy_final"
	MeasurePredictionSwat  MeasureKind = "prediction_swat"
)

// Summed reports whether the measure is reduced by summation. Every other
// measure is reduced by arithmetic mean.
func (k MeasureKind) Summed() bool {
	switch k {
	case MeasureDemand, MeasureSales, MeasurePredictionFinal, MeasurePredictionSwat:
		return true
	default:
		return false
	}
}

// DemandSide reports whether the measure is accepted from demand files.
func (k MeasureKind) DemandSide() bool {
	switch k {
	case MeasureDemand, MeasureSales, MeasurePredictionFinal,
		MeasureOSA, MeasureWriteoffsPerc, MeasureBias, MeasureAccuracyFinal:
		return true
	default:
		return false
	}
}

// FileFamily distinguishes the two kinds of uploaded exports.
type FileFamily string

const (
	FamilyDemand FileFamily = "demand"
	FamilySwat   FileFamily = "swat"
)

// Valid reports whether f names a known family.
func (f FileFamily) Valid() bool {
	return f == FamilyDemand || f == FamilySwat
}

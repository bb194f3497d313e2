package domain

// RawRecord maps trimmed header names to the raw cell values of one data row.
type RawRecord map[string]string

// Descriptors are the categorical hierarchy fields carried with a product.
// They hold the first values seen for the product identifier.
type Descriptors struct {
	Level1 string `json:"level1"`
	Level2 string `json:"level2"`
	Level3 string `json:"level3"`
	Level4 string `json:"level4"`
}

// Observation is one classified input row: a product, a measure and the
// normalized numeric value of that row.
type Observation struct {
	ProductID   string
	Kind        MeasureKind
	Value       float64
	Descriptors Descriptors
}

// DemandAggregate holds the reduced demand-side measures of one product.
// Demand, Sales and PredictionFinal are sums; the rest are means expressed
// as fractions.
type DemandAggregate struct {
	ProductID       string      `json:"product_id"`
	Descriptors     Descriptors `json:"descriptors"`
	Demand          float64     `json:"demand"`
	Sales           float64     `json:"sales"`
	PredictionFinal float64     `json:"prediction_final"`
	OSA             float64     `json:"osa"`
	WriteoffsPerc   float64     `json:"writeoffs_perc"`
	Bias            float64     `json:"bias"`
	AccuracyFinal   float64     `json:"accuracy_final"`
}

// SwatAggregate holds the summed prediction_swat value of one product.
type SwatAggregate struct {
	ProductID   string      `json:"product_id"`
	Descriptors Descriptors `json:"descriptors"`
	SwatSum     float64     `json:"swat_sum"`
}

// ProductMetrics is the per-product metric record derived from a
// DemandAggregate. Percentages carry three decimal places.
type ProductMetrics struct {
	ProductID          string  `json:"product_id"`
	Level1             string  `json:"level1"`
	Level2             string  `json:"level2"`
	Level3             string  `json:"level3"`
	Level4             string  `json:"level4"`
	SalesSum           int64   `json:"sales_sum"`
	DemandSum          int64   `json:"demand_sum"`
	PredictionFinalSum int64   `json:"prediction_final_sum"`
	Difference         int64   `json:"difference"`
	BiasPercent        float64 `json:"bias_percent"`
	OSAPercent         float64 `json:"osa_percent"`
	WriteoffsPercent   float64 `json:"writeoffs_percent"`
	AccuracyFinal      float64 `json:"accuracy_final"`
}

// AdjustmentType records which band of the adjustment policy produced the
// adjusted coefficient.
type AdjustmentType string

const (
	AdjustmentNone    AdjustmentType = "none"
	AdjustmentParity  AdjustmentType = "parity"
	AdjustmentFloor   AdjustmentType = "floor"
	AdjustmentCeiling AdjustmentType = "ceiling"
)

// ProductResult is the final per-product record.
type ProductResult struct {
	ProductMetrics
	SwatSum             int64          `json:"swat_sum"`
	ExactCoefficient    float64        `json:"exact_coefficient"`
	CoefficientRaw      float64        `json:"coefficient_raw"`
	CoefficientAdjusted float64        `json:"coefficient_adjusted"`
	AdjustmentType      AdjustmentType `json:"adjustment_type"`
}

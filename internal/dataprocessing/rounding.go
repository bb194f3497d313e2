package dataprocessing

import (
	"math"

	"github.com/cockroachdb/apd/v3"
)

const decimalPrecision = 34

func decimalContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(decimalPrecision)
	ctx.Rounding = apd.RoundHalfUp
	return ctx
}

// RoundHalfUp rounds x to the given number of decimal places with halves
// going toward positive infinity, so -2.5 rounds to -2 and 2.5 to 3. NaN and
// infinities are returned unchanged.
func RoundHalfUp(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}

	var d apd.Decimal
	if _, err := d.SetFloat64(x); err != nil {
		return floatRound(x, places)
	}
	return quantize(&d, places, x)
}

// RoundInt rounds x half-up to the nearest integer, saturating at the int64
// range. NaN rounds to 0.
func RoundInt(x float64) int64 {
	if math.IsNaN(x) {
		return 0
	}
	r := RoundHalfUp(x, 0)
	switch {
	case r >= math.MaxInt64:
		return math.MaxInt64
	case r <= math.MinInt64:
		return math.MinInt64
	}
	return int64(r)
}

// RoundedQuotient returns num/den*scale rounded half-up to places, computed
// in decimal arithmetic. A zero denominator yields 0.
func RoundedQuotient(num, den float64, scale int64, places int32) float64 {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) || math.IsInf(num, 0) || math.IsInf(den, 0) {
		return 0
	}

	var n, d apd.Decimal
	if _, err := n.SetFloat64(num); err != nil {
		return floatRound(num/den*float64(scale), places)
	}
	if _, err := d.SetFloat64(den); err != nil {
		return floatRound(num/den*float64(scale), places)
	}

	ctx := decimalContext()
	var q apd.Decimal
	if _, err := ctx.Quo(&q, &n, &d); err != nil {
		return floatRound(num/den*float64(scale), places)
	}
	if scale != 1 {
		if _, err := ctx.Mul(&q, &q, apd.New(scale, 0)); err != nil {
			return floatRound(num/den*float64(scale), places)
		}
	}
	return quantize(&q, places, num/den*float64(scale))
}

// ScaledRound returns x*scale rounded half-up to places, with the scaling
// done in decimal arithmetic.
func ScaledRound(x float64, scale int64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}

	var d apd.Decimal
	if _, err := d.SetFloat64(x); err != nil {
		return floatRound(x*float64(scale), places)
	}

	ctx := decimalContext()
	if _, err := ctx.Mul(&d, &d, apd.New(scale, 0)); err != nil {
		return floatRound(x*float64(scale), places)
	}
	return quantize(&d, places, x*float64(scale))
}

func quantize(d *apd.Decimal, places int32, fallback float64) float64 {
	ctx := decimalContext()
	if d.Negative {
		// toward zero is toward +inf for negatives
		ctx.Rounding = apd.RoundHalfDown
	}
	var out apd.Decimal
	if _, err := ctx.Quantize(&out, d, -places); err != nil {
		return floatRound(fallback, places)
	}
	f, err := out.Float64()
	if err != nil {
		return floatRound(fallback, places)
	}
	if f == 0 {
		return 0
	}
	return f
}

// floatRound is used when a value exceeds the decimal context precision.
// At that magnitude the places are beyond float64 resolution anyway.
func floatRound(x float64, places int32) float64 {
	p := math.Pow(10, float64(places))
	r := math.Floor(x*p+0.5) / p
	if r == 0 {
		return 0
	}
	return r
}

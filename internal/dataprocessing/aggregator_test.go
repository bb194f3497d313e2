package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coefcalc/pkg/contracts/domain"
)

func obs(id string, kind domain.MeasureKind, v float64) domain.Observation {
	return domain.Observation{
		ProductID:   id,
		Kind:        kind,
		Value:       v,
		Descriptors: domain.Descriptors{Level1: id[:1], Level4: id[1:]},
	}
}

func TestAggregateDemand_Scenario(t *testing.T) {
	batch := []domain.Observation{
		obs("A1", domain.MeasureDemand, ParseNumber("100")),
		obs("A1", domain.MeasureDemand, ParseNumber("50,0")),
		obs("A1", domain.MeasureOSA, ParseNumber("0.9")),
		obs("A1", domain.MeasureOSA, ParseNumber("0,8")),
	}

	aggs := AggregateDemand(batch)
	require.Len(t, aggs, 1)
	assert.Equal(t, 150.0, aggs[0].Demand)
	assert.InDelta(t, 0.85, aggs[0].OSA, 1e-12)

	m := MetricsFor(aggs[0])
	assert.Equal(t, int64(150), m.DemandSum)
	assert.Equal(t, 85.0, m.OSAPercent)
}

func TestAggregateDemand_AcrossBatches(t *testing.T) {
	first := []domain.Observation{
		obs("B2", domain.MeasureSales, 10),
		obs("A1", domain.MeasureBias, 0.2),
	}
	second := []domain.Observation{
		obs("A1", domain.MeasureBias, 0.4),
		obs("B2", domain.MeasureSales, 5),
		obs("B2", domain.MeasurePredictionSwat, 1000),
	}

	aggs := AggregateDemand(first, second)
	require.Len(t, aggs, 2)
	assert.Equal(t, "B2", aggs[0].ProductID)
	assert.Equal(t, 15.0, aggs[0].Sales)
	assert.Zero(t, aggs[0].OSA)
	assert.Equal(t, "A1", aggs[1].ProductID)
	assert.InDelta(t, 0.3, aggs[1].Bias, 1e-12)
}

func TestAggregateDemand_FirstDescriptorsWin(t *testing.T) {
	a := obs("A1", domain.MeasureDemand, 1)
	a.Descriptors.Level2 = "first"
	b := obs("A1", domain.MeasureDemand, 1)
	b.Descriptors.Level2 = "second"

	aggs := AggregateDemand([]domain.Observation{a, b})
	require.Len(t, aggs, 1)
	assert.Equal(t, "first", aggs[0].Descriptors.Level2)
}

func TestAggregateSwat(t *testing.T) {
	aggs := AggregateSwat(
		[]domain.Observation{obs("A1", domain.MeasurePredictionSwat, 60), obs("A1", domain.MeasureDemand, 5)},
		[]domain.Observation{obs("C3", domain.MeasurePredictionSwat, 7), obs("A1", domain.MeasurePredictionSwat, 40)},
	)

	require.Len(t, aggs, 2)
	assert.Equal(t, "A1", aggs[0].ProductID)
	assert.Equal(t, 100.0, aggs[0].SwatSum)
	assert.Equal(t, "C3", aggs[1].ProductID)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, AggregateDemand())
	assert.Empty(t, AggregateSwat(nil))
}

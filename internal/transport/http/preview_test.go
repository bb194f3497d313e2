package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPreview_Window(t *testing.T) {
	res := sampleResult()

	tests := []struct {
		name          string
		offset, limit int
		sorted        bool
		wantIDs       []string
		wantRemaining int
	}{
		{"first page", 0, 2, false, []string{"B2", "A1"}, 1},
		{"everything", 0, 50, false, []string{"B2", "A1", "C3"}, 0},
		{"offset past end", 10, 5, false, []string{}, 0},
		{"negative offset", -3, 1, false, []string{"B2"}, 2},
		{"sorted", 0, 2, true, []string{"A1", "B2"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BuildPreview(res, tt.offset, tt.limit, tt.sorted)
			ids := make([]string, 0, len(p.Rows))
			for _, r := range p.Rows {
				ids = append(ids, r.ProductID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantRemaining, p.Remaining)
			assert.Equal(t, 3, p.Total)
		})
	}

	assert.Equal(t, "B2", res.Results[0].ProductID, "sorting must not reorder the stored result")
}

func TestBuildPreview_DisplayHints(t *testing.T) {
	p := BuildPreview(sampleResult(), 0, 3, false)
	require.Len(t, p.Rows, 3)

	ceiling, floor, parity := p.Rows[0], p.Rows[1], p.Rows[2]

	assert.Equal(t, "**", ceiling.Marker)
	assert.Equal(t, "coef-15", ceiling.AdjustedClass)
	assert.Equal(t, "negative", ceiling.DifferenceClass)

	assert.Equal(t, "**", floor.Marker)
	assert.Equal(t, "coef-08", floor.RawClass)
	assert.Equal(t, "positive", floor.DifferenceClass)

	assert.Equal(t, "*", parity.Marker)
	assert.Equal(t, "coef-1", parity.RawClass)
	assert.Equal(t, "coef-1", parity.AdjustedClass)
	assert.Equal(t, "neutral", parity.DifferenceClass)
}

package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coefcalc/internal/config"
)

func TestCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(nil, nil).Write(context.Background(), &buf, sampleResult()))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data[len(utf8BOM):]))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, CSVHeaders(), records[0])
	assert.Equal(t, "Adjustment", records[0][len(records[0])-1])

	assert.Equal(t, []string{
		"A1", "A", "Dairy", "Milk", "1",
		"140", "150", "160", "100", "10",
		"6.667", "1.50", "1.50", "85.000", "1.500", "92.125",
		"none",
	}, records[1])

	assert.Equal(t, "'=cmd|'/c calc'!A1", records[2][0])
	assert.Equal(t, "'-z", records[2][4])
	assert.Equal(t, "0.80", records[2][12])
	assert.Equal(t, "floor", records[2][16])
}

func TestCSVWriter_Save(t *testing.T) {
	paths := config.NewPaths(config.PathsConfig{ExecutableDir: t.TempDir(), DataDir: "d", ReportsDir: "d/r", LogsDir: "l"})

	path, err := NewCSVWriter(paths, nil).Save(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, paths.GetReportPath("coefficients_report_2026-03-14.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Product ID;Level 1")
}

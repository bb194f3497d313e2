package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coefcalc/internal/shared/testutil"
)

func writeInput(t *testing.T, dir, name string, rows ...testutil.Row) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(testutil.BuildCSV(rows...)), 0644))
	return path
}

func TestRun_WritesReport(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "demand_1.csv", testutil.DemandRow("A", "1", "demand", "150"))
	writeInput(t, dir, "demand_2.csv", testutil.DemandRow("B", "2", "demand", "40"))
	swat := writeInput(t, dir, "swat.csv", testutil.SwatRow("A", "1", "100"))
	out := filepath.Join(dir, "out", "report.xlsx")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-demand", filepath.Join(dir, "demand_*.csv"),
		"-swat", swat,
		"-out", out,
		"-csv",
		"-log-level", "error",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.FileExists(t, out)
	assert.FileExists(t, filepath.Join(dir, "out", "report.csv"))
	assert.Contains(t, stdout.String(), "Products:        2 (keyset demand)")
	assert.Contains(t, stdout.String(), "2 demand, 1 SWAT")
	assert.Contains(t, stdout.String(), "Coefficient 1.50: 1")
}

func TestRun_OutputDirectory(t *testing.T) {
	dir := t.TempDir()
	demand := writeInput(t, dir, "demand.csv", testutil.DemandRow("A", "1", "demand", "100"))
	swat := writeInput(t, dir, "swat.csv", testutil.SwatRow("A", "1", "100"))
	out := filepath.Join(dir, "reports")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-demand", demand, "-swat", swat, "-out", out, "-log-level", "error",
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	matches, err := filepath.Glob(filepath.Join(out, "coefficients_report_*.xlsx"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, stdout.String(), matches[0])
	assert.Contains(t, stdout.String(), "Coefficient 1.00: 1")
}

func TestRun_SkipsNonCSVInput(t *testing.T) {
	dir := t.TempDir()
	demand := writeInput(t, dir, "demand.csv", testutil.DemandRow("A", "1", "demand", "150"))
	swat := writeInput(t, dir, "swat.csv", testutil.SwatRow("A", "1", "100"))
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("remember the milk"), 0644))
	out := filepath.Join(dir, "report.xlsx")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-demand", demand, "-demand", notes, "-swat", swat, "-out", out, "-log-level", "error",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.FileExists(t, out)
	assert.Contains(t, stdout.String(), "1 demand, 1 SWAT")
	assert.Contains(t, stdout.String(), "Warning:         1 file(s) skipped: notes.txt")
	assert.Contains(t, stdout.String(), "Coefficient 1.50: 1")
}

func TestRun_OutputNotWritable(t *testing.T) {
	dir := t.TempDir()
	demand := writeInput(t, dir, "demand.csv", testutil.DemandRow("A", "1", "demand", "100"))
	swat := writeInput(t, dir, "swat.csv", testutil.SwatRow("A", "1", "100"))
	blocker := filepath.Join(dir, "taken")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-demand", demand, "-swat", swat, "-out", filepath.Join(blocker, "reports"), "-log-level", "error",
	}, &stdout, &stderr)

	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "failed to create output directory")
	assert.Empty(t, stdout.String())
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no inputs", nil, exitUsage},
		{"no swat", []string{"-demand", "a.csv"}, exitUsage},
		{"unknown flag", []string{"-bogus"}, exitUsage},
		{"stray argument", []string{"-demand", "a.csv", "-swat", "b.csv", "extra"}, exitUsage},
		{"help", []string{"-h"}, exitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(context.Background(), tt.args, &stdout, &stderr))
		})
	}
}

func TestRun_CalculationErrors(t *testing.T) {
	dir := t.TempDir()
	demand := writeInput(t, dir, "demand.csv", testutil.DemandRow("A", "1", "demand", "1"))

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{"missing file", []string{"-demand", demand, "-swat", filepath.Join(dir, "nope.csv")}, "does not exist"},
		{"bad keyset", []string{"-demand", demand, "-swat", demand, "-keyset", "all"}, "error:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), append(tt.args, "-log-level", "error"), &stdout, &stderr)
			assert.Equal(t, exitError, code)
			assert.Contains(t, stderr.String(), tt.wantStderr)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), []string{"-version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "coefcalc v")
}

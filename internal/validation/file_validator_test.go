package validation

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("a;b\n1;2\n"), 0644))
	return p
}

func TestFileValidator_ResolveInputs(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv")
	b := writeFile(t, dir, "b.csv")
	notes := writeFile(t, dir, "notes.txt")

	sub := filepath.Join(dir, "swat")
	require.NoError(t, os.Mkdir(sub, 0755))
	s1 := writeFile(t, sub, "s1.csv")

	v := NewFileValidator(slog.Default())

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr string
	}{
		{name: "single file", args: []string{a}, want: []string{a}},
		{name: "directory", args: []string{dir}, want: []string{a, b}},
		{name: "glob", args: []string{filepath.Join(dir, "*.csv")}, want: []string{a, b}},
		{name: "dedup keeps first order", args: []string{b, dir, s1}, want: []string{b, a, s1}},
		{name: "blank args skipped", args: []string{"", " ", a}, want: []string{a}},
		{name: "missing file", args: []string{filepath.Join(dir, "nope.csv")}, wantErr: "does not exist"},
		{name: "other extension is passed on", args: []string{a, notes}, want: []string{a, notes}},
		{name: "directory is not a file", args: []string{filepath.Join(dir, "*")}, wantErr: "is a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ResolveInputs(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileValidator_ValidateInputDirectory(t *testing.T) {
	v := NewFileValidator(nil)
	dir := t.TempDir()
	file := writeFile(t, dir, "x.csv")

	assert.NoError(t, v.ValidateInputDirectory(dir))

	err := v.ValidateInputDirectory(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	err = v.ValidateInputDirectory(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil)
	out := filepath.Join(t.TempDir(), "nested", "reports")

	require.NoError(t, v.ValidateOutputDirectory(out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(filepath.Join(out, ".write_test"))
	assert.True(t, os.IsNotExist(err), "write test file is removed")
}

func TestFileValidator_ValidateFile(t *testing.T) {
	v := NewFileValidator(nil)
	dir := t.TempDir()

	assert.NoError(t, v.ValidateFile(writeFile(t, dir, "ok.csv")))

	err := v.ValidateFile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

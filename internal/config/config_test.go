package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(50<<20), cfg.Limits.MaxFileBytes)
	assert.Equal(t, 10, cfg.Limits.MaxFiles)
	assert.Equal(t, 1_000_000, cfg.Limits.MaxRowsPerFile)
	assert.Equal(t, 3_000_000, cfg.Limits.MaxTotalRows)
	assert.Equal(t, 64<<10, cfg.Limits.PreviewBytes)
	assert.Equal(t, "demand", cfg.Calculation.Keyset)
	assert.Equal(t, 50, cfg.Calculation.PreviewRows)
	assert.Equal(t, time.Hour, cfg.Calculation.SessionTTL)

	cfg.Paths.ExecutableDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("logs", "coefcalc.log"), cfg.Logging.FilePath)
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  port: 9000
calculation:
  keyset: union
  preview_rows: 20
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0644))

	t.Setenv("COEF_SERVER_PORT", "9100")
	t.Setenv("COEF_LIMITS_MAX_FILES", "3")
	t.Setenv("COEF_PATHS_EXECUTABLE_DIR", dir)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "union", cfg.Calculation.Keyset, "file wins over default")
	assert.Equal(t, 20, cfg.Calculation.PreviewRows)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Limits.MaxFiles)
	assert.Equal(t, int64(50<<20), cfg.Limits.MaxFileBytes, "untouched default survives")
	assert.Equal(t, dir, cfg.Paths.ExecutableDir)
}

func TestLoadFile_NoFile(t *testing.T) {
	t.Setenv("COEF_PATHS_EXECUTABLE_DIR", t.TempDir())

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"COEF_SERVER_PORT": "70000"}},
		{"bad keyset", map[string]string{"COEF_CALCULATION_KEYSET": "intersection"}},
		{"bad log level", map[string]string{"COEF_LOGGING_LEVEL": "verbose"}},
		{"zero files", map[string]string{"COEF_LIMITS_MAX_FILES": "0"}},
		{"total below per file", map[string]string{"COEF_LIMITS_MAX_TOTAL_ROWS": "10"}},
		{"not a number", map[string]string{"COEF_LIMITS_MAX_FILE_BYTES": "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("COEF_PATHS_EXECUTABLE_DIR", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFile("")
			assert.Error(t, err)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.Import.SessionTTL)
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 10*time.Second, cfg.Import.RowTimeout)
	assert.Equal(t, 0.75, cfg.Import.SuggestThreshold)
	assert.False(t, cfg.Import.RetainManualMatches)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("IMPORT_WORKERS", "32")
	t.Setenv("IMPORT_DATE_FORMATS", "02/01/2006|2006-01-02")
	t.Setenv("IMPORT_RETAIN_MANUAL_MATCHES", "true")
	t.Setenv("IMPORT_ROW_TIMEOUT", "250ms")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Import.Workers)
	assert.Equal(t, []string{"02/01/2006", "2006-01-02"}, cfg.Import.DateFormats)

	pipeline := cfg.Pipeline()
	assert.True(t, pipeline.RetainManualMatches)
	assert.Equal(t, 250*time.Millisecond, pipeline.RowTimeout)
	assert.Equal(t, 10, pipeline.Workers)
}

func TestParseClampsWorkersUp(t *testing.T) {
	t.Setenv("IMPORT_WORKERS", "0")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Import.Workers)
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Setenv("IMPORT_ROW_TIMEOUT", "soon")

	_, err := Parse()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := Config{
		Port:        "8080",
		LogLevel:    "info",
		LogFormat:   "json",
		MetricsPath: "/metrics",
		Import: ImportOptions{
			SessionTTL:       time.Hour,
			RowTimeout:       time.Second,
			MaxErrors:        100,
			SampleRows:       5,
			SuggestThreshold: 0.75,
			MaxUploadSize:    1024,
		},
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"threshold above one": func(c *Config) { c.Import.SuggestThreshold = 1.5 },
		"zero threshold":      func(c *Config) { c.Import.SuggestThreshold = 0 },
		"zero ttl":            func(c *Config) { c.Import.SessionTTL = 0 },
		"zero max errors":     func(c *Config) { c.Import.MaxErrors = 0 },
		"negative max rows":   func(c *Config) { c.Import.MaxRows = -1 },
		"unknown level":       func(c *Config) { c.LogLevel = "loud" },
		"unknown format":      func(c *Config) { c.LogFormat = "xml" },
		"relative metrics":    func(c *Config) { c.MetricsPath = "metrics" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TABULAR_IMPORT_TEST_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TABULAR_IMPORT_TEST_KEY") })

	require.NoError(t, loadEnvFiles(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("TABULAR_IMPORT_TEST_KEY"))
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	logger := NewLogger(Config{LogLevel: "debug", LogFormat: "text"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger = NewLogger(Config{LogLevel: "warn", LogFormat: "json"})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

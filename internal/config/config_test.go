package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/scene"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMainConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSource, cfg.Source)
	assert.Equal(t, records.PolicyZeroFill, cfg.Policy())
	assert.Equal(t, scene.Saturate, cfg.NavigationPolicy())
	assert.Equal(t, []string{"2006-01-02", "1/2/2006"}, cfg.DateFormats)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "svg", cfg.Chart.Format)
}

func TestLoadMainConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
source: data/us-states.csv
malformed_policy: skip
navigation: wrap
chart:
  width: 1024
server:
  addr: ":9000"
  rate_limit_rps: 2
transform:
  column_aliases:
    province_state: state
`)
	t.Setenv("SCENES_SERVER_ADDR", ":9100")
	t.Setenv("SCENES_LOG_LEVEL", "debug")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "data/us-states.csv", cfg.Source)
	assert.Equal(t, records.PolicySkip, cfg.Policy())
	assert.Equal(t, scene.Wrap, cfg.NavigationPolicy())
	assert.Equal(t, 1024, cfg.Chart.Width)
	assert.Equal(t, 500, cfg.Chart.Height, "unset fields keep defaults")
	assert.Equal(t, ":9100", cfg.Server.Addr, "environment wins over the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, float64(2), cfg.Server.RateLimitRPS)

	tr, err := cfg.Transformer()
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestLoadMainConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"policy":     "malformed_policy: explode\n",
		"navigation": "navigation: bounce\n",
		"log level":  "log_level: loud\n",
		"format":     "chart:\n  format: gif\n",
		"yaml":       "source: [unterminated\n",
		"transform":  "transform:\n  rules:\n    - field: state\n      actions:\n        - type: explode\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMainConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestParseOptions(t *testing.T) {
	cfg := Default()
	cfg.MalformedPolicy = "reject"

	opts := cfg.ParseOptions()
	assert.Equal(t, records.PolicyReject, opts.Policy)
	assert.Equal(t, cfg.DateFormats, opts.DateFormats)

	tr, err := cfg.Transformer()
	require.NoError(t, err)
	assert.Nil(t, tr)
}

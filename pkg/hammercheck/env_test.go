package hammercheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvConfigDefaults(t *testing.T) {
	cfg, err := LoadEnvConfig()
	require.NoError(t, err)

	assert.Equal(t, "hammercheck.sqlite3", cfg.DBPath)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.Origins)
	assert.Zero(t, cfg.MinDuration)
	assert.Empty(t, cfg.ThresholdsPath)
}

func TestLoadEnvConfigOverrides(t *testing.T) {
	t.Setenv("HAMMERCHECK_DB_PATH", "/tmp/x.sqlite3")
	t.Setenv("HAMMERCHECK_PORT", "9090")
	t.Setenv("HAMMERCHECK_ORIGINS", "http://a,http://b")
	t.Setenv("HAMMERCHECK_MIN_DURATION", "300")
	t.Setenv("HAMMERCHECK_MIN_PRESSURE", "500")

	cfg, err := LoadEnvConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.sqlite3", cfg.DBPath)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Origins)
	assert.Equal(t, int64(300), cfg.MinDuration)
	assert.Equal(t, 500, cfg.MinPressure)
}

func TestLoadEnvConfigRejectsBadValues(t *testing.T) {
	t.Setenv("HAMMERCHECK_PORT", "eighty")
	_, err := LoadEnvConfig()
	assert.Error(t, err)
}

func TestEnvConfigOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"motor_60":{"c":100,"threshold":50}}`), 0o644))

	opts, err := EnvConfig{DBPath: "a.db", MinDuration: 250, ThresholdsPath: path}.Options()
	require.NoError(t, err)

	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	assert.Equal(t, "a.db", cfg.DBPath)
	assert.Equal(t, int64(250), cfg.Prefilter.MinDuration)
	require.NotNil(t, cfg.Checker)
	assert.True(t, cfg.Checker.Audible(60, 1))

	_, err = EnvConfig{ThresholdsPath: filepath.Join(t.TempDir(), "missing.json")}.Options()
	assert.Error(t, err)
}

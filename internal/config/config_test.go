package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.FinalizeTimeout)
	assert.Equal(t, "en-US", cfg.Locale)
	assert.Equal(t, BackendFile, cfg.HistoryBackend)
	assert.Equal(t, "podiumPalHistory", cfg.HistoryKey)
	assert.Equal(t, 10, cfg.HistoryCap)
	assert.Equal(t, "local", cfg.UserID)
	assert.Equal(t, "0 0 * * 1", cfg.SnapshotSchedule)
	assert.Equal(t, analysis.Supportive, cfg.DefaultPersonality())
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PODIUM_BACKEND_URL", "https://coach.example.com")
	t.Setenv("PODIUM_HISTORY", "sqlite")
	t.Setenv("PODIUM_HISTORY_CAP", "25")
	t.Setenv("PODIUM_PERSONALITY", "Mentor")
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://coach.example.com", cfg.BackendURL)
	assert.Equal(t, BackendSQLite, cfg.HistoryBackend)
	assert.Equal(t, 25, cfg.HistoryCap)
	assert.Equal(t, analysis.Mentor, cfg.DefaultPersonality())
	assert.True(t, cfg.ArchiveEnabled())
}

func TestYAMLOverridesEnv(t *testing.T) {
	t.Setenv("PODIUM_LOCALE", "de-DE")
	t.Setenv("PODIUM_HISTORY_CAP", "5")

	path := filepath.Join(t.TempDir(), "podium.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
history_cap: 12
request_timeout: 15s
metrics_addr: ":9090"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "de-DE", cfg.Locale, "env value kept when the file omits it")
	assert.Equal(t, 12, cfg.HistoryCap)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history_cap: [1, 2"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad url", func(c *Config) { c.BackendURL = "localhost:8000" }, "backend_url"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"unknown backend", func(c *Config) { c.HistoryBackend = "redis" }, "history_backend"},
		{"zero cap", func(c *Config) { c.HistoryCap = 0 }, "history_cap"},
		{"empty user", func(c *Config) { c.UserID = "" }, "user_id"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad schedule", func(c *Config) { c.SnapshotSchedule = "weekly-ish" }, "snapshot_schedule"},
		{"bad personality", func(c *Config) { c.Personality = "sarcastic" }, "personality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "swarm-autoscaler", cfg.App.Name)
	assert.Equal(t, 300*time.Second, cfg.Autoscaler.Interval)
	assert.Equal(t, 25.0, cfg.Autoscaler.PercentageMin)
	assert.Equal(t, 85.0, cfg.Autoscaler.PercentageMax)
	assert.Equal(t, 30*time.Second, cfg.Registry.RefreshInterval)
	assert.Equal(t, "unix:///var/run/docker.sock", cfg.Docker.Host)
	assert.Equal(t, SourceDocker, cfg.Metrics.Source)
	assert.Equal(t, "tasks.autoscaler", cfg.Metrics.DiscoveryDNS)
	assert.Equal(t, 8080, cfg.Metrics.DiscoveryPort)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 10000, cfg.Events.MaxHistory)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.False(t, cfg.Autoscaler.DryRun)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("AUTOSCALER_AUTOSCALER_INTERVAL", "60s")
	t.Setenv("AUTOSCALER_METRICS_SOURCE", "cadvisor")
	t.Setenv("AUTOSCALER_METRICS_CADVISOR_URL", "http://cadvisor:8080")
	t.Setenv("AUTOSCALER_API_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Autoscaler.Interval)
	assert.Equal(t, SourceCadvisor, cfg.Metrics.Source)
	assert.Equal(t, "http://cadvisor:8080", cfg.Metrics.CadvisorURL)
	assert.Equal(t, 9090, cfg.API.Port)
}

func TestLoad_DryRunIsPresenceBased(t *testing.T) {
	t.Setenv("AUTOSCALER_DRYRUN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Autoscaler.DryRun)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  log_level: debug
autoscaler:
  interval: 120s
  percentage_max: 75
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.Autoscaler.Interval)
	assert.Equal(t, 75.0, cfg.Autoscaler.PercentageMax)
	// Untouched keys keep their defaults.
	assert.Equal(t, 25.0, cfg.Autoscaler.PercentageMin)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Autoscaler.Interval = 0 }},
		{"zero refresh interval", func(c *Config) { c.Registry.RefreshInterval = 0 }},
		{"inverted band", func(c *Config) { c.Autoscaler.PercentageMin = 90 }},
		{"negative percentage", func(c *Config) { c.Autoscaler.PercentageMin = -5 }},
		{"zero workers", func(c *Config) { c.Autoscaler.Workers = 0 }},
		{"metrics timeout above interval", func(c *Config) { c.Metrics.Timeout = c.Autoscaler.Interval }},
		{"docker timeout above refresh", func(c *Config) { c.Docker.Timeout = c.Registry.RefreshInterval }},
		{"docker source without dns", func(c *Config) { c.Metrics.DiscoveryDNS = "" }},
		{"cadvisor source without url", func(c *Config) { c.Metrics.Source = SourceCadvisor }},
		{"unknown source", func(c *Config) { c.Metrics.Source = "statsd" }},
		{"empty docker host", func(c *Config) { c.Docker.Host = "" }},
		{"database enabled without host", func(c *Config) { c.Database.Enabled = true; c.Database.Host = "" }},
		{"bad port", func(c *Config) { c.API.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestDatabaseConfig_ToDBConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Host:           "db",
		Port:           5433,
		Name:           "autoscaler",
		User:           "scaler",
		Password:       "secret",
		SSLMode:        "require",
		MaxConnections: 20,
	}

	db := cfg.ToDBConfig()
	assert.Equal(t, "db", db.Host)
	assert.Equal(t, 5433, db.Port)
	assert.Equal(t, "require", db.SSLMode)
	assert.Contains(t, db.DSN(), "host=db port=5433")
}

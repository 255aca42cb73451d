package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.RatePerMinute)
	assert.Equal(t, 1000, cfg.Server.RatePerHour)
	assert.Equal(t, "file", cfg.Collector.Kind)
	assert.Equal(t, 3*time.Hour, cfg.Orchestrator.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Orchestrator.CycleTimeout)
	assert.Equal(t, 3, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, 4*time.Second, cfg.Orchestrator.RetryBaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Orchestrator.RetryMaxDelay)
	assert.Equal(t, 100, cfg.Orchestrator.MaxSnapshots)
	assert.Equal(t, 100, cfg.Orchestrator.MaxReports)
	assert.Equal(t, 30*24*time.Hour, cfg.Orchestrator.RetentionAge)
	assert.Equal(t, 5, cfg.Analyzer.MediumThreshold)
	assert.Empty(t, cfg.Scopes)
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "driftscope.yaml")
	body := `
log_level: debug
server:
  port: 9090
  rate_per_minute: 10
collector:
  kind: azure-blob
  storage_account: exports
  container: configs
orchestrator:
  interval: 1h
  max_snapshots: 20
scopes:
  - subscription_id: sub-1
    resource_group: rg-1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.RatePerMinute)
	// Values absent from the file keep their defaults.
	assert.Equal(t, 1000, cfg.Server.RatePerHour)

	assert.Equal(t, "azure-blob", cfg.Collector.Kind)
	assert.Equal(t, "exports", cfg.Collector.StorageAccount)
	assert.Equal(t, "configs", cfg.Collector.Container)

	assert.Equal(t, time.Hour, cfg.Orchestrator.Interval)
	assert.Equal(t, 20, cfg.Orchestrator.MaxSnapshots)

	require.Len(t, cfg.Scopes, 1)
	scope := cfg.Scopes[0].Scope()
	assert.Equal(t, "sub-1", scope.SubscriptionID)
	assert.Equal(t, "rg-1", scope.ResourceGroup)
	require.NoError(t, scope.Validate())
}

func TestLoad_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("DRIFTSCOPE_LOG_LEVEL", "warn")
	t.Setenv("DRIFTSCOPE_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

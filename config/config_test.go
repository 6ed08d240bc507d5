package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultWorkers, cfg.Server.Workers)
	assert.Equal(t, DefaultReadTimeout, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
server:
  port: 9000
  workers: 4
  read_timeout: 5s
  file_root: /srv/files
metrics:
  enabled: true
  port: 9100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/srv/files", cfg.Server.FileRoot)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  workers: 4
`)
	t.Setenv("POOLSERVER_SERVER_WORKERS", "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Server.Workers)
}

func TestLoad_InvalidLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: loud
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Level")
}

func TestValidate_MetricsPortClash(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = cfg.Server.Port

	assert.Error(t, Validate(cfg))
}

func TestValidate_NegativeWorkers(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.Workers = -1

	assert.Error(t, Validate(cfg))
}

func TestApplyDefaults_AcceptBurstFollowsWorkers(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Workers: 6, AcceptRate: 100}}
	ApplyDefaults(cfg)
	assert.Equal(t, 6, cfg.Server.AcceptBurst)
}

func TestDump(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	out, err := Dump(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "workers: 8")
	assert.Contains(t, string(out), "read_timeout: 30s")
}

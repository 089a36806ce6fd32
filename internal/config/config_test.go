package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 4, cfg.Pool.Size)
	assert.Equal(t, 100, cfg.Pool.MaxTasksPerWorker)
	assert.Equal(t, time.Minute, cfg.Scheduler.AbandonedTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.UnresponsiveTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Worker.RelayTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "clusterd.yaml")

	content := `
server:
  address: ":9000"
scheduler:
  tick_interval: 50ms
  abandoned_timeout: 2m
pool:
  size: 8
  command: ["/usr/sbin/clusterd", "worker"]
  env:
    - LANG=C
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 50*time.Millisecond, cfg.Scheduler.TickInterval)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.AbandonedTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.UnresponsiveTimeout, "unset keys keep defaults")
	assert.Equal(t, 8, cfg.Pool.Size)
	assert.Equal(t, []string{"/usr/sbin/clusterd", "worker"}, cfg.Pool.Command)
	assert.Equal(t, []string{"LANG=C"}, cfg.Pool.Env)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFromNonExistentFile(t *testing.T) {
	cfg, err := LoadFromFile("/nonexistent/path/clusterd.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Address, cfg.Server.Address)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("pool: [unterminated"), 0644))

	_, err := LoadFromFile(configPath)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLUSTERD_POOL_SIZE", "6")
	t.Setenv("CLUSTERD_SCHEDULER_UNRESPONSIVE_TIMEOUT", "90s")
	t.Setenv("CLUSTERD_POOL_COMMAND", "/bin/clusterd, worker")
	t.Setenv("CLUSTERD_ARCHIVE_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Pool.Size)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.UnresponsiveTimeout)
	assert.Equal(t, []string{"/bin/clusterd", "worker"}, cfg.Pool.Command)
	assert.True(t, cfg.Archive.Enabled)
}

func TestEnvPrefix(t *testing.T) {
	t.Setenv("PCS_POOL_SIZE", "3")
	t.Setenv("CLUSTERD_POOL_SIZE", "9")

	cfg, err := NewLoader().WithEnvPrefix("PCS_").Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pool.Size)
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("CLUSTERD_POOL_SIZE", "many")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestCmdOverridesWinOverEnvAndFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "clusterd.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("pool:\n  size: 2\n"), 0644))
	t.Setenv("CLUSTERD_POOL_SIZE", "5")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		WithCmdArgs(map[string]string{
			"pool.size":                   "7",
			"scheduler.abandoned_timeout": "5s",
			"logging.level":               "warn",
		}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Pool.Size)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.AbandonedTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestCmdOverrideUnknownPath(t *testing.T) {
	_, err := NewLoader().WithCmdArgs(map[string]string{"pool.nope": "1"}).Load()
	assert.Error(t, err)

	_, err = NewLoader().WithCmdArgs(map[string]string{"pool.size.deeper": "1"}).Load()
	assert.Error(t, err)
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("worker:\n  outbox_size: 8\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Worker.OutboxSize)
	assert.Equal(t, DefaultConfig().Worker.RelayTimeout, cfg.Worker.RelayTimeout)
}

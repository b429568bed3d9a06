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
	cfg := Default()

	assert.Equal(t, "tcp://127.0.0.1:5555", cfg.Endpoints.Frontend)
	assert.Equal(t, "tcp://127.0.0.1:6000", cfg.Endpoints.Backend)
	assert.Equal(t, "tcp://127.0.0.1:6001", cfg.Endpoints.Control)
	assert.Equal(t, "tcp://127.0.0.1:6010", cfg.Endpoints.Notify)
	assert.Equal(t, "tcp://127.0.0.1:6011", cfg.Endpoints.DataStore)
	assert.Equal(t, "tcp://127.0.0.1:6015", cfg.Endpoints.Heartbeat)

	assert.Equal(t, 4*time.Second, cfg.HeartbeatTimeout.Std())
	assert.Equal(t, 1*time.Second, cfg.SweepInterval.Std())
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval.Std())
	assert.Equal(t, 10*time.Second, cfg.MembershipRefresh.Std())
	assert.Equal(t, 12*time.Second, cfg.ElectionInterval.Std())
	assert.Equal(t, 5*time.Second, cfg.DriftInterval.Std())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesFieldByField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chirp.yaml")
	body := `
endpoints:
  frontend: tcp://10.0.0.1:7555
heartbeat_timeout: 8s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden fields change, the rest keep their defaults.
	assert.Equal(t, "tcp://10.0.0.1:7555", cfg.Endpoints.Frontend)
	assert.Equal(t, 8*time.Second, cfg.HeartbeatTimeout.Std())
	assert.Equal(t, "tcp://127.0.0.1:6000", cfg.Endpoints.Backend)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval.Std())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "controller.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTemp(t, `
data_dir: /var/lib/controller
bind_addr: 0.0.0.0:7070
raft:
  enabled: true
  node_id: node-a
  bind_addr: 0.0.0.0:7946
  peers:
    - node-b@10.0.0.2:7946
default_read_policy:
  kind: lag_by
  lag_delta: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/controller", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:7070", cfg.BindAddr)
	assert.True(t, cfg.Raft.Enabled)
	assert.Equal(t, "node-a", cfg.Raft.NodeID)
	assert.Equal(t, []string{"node-b@10.0.0.2:7946"}, cfg.Raft.Peers)
	assert.Equal(t, "lag_by", cfg.DefaultPolicy.Kind)
	assert.Equal(t, int64(5), cfg.DefaultPolicy.LagDelta)

	// Fields the file didn't set keep the default.
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsRaftWithoutNodeID(t *testing.T) {
	cfg := Default()
	cfg.Raft.Enabled = true
	cfg.Raft.NodeID = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownReadPolicyKind(t *testing.T) {
	cfg := Default()
	cfg.DefaultPolicy.Kind = "bogus"
	assert.Error(t, cfg.Validate())
}

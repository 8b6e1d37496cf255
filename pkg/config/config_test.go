package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
node_id: alpha
raft_addr: 127.0.0.1:7001
http_addr: :8081
grpc_addr: :9091
data_file: ./seed.yaml
log_dev: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "alpha", cfg.NodeID)
	assert.Equal(t, "127.0.0.1:7001", cfg.RaftAddr)
	assert.Equal(t, "./pyaz/alpha", cfg.RaftData)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, ":9091", cfg.GRPCAddr)
	assert.Equal(t, "./seed.yaml", cfg.DataFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogDev)
	assert.True(t, cfg.RaftEnabled())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "node_id: alpha\nhttp_addr: :8081\n")
	t.Setenv("NODE_ID", "beta")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_DEV", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "beta", cfg.NodeID)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogDev)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(cfg.NodeID, "node-"))
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.False(t, cfg.RaftEnabled())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "node_id: [unclosed"))
	assert.Error(t, err)

	t.Setenv("LOG_DEV", "sometimes")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestValidateRejectsSharedAddresses(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "http_addr: :9000\ngrpc_addr: :9000\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "raft_addr: :8080\n"))
	assert.Error(t, err)
}

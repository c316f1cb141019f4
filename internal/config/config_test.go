package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig.TCPPort, cfg.TCPPort)
	assert.Equal(t, DefaultConfig.MaxSlots, cfg.MaxSlots)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tcp_port: 4444\nmax_slots: 10\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(4444), cfg.TCPPort)
	assert.Equal(t, 10, cfg.MaxSlots)
	assert.Equal(t, DefaultConfig.UDPPort, cfg.UDPPort)
}

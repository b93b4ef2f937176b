package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlcb-go/openlcb/olcb"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "olcbhub.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadServeConfig_Defaults(t *testing.T) {
	cfg, err := loadServeConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":12021", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, olcb.Alias(0), cfg.NodeAlias)
	assert.Equal(t, 256, cfg.Hub.PortQueue)
	assert.Equal(t, 3*time.Second, cfg.Iface.ReassemblyTimeout)
}

func TestLoadServeConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
listen = "0.0.0.0:15000"
log_level = "debug"
port_queue = 64
rate_limit = 500.0
rate_burst = 100
node_alias = 0x32D
reassembly_timeout = "750ms"
`)
	cfg, err := loadServeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:15000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, olcb.Alias(0x32D), cfg.NodeAlias)
	assert.Equal(t, 64, cfg.Hub.PortQueue)
	assert.Equal(t, 500.0, cfg.Hub.RateLimit)
	assert.Equal(t, 100, cfg.Hub.RateBurst)
	assert.Equal(t, 750*time.Millisecond, cfg.Iface.ReassemblyTimeout)
}

func TestLoadServeConfig_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `log_level = "warn"`)
	cfg, err := loadServeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":12021", cfg.Listen)
	assert.Equal(t, 256, cfg.Hub.PortQueue)
}

func TestLoadServeConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing file", ""},
		{"bad toml", `listen = `},
		{"alias out of range", `node_alias = 0x1000`},
		{"negative alias", `node_alias = -1`},
		{"bad duration", `reassembly_timeout = "fast"`},
		{"invalid queue", `port_queue = 0`},
		{"limit without burst", "rate_limit = 10.0\nrate_burst = 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			if tt.name == "missing file" {
				path = filepath.Join(t.TempDir(), "absent.toml")
			}
			_, err := loadServeConfig(path)
			assert.Error(t, err)
		})
	}
}

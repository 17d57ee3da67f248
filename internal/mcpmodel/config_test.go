package mcpmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerConfig_Minimal(t *testing.T) {
	raw := []byte(`{"name":"echo-server","command":"echo","args":["hello"]}`)
	cfg, err := parseServerConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, "echo-server", cfg.Name)
	assert.Equal(t, defaultStartupTimeout, cfg.StartupTimeout)
	assert.NotEmpty(t, cfg.Cwd)
}

func TestParseServerConfig_StartupTimeoutString(t *testing.T) {
	raw := []byte(`{"name":"x","command":"x","args":[],"startupTimeout":"2s"}`)
	cfg, err := parseServerConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.StartupTimeout)
}

func TestParseServerConfig_MissingNameRejected(t *testing.T) {
	raw := []byte(`{"command":"echo","args":[]}`)
	_, err := parseServerConfig(raw)
	assert.Error(t, err)
}

func TestParseServerConfig_InvalidReadyPatternRejected(t *testing.T) {
	raw := []byte(`{"name":"x","command":"x","args":[],"readyPattern":"("}`)
	_, err := parseServerConfig(raw)
	assert.Error(t, err)
}

func TestParseServerConfig_FileEnvOverridesHostEnv(t *testing.T) {
	t.Setenv("MCPCONDUCTOR_TEST_VAR", "from-host")
	raw := []byte(`{"name":"x","command":"x","args":[],"env":{"MCPCONDUCTOR_TEST_VAR":"from-file"}}`)
	cfg, err := parseServerConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Env["MCPCONDUCTOR_TEST_VAR"])
}

func TestWarnings_FlagsExtremeTimeouts(t *testing.T) {
	cfg := &ServerConfig{StartupTimeout: 100 * time.Millisecond}
	assert.NotEmpty(t, cfg.Warnings())

	cfg2 := &ServerConfig{StartupTimeout: time.Minute}
	assert.NotEmpty(t, cfg2.Warnings())

	cfg3 := &ServerConfig{StartupTimeout: 5 * time.Second}
	assert.Empty(t, cfg3.Warnings())
}

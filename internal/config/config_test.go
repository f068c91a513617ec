package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showcontroller/obsbot-osc/obsbot"
	"github.com/showcontroller/obsbot-osc/obsbot/catalog"
)

var envVars = []string{
	"OBSBOT_HOST", "OBSBOT_PORT", "OBSBOT_TRANSPORT", "OBSBOT_LISTEN_PORT",
	"OBSBOT_MODEL", "OBSBOT_DEVICE", "OBSBOT_VERBOSE",
	"HTTP_PORT", "CORS_ORIGIN", "LOG_FORMAT", "DEBUG",
}

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
		require.NoError(t, os.Unsetenv(v))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, obsbot.DefaultConfig(), cfg.Device)
	assert.Equal(t, "4100", cfg.HTTPPort)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.Debug)
	assert.Contains(t, cfg.Keys, "w")
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "obsbot.yaml", `
device:
  ip: 10.0.0.5
  port: 16284
  transport: tcp
  model: OBSBOT_CENTER_TINY
  device: 2
  verbose: true
http_port: "8080"
log_format: json
keys:
  t:
    action: OBSBOT_CENTER_TINY_aiMode
    options:
      aiMode: "1"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Device.Host)
	assert.Equal(t, 16284, cfg.Device.Port)
	assert.Equal(t, obsbot.ProtocolTCP, cfg.Device.Transport)
	assert.Equal(t, obsbot.DefaultListenPort, cfg.Device.ListenPort, "unset keys keep their defaults")
	assert.Equal(t, 2, cfg.Device.Device)
	assert.True(t, cfg.Device.Verbose)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "json", cfg.LogFormat)

	require.Contains(t, cfg.Keys, "t")
	assert.Equal(t, "tiny2", cfg.Keys["t"].Options["camera"], "saved Tiny AI mode bindings are upgraded")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "obsbot.yaml", "device:\n  ip: 10.0.0.5\n")

	t.Setenv("OBSBOT_HOST", "10.0.0.6")
	t.Setenv("OBSBOT_PORT", "57111")
	t.Setenv("OBSBOT_TRANSPORT", "TCP")
	t.Setenv("OBSBOT_MODEL", "OBSBOT_CENTER")
	t.Setenv("OBSBOT_DEVICE", "4")
	t.Setenv("OBSBOT_VERBOSE", "true")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CORS_ORIGIN", "http://example.com")
	t.Setenv("DEBUG", "1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.6", cfg.Device.Host)
	assert.Equal(t, 57111, cfg.Device.Port)
	assert.Equal(t, obsbot.ProtocolTCP, cfg.Device.Transport)
	assert.Equal(t, "OBSBOT_CENTER", cfg.Device.Model)
	assert.Equal(t, 4, cfg.Device.Device)
	assert.True(t, cfg.Device.Verbose)
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "http://example.com", cfg.CORSOrigin)
	assert.True(t, cfg.Debug)
}

func TestLoad_InvalidNumbersKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OBSBOT_PORT", "not-a-port")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, obsbot.DefaultPort, cfg.Device.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "unknown model", env: map[string]string{"OBSBOT_MODEL": "OBSBOT_NOPE"}},
		{name: "unknown transport", env: map[string]string{"OBSBOT_TRANSPORT": "serial"}},
		{name: "bad http port", env: map[string]string{"HTTP_PORT": "http"}},
		{name: "bad log format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "center device out of range", env: map[string]string{"OBSBOT_MODEL": "OBSBOT_CENTER", "OBSBOT_DEVICE": "0"}},
		{name: "malformed yaml", file: "device: ["},
		{name: "binding to unsupported action", file: "keys:\n  v:\n    action: setView\n"},
		{name: "binding to a word", file: "keys:\n  up:\n    action: moveGimbalUp\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, "obsbot.yaml", tt.file)
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_UnknownModelError(t *testing.T) {
	cfg := Default()
	cfg.Device.Model = "OBSBOT_NOPE"
	assert.ErrorIs(t, cfg.Validate(), catalog.ErrUnknownModel)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, ".env", "OBSBOT_HOST=10.1.1.1\n")

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("OBSBOT_HOST") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", cfg.Device.Host)

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")), "missing files are skipped")
}

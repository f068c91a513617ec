package obsbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "192.168.0.1", cfg.Host)
	assert.Equal(t, 57110, cfg.Port)
	assert.Equal(t, ProtocolUDP, cfg.Transport)
	assert.Equal(t, 57120, cfg.ListenPort)
	assert.Equal(t, 1, cfg.Device)
	assert.False(t, cfg.IsCenter())
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "192.168.0.1:57110", cfg.Addr())
}

func TestIsCenter(t *testing.T) {
	for _, model := range []string{"OBSBOT_CENTER", "OBSBOT_CENTER_TINY", "OBSBOT_CENTER_MEET"} {
		assert.True(t, Config{Model: model}.IsCenter(), model)
	}
	for _, model := range []string{"OBSBOT_TAIL_2", "OBSBOT_TAIL_AIR", "OBSBOT_TALENT", ""} {
		assert.False(t, Config{Model: model}.IsCenter(), model)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"empty host", func(c *Config) { c.Host = "" }, false},
		{"port zero", func(c *Config) { c.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Port = 65536 }, false},
		{"ephemeral listen port", func(c *Config) { c.ListenPort = 0 }, true},
		{"negative listen port", func(c *Config) { c.ListenPort = -1 }, false},
		{"listen port ignored for tcp", func(c *Config) { c.Transport = ProtocolTCP; c.ListenPort = -1 }, true},
		{"unknown transport", func(c *Config) { c.Transport = "serial" }, false},
		{"center device zero", func(c *Config) { c.Model = "OBSBOT_CENTER"; c.Device = 0 }, false},
		{"center device 255", func(c *Config) { c.Model = "OBSBOT_CENTER"; c.Device = 255 }, true},
		{"hardware ignores device", func(c *Config) { c.Device = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  string
		known bool
	}{
		{"address not available", &net.OpError{Op: "listen", Err: syscall.EADDRNOTAVAIL}, "The requested address is not available on this machine", true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), "Connection refused by the device", true},
		{"in use", syscall.EADDRINUSE, "The listen port is already in use", true},
		{"timed out", syscall.ETIMEDOUT, "Connection timed out", true},
		{"reset", syscall.ECONNRESET, "Connection reset by the device", true},
		{"host unreachable", syscall.EHOSTUNREACH, "Device is unreachable", true},
		{"network unreachable", syscall.ENETUNREACH, "Network is unreachable", true},
		{"eof", io.EOF, "Connection closed by the device", true},
		{"dns", &net.DNSError{Err: "no such host", Name: "camera.local"}, "Could not resolve device address camera.local", true},
		{"deadline", &net.OpError{Op: "read", Err: context.DeadlineExceeded}, "Connection timed out", true},
		{"unknown", errors.New("something odd"), "something odd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := describeError(tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestDefinitionsFor(t *testing.T) {
	ids := func(defs []VariableDefinition) []string {
		var out []string
		for _, d := range defs {
			out = append(out, d.ID)
		}
		return out
	}

	assert.Equal(t, []string{"zoom", "fov", "gimbal_pitch", "gimbal_yaw"}, ids(DefinitionsFor(0)))
	assert.Equal(t, []string{"device_name", "zoom", "fov", "gimbal_pitch", "gimbal_yaw"}, ids(DefinitionsFor(1)))

	multi := ids(DefinitionsFor(4))
	assert.Len(t, multi, 4*2+5+4)
	assert.Contains(t, multi, "device4_connected")
	assert.Contains(t, multi, "selected_connected")
	assert.NotContains(t, multi, "device_name")
}

func TestStateValuesIsACopy(t *testing.T) {
	s := newState()
	s.apply(map[string]interface{}{"zoom": 10})

	values := s.Values()
	values["zoom"] = 99

	v, ok := s.Get("zoom")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = s.Get("fov")
	assert.False(t, ok)
}

package obsbot

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Protocol selects the transport used to reach a device.
type Protocol string

const (
	ProtocolUDP Protocol = "udp"
	ProtocolTCP Protocol = "tcp"
)

// Defaults of the OBSBOT OSC service.
const (
	DefaultHost       = "192.168.0.1"
	DefaultPort       = 57110
	DefaultListenPort = 57120
	DefaultModel      = "OBSBOT_TAIL_2"

	// centerMarker marks model ids that target the OBSBOT Center app, which
	// multiplexes several cameras behind one OSC endpoint.
	centerMarker = "OBSBOT_CENTER"
)

// Config is the connection configuration of one Instance. It is replaced as
// a whole on every Open.
type Config struct {
	Host       string   `yaml:"ip" json:"ip"`
	Port       int      `yaml:"port" json:"port"`
	Transport  Protocol `yaml:"transport" json:"transport"`
	ListenPort int      `yaml:"listenport" json:"listenport"` // UDP only
	Model      string   `yaml:"model" json:"model"`
	Device     int      `yaml:"device" json:"device"` // 1-based, Center only
	Verbose    bool     `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns the configuration a fresh instance starts from.
func DefaultConfig() Config {
	return Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		Transport:  ProtocolUDP,
		ListenPort: DefaultListenPort,
		Model:      DefaultModel,
		Device:     1,
	}
}

// IsCenter reports whether the model targets the multi-device Center app.
func (c Config) IsCenter() bool {
	return strings.Contains(c.Model, centerMarker)
}

// Addr returns host:port of the device.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the configuration for values no transport can work with.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: device address is empty", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidConfig, c.Port)
	}

	switch c.Transport {
	case ProtocolUDP:
		// zero asks the OS for an ephemeral port
		if c.ListenPort < 0 || c.ListenPort > 65535 {
			return fmt.Errorf("%w: listen port %d out of range 0-65535", ErrInvalidConfig, c.ListenPort)
		}
	case ProtocolTCP:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}

	if c.IsCenter() && (c.Device < 1 || c.Device > 255) {
		return fmt.Errorf("%w: device id %d out of range 1-255", ErrInvalidConfig, c.Device)
	}

	return nil
}

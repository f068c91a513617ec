// Package config provides configuration management for obsbotctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/showcontroller/obsbot-osc/obsbot"
	"github.com/showcontroller/obsbot-osc/obsbot/catalog"
)

// Config holds all configuration values of the host program.
type Config struct {
	// Device connection
	Device obsbot.Config `yaml:"device"`

	// HTTP control surface
	HTTPPort   string `yaml:"http_port"`
	CORSOrigin string `yaml:"cors_origin"`

	// Logging
	LogFormat string `yaml:"log_format"` // text or json
	Debug     bool   `yaml:"debug"`

	// Keyboard surface: a key pressed in interactive mode runs the
	// invocation.
	Keys map[string]catalog.Invocation `yaml:"keys"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Device:     obsbot.DefaultConfig(),
		HTTPPort:   "4100",
		CORSOrigin: "http://localhost:3000",
		LogFormat:  "text",
		Keys: map[string]catalog.Invocation{
			"w": {Action: "moveGimbalUp", Options: map[string]interface{}{"moveSpeed": 50}},
			"s": {Action: "moveGimbalDown", Options: map[string]interface{}{"moveSpeed": 50}},
			"a": {Action: "moveGimbalLeft", Options: map[string]interface{}{"moveSpeed": 50}},
			"d": {Action: "moveGimbalRight", Options: map[string]interface{}{"moveSpeed": 50}},
			" ": {Action: "resetGimbal"},
			"0": {Action: "setZoom", Options: map[string]interface{}{"zoom": 0}},
			"5": {Action: "setZoom", Options: map[string]interface{}{"zoom": 50}},
			"9": {Action: "setZoom", Options: map[string]interface{}{"zoom": 100}},
		},
	}
}

// LoadDotEnv loads .env files into the environment. Missing files are not
// an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file at
// path and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.upgradeKeys()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	d := &c.Device
	d.Host = getEnv("OBSBOT_HOST", d.Host)
	d.Port = getEnvInt("OBSBOT_PORT", d.Port)
	d.Transport = obsbot.Protocol(strings.ToLower(getEnv("OBSBOT_TRANSPORT", string(d.Transport))))
	d.ListenPort = getEnvInt("OBSBOT_LISTEN_PORT", d.ListenPort)
	d.Model = getEnv("OBSBOT_MODEL", d.Model)
	d.Device = getEnvInt("OBSBOT_DEVICE", d.Device)
	d.Verbose = getEnvBool("OBSBOT_VERBOSE", d.Verbose)

	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.CORSOrigin = getEnv("CORS_ORIGIN", c.CORSOrigin)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.Debug = getEnvBool("DEBUG", c.Debug)
}

// upgradeKeys migrates key bindings saved by older releases.
func (c *Config) upgradeKeys() {
	for key, inv := range c.Keys {
		invs := []catalog.Invocation{inv}
		if catalog.Upgrade(invs) {
			c.Keys[key] = invs[0]
		}
	}
}

// Validate checks the configuration against the device rules and the
// catalog of the selected model.
func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return err
	}

	cat := catalog.Default()
	if _, ok := cat.Model(c.Device.Model); !ok {
		return fmt.Errorf("%w: %s", catalog.ErrUnknownModel, c.Device.Model)
	}

	if port, err := strconv.Atoi(c.HTTPPort); err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("http port %q is not a valid port", c.HTTPPort)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	for key, inv := range c.Keys {
		if len([]rune(key)) != 1 {
			return fmt.Errorf("key binding %q must be a single character", key)
		}
		if _, err := cat.Action(c.Device.Model, inv.Action); err != nil {
			return fmt.Errorf("key binding %q: %w", key, err)
		}
	}

	return nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// Package pluginconfig loads the per-plugin defaults spec.md calls
// "plugin-chosen": the AT probe schedule, default send-delay, default
// echo-removal setting and default baud rate a vendor plugin would
// otherwise hard-code. Grounded in dropbox-llama's config.go YAML
// loading style (gopkg.in/yaml.v2 with an embedded default
// document as a fallback).
package pluginconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// defaultConfigYAML is used whenever no file is supplied, so a caller
// that never ships a config file still gets sane values.
var defaultConfigYAML = `
baud: 115200
send_delay_us: 0
remove_echo: true
cache_capacity: 16
probe:
    timeout_ms: 3000
    attempts: 3
`

// ProbeDefaults configures the built-in AT probing schedule (spec.md
// §4.5): how many consecutive "AT" attempts to make and the per-
// attempt timeout.
type ProbeDefaults struct {
	TimeoutMS int `yaml:"timeout_ms"`
	Attempts  int `yaml:"attempts"`
}

// Config is the plugin-chosen default set for one modem's serial
// ports: baud rate, send pacing, echo removal and the response-cache
// capacity (floor of 8 is enforced by atengine regardless of what's
// configured here), plus the probe schedule shape.
type Config struct {
	Baud          uint32        `yaml:"baud"`
	SendDelayUS   int64         `yaml:"send_delay_us"`
	RemoveEcho    bool          `yaml:"remove_echo"`
	CacheCapacity int           `yaml:"cache_capacity"`
	Probe         ProbeDefaults `yaml:"probe"`
}

// SendDelay returns SendDelayUS as a time.Duration.
func (c Config) SendDelay() time.Duration {
	return time.Duration(c.SendDelayUS) * time.Microsecond
}

// ProbeTimeout returns Probe.TimeoutMS as a time.Duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutMS) * time.Millisecond
}

// Default returns the parsed built-in default configuration.
func Default() Config {
	var c Config
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &c); err != nil {
		panic("pluginconfig: default document doesn't parse: " + err.Error())
	}
	return c
}

// Load reads and parses a plugin-defaults YAML file at path, starting
// from Default() so a file that only overrides a subset of fields
// still produces a complete Config.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pluginconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("pluginconfig: parse %s: %w", path, err)
	}
	return c, nil
}

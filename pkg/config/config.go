// Package config loads the YAML configuration of a sensor node:
// identity, broker address, measurement cadence and per-channel wiring.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents one node's configuration file.
type Config struct {
	Node        NodeConfig        `yaml:"node"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Channels    ChannelsConfig    `yaml:"channels"`
}

// NodeConfig identifies the node on the network.
type NodeConfig struct {
	ID     string `yaml:"id"`
	Metric bool   `yaml:"metric"` // fallback unit system when no network config is retained
}

// MQTTConfig points at the broker.
type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// MeasurementConfig holds the sampling cadence tunables.
type MeasurementConfig struct {
	// Interval is the sleep timeout of one wake cycle.
	Interval time.Duration `yaml:"interval"`
	// ForceInterval is the number of cycles between forced full reports.
	ForceInterval int `yaml:"force_interval"`
	// BatteryInterval is the battery channel's own cadence in cycles.
	BatteryInterval int `yaml:"battery_interval"`
	// HumidityWindow is the running-average window for humidity samples.
	HumidityWindow int `yaml:"humidity_window"`
	// DebounceWindow suppresses digital transitions shorter than this.
	// Zero disables debouncing.
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// ConfigWait bounds the startup wait for the retained network config.
	ConfigWait time.Duration `yaml:"config_wait"`
}

// ChannelConfig wires one logical channel to a physical input.
type ChannelConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Channel   uint8   `yaml:"channel"`
	Pin       int     `yaml:"pin"`
	Threshold float64 `yaml:"threshold"`
}

// ChannelsConfig lists the channels a node can carry. Disabled channels
// are never sampled or presented.
type ChannelsConfig struct {
	Temperature ChannelConfig `yaml:"temperature"`
	Humidity    ChannelConfig `yaml:"humidity"`
	Door        ChannelConfig `yaml:"door"`
	Motion      ChannelConfig `yaml:"motion"`
	Battery     ChannelConfig `yaml:"battery"`
}

// Default returns the configuration of a combined
// temperature/humidity/door/motion/battery node.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID:     "node-1",
			Metric: true,
		},
		MQTT: MQTTConfig{
			Host: "localhost",
			Port: 1883,
		},
		Measurement: MeasurementConfig{
			Interval:        60 * time.Second,
			ForceInterval:   30,
			BatteryInterval: 60,
			HumidityWindow:  2,
			DebounceWindow:  5 * time.Millisecond,
			ConfigWait:      3 * time.Second,
		},
		Channels: ChannelsConfig{
			Temperature: ChannelConfig{Enabled: true, Channel: 1, Threshold: 0.5},
			Humidity:    ChannelConfig{Enabled: true, Channel: 2, Threshold: 2.0},
			Door:        ChannelConfig{Enabled: true, Channel: 3, Pin: 2},
			Motion:      ChannelConfig{Enabled: true, Channel: 4, Pin: 3},
			Battery:     ChannelConfig{Enabled: true, Channel: 5},
		},
	}
}

// Load reads filename over the defaults. A missing file is not an
// error; missing fields keep their default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the documented valid ranges: thresholds >= 0,
// intervals >= 1 cycle, windows >= 1 sample.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id must not be empty")
	}
	if c.Measurement.Interval <= 0 {
		return fmt.Errorf("measurement.interval must be positive")
	}
	if c.Measurement.ForceInterval < 1 {
		return fmt.Errorf("measurement.force_interval must be >= 1")
	}
	if c.Measurement.BatteryInterval < 1 {
		return fmt.Errorf("measurement.battery_interval must be >= 1")
	}
	if c.Measurement.HumidityWindow < 1 {
		return fmt.Errorf("measurement.humidity_window must be >= 1")
	}
	if c.Measurement.DebounceWindow < 0 {
		return fmt.Errorf("measurement.debounce_window must not be negative")
	}
	for name, ch := range map[string]ChannelConfig{
		"temperature": c.Channels.Temperature,
		"humidity":    c.Channels.Humidity,
	} {
		if ch.Enabled && ch.Threshold < 0 {
			return fmt.Errorf("channels.%s.threshold must be >= 0", name)
		}
	}
	return nil
}

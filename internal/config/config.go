// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

// Package config loads the aodscan YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opticbench/aodscan/pkg/transport"
)

type Config struct {
	Lidar       LidarConfig       `yaml:"lidar"`
	AOD         AODConfig         `yaml:"aod"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Scan        ScanConfig        `yaml:"scan"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
}

type LidarConfig struct {
	Port          string                `yaml:"port"`
	Serial        transport.PortOptions `yaml:"serial"`
	ReadWindow    time.Duration         `yaml:"read_window"`
	Settle        time.Duration         `yaml:"settle"`
	MeasureSettle time.Duration         `yaml:"measure_settle"`
}

type AODConfig struct {
	Port             string                `yaml:"port"`
	Serial           transport.PortOptions `yaml:"serial"`
	Settle           time.Duration         `yaml:"settle"`
	CalibrationFile  string                `yaml:"calibration_file"`
	DefaultAmplitude float64               `yaml:"default_amplitude"`
}

type AcquisitionConfig struct {
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	PollTimeout          time.Duration `yaml:"poll_timeout"`
	StopSettle           time.Duration `yaml:"stop_settle"`
	AutoLaserOff         bool          `yaml:"auto_laser_off"`
	JoinTimeout          time.Duration `yaml:"join_timeout"`
}

type ScanConfig struct {
	PatternsFile string        `yaml:"patterns_file"`
	JoinTimeout  time.Duration `yaml:"join_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// LoadConfig reads path over the defaults, so a partial file keeps every
// value it does not mention.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// GetDefaultConfig returns the built-in configuration
func GetDefaultConfig() *Config {
	return &Config{
		Lidar: LidarConfig{
			Serial:        transport.LidarPortOptions(),
			ReadWindow:    50 * time.Millisecond,
			Settle:        100 * time.Millisecond,
			MeasureSettle: 500 * time.Millisecond,
		},
		AOD: AODConfig{
			Serial:           transport.DeflectorPortOptions(),
			Settle:           10 * time.Millisecond,
			DefaultAmplitude: 50,
		},
		Acquisition: AcquisitionConfig{
			MaxConsecutiveErrors: 5,
			PollInterval:         100 * time.Millisecond,
			PollTimeout:          50 * time.Millisecond,
			StopSettle:           100 * time.Millisecond,
			AutoLaserOff:         true,
			JoinTimeout:          time.Second,
		},
		Scan: ScanConfig{
			PatternsFile: "data/scan_patterns.json",
			JoinTimeout:  time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		MQTT: MQTTConfig{
			Topic:    "aodscan",
			ClientID: "aodscan",
			QoS:      0,
		},
	}
}

// Validate rejects values no component can work with
func (c *Config) Validate() error {
	if _, err := c.Lidar.Serial.Normalize(); err != nil {
		return fmt.Errorf("lidar serial: %w", err)
	}
	if _, err := c.AOD.Serial.Normalize(); err != nil {
		return fmt.Errorf("aod serial: %w", err)
	}
	if c.Acquisition.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("acquisition.max_consecutive_errors must be at least 1, got %d", c.Acquisition.MaxConsecutiveErrors)
	}
	if c.Acquisition.PollInterval <= 0 {
		return fmt.Errorf("acquisition.poll_interval must be positive")
	}
	if c.Acquisition.PollTimeout <= 0 || c.Acquisition.PollTimeout > c.Acquisition.PollInterval {
		return fmt.Errorf("acquisition.poll_timeout must be positive and no longer than poll_interval")
	}
	for name, d := range map[string]time.Duration{
		"lidar.read_window":        c.Lidar.ReadWindow,
		"lidar.settle":             c.Lidar.Settle,
		"lidar.measure_settle":     c.Lidar.MeasureSettle,
		"aod.settle":               c.AOD.Settle,
		"acquisition.stop_settle":  c.Acquisition.StopSettle,
		"acquisition.join_timeout": c.Acquisition.JoinTimeout,
		"scan.join_timeout":        c.Scan.JoinTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.AOD.DefaultAmplitude < 0 || c.AOD.DefaultAmplitude > 100 {
		return fmt.Errorf("aod.default_amplitude must be within 0-100, got %g", c.AOD.DefaultAmplitude)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aodscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Acquisition.MaxConsecutiveErrors)
	assert.Equal(t, 19200, cfg.Lidar.Serial.BaudRate)
	assert.Equal(t, 115200, cfg.AOD.Serial.BaudRate)
}

func TestLoadConfigPartial(t *testing.T) {
	path := writeConfig(t, `
lidar:
  port: /dev/ttyUSB1
acquisition:
  max_consecutive_errors: 3
  poll_interval: 200ms
log:
  level: debug
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Lidar.Port)
	assert.Equal(t, 3, cfg.Acquisition.MaxConsecutiveErrors)
	assert.Equal(t, 200*time.Millisecond, cfg.Acquisition.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched values keep their defaults
	assert.Equal(t, 50*time.Millisecond, cfg.Acquisition.PollTimeout)
	assert.Equal(t, 19200, cfg.Lidar.Serial.BaudRate)
	assert.True(t, cfg.Acquisition.AutoLaserOff)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero error threshold", "acquisition:\n  max_consecutive_errors: 0\n"},
		{"poll timeout longer than interval", "acquisition:\n  poll_timeout: 1s\n"},
		{"bad parity", "lidar:\n  serial:\n    parity: X\n"},
		{"amplitude over 100", "aod:\n  default_amplitude: 120\n"},
		{"bad qos", "mqtt:\n  qos: 3\n"},
		{"not yaml", "lidar: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

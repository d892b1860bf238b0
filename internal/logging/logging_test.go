// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opticbench/aodscan/internal/config"
)

func TestSetupLevelsAndFormat(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantLevel logrus.Level
		wantJSON  bool
	}{
		{"debug text", config.LogConfig{Level: "debug", Format: "text"}, logrus.DebugLevel, false},
		{"warn json", config.LogConfig{Level: "warn", Format: "json"}, logrus.WarnLevel, true},
		{"bad level", config.LogConfig{Level: "loud"}, logrus.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := Setup(tt.cfg)
			assert.Equal(t, tt.wantLevel, log.GetLevel())
			_, isJSON := log.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func TestSetupFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aodscan.log")
	log := Setup(config.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path})
	log.WithField("component", "test").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opticbench/aodscan/internal/scan"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"radius=1.5", " steps = 20", "dwell_ms=5"})
	require.NoError(t, err)
	assert.Equal(t, scan.Params{"radius": 1.5, "steps": 20, "dwell_ms": 5}, params)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params)

	_, err = parseParams([]string{"radius"})
	assert.ErrorContains(t, err, "want key=value")

	_, err = parseParams([]string{"=3"})
	assert.Error(t, err)

	_, err = parseParams([]string{"radius=wide"})
	assert.ErrorContains(t, err, "invalid value for radius")
}

func TestParseSwitch(t *testing.T) {
	for _, arg := range []string{"on", "ON", "1", "true", "enable"} {
		on, err := parseSwitch(arg)
		require.NoError(t, err)
		assert.True(t, on, arg)
	}
	for _, arg := range []string{"off", "Off", "0", "false", "disable"} {
		on, err := parseSwitch(arg)
		require.NoError(t, err)
		assert.False(t, on, arg)
	}
	_, err := parseSwitch("toggle")
	assert.Error(t, err)
}

func TestFormatParams(t *testing.T) {
	assert.Equal(t, "radius=2 steps=36", formatParams(scan.Params{"steps": 36, "radius": 2}))
	assert.Equal(t, "", formatParams(nil))
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFrame(t *testing.T) {
	tests := []struct {
		kind, value string
		want        []byte
	}{
		{"preamp", "on", []byte{0xAA, 0x01, 0xA2, 0x01, 0x1C}},
		{"PREAMP", "on", []byte{0xAA, 0x01, 0xA2, 0x01, 0x1C}},
		{"freq", "80", []byte{0xAA, 0x02, 0xA5, 0x40, 0x1F, 0x51}},
		{"amplitude", "50", []byte{0xAA, 0x02, 0xA7, 0xF4, 0x01, 0x93}},
	}

	for _, tt := range tests {
		t.Run(tt.kind+" "+tt.value, func(t *testing.T) {
			frame, err := buildFrame(tt.kind, tt.value)
			require.NoError(t, err)
			got, err := frame.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFrameErrors(t *testing.T) {
	_, err := buildFrame("laser", "on")
	assert.ErrorContains(t, err, "unknown frame kind")

	_, err = buildFrame("amp", "maybe")
	assert.Error(t, err)

	_, err = buildFrame("freq", "eighty")
	assert.ErrorContains(t, err, "invalid frequency")
}

func TestParseHex(t *testing.T) {
	want := []byte{0xAA, 0x01, 0xA2, 0x01, 0x1C}

	for _, args := range [][]string{
		{"AA01A2011C"},
		{"AA", "01", "A2", "01", "1C"},
		{"aa:01:a2:01:1c"},
		{"0xAA 0x01 0xA2 0x01 0x1C"},
	} {
		got, err := parseHex(args)
		require.NoError(t, err, "args %q", args)
		assert.Equal(t, want, got)
	}

	_, err := parseHex([]string{"AZ"})
	assert.ErrorContains(t, err, "invalid hex")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package lidar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDistance(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Distance
		wantErr string
	}{
		{"bare", "35.2m,180", Distance{35.2, 180}, ""},
		{"with colon", "D: 1.234m,0567\r\n", Distance{1.234, 567}, ""},
		{"echo then reading", "D\r\n: 12.500m,99\r\n", Distance{12.5, 99}, ""},
		{"empty", "", Distance{}, "no response"},
		{"whitespace", " \r\n", Distance{}, "no response"},
		{"garbage", "garbage", Distance{}, "unparseable"},
		{"integer distance", "35m,180", Distance{}, "unparseable"},
		{"status instead", "S: 23.4'C 3.10V", Distance{}, "status response received where distance expected"},
		{"malformed status instead", "S: --.-'C 3.10V", Distance{}, "status response received where distance expected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDistance(tt.input)
			if tt.wantErr != "" {
				var pe *ProtocolError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.wantErr, pe.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDistanceDeviceError(t *testing.T) {
	_, err := ParseDistance("Er05")
	var de *DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Er05", de.Code)
	assert.Equal(t, "Target out of measurement range", de.Message)
}

func TestDeviceErrorTable(t *testing.T) {
	codes := ErrorCodes()
	require.Len(t, codes, 15)
	for _, code := range codes {
		msg, ok := LookupError(code)
		require.True(t, ok, code)

		_, err := ParseDistance("D: " + code + "\r\n")
		var de *DeviceError
		require.ErrorAs(t, err, &de, code)
		assert.Equal(t, code, de.Code)
		assert.Equal(t, msg, de.Message)
	}

	_, ok := LookupError("Er99")
	assert.False(t, ok)
}

func TestDeviceErrorWinsOverDistance(t *testing.T) {
	reply := Classify("Er08 1.000m,10")
	assert.Equal(t, ReplyDeviceError, reply.Kind)
	assert.Equal(t, "Laser signal too weak", reply.Err.(*DeviceError).Message)
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{"apostrophe", "S: 23.4'C  3.10V", Status{Temperature: 23.4, Voltage: 3.10}, false},
		{"degree sign", "S: 19.0°C 2.95V\r\n", Status{Temperature: 19.0, Voltage: 2.95}, false},
		{"bare C", "24.C 3.2V", Status{Temperature: 24, Voltage: 3.2}, false},
		{"below zero", "temp -5.0'C 3.1V", Status{Temperature: -5, Voltage: 3.1}, false},
		{"sensor floor", "S: -20.0°C 3.05V", Status{Temperature: -20, Voltage: 3.05}, false},
		{"voltage missing", "S: 23.4'C", Status{Temperature: 23.4, Voltage: DefaultVoltage, VoltageDefaulted: true}, false},
		{"temperature missing", "S: 3.10V", Status{}, true},
		{"empty", "", Status{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				var pe *ProtocolError
				assert.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Temperature, got.Temperature, 1e-9)
			assert.InDelta(t, tt.want.Voltage, got.Voltage, 1e-9)
			assert.Equal(t, tt.want.VoltageDefaulted, got.VoltageDefaulted)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  ReplyKind
	}{
		{"", ReplyEmpty},
		{"Er01", ReplyDeviceError},
		{"S: 23.4'C 3.10V", ReplyStatus},
		{": 2.000m,300", ReplyDistance},
		{"O,OK!", ReplyUnparseable},
		{"garbage", ReplyUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			got := Classify(tt.input)
			assert.Equal(t, tt.want, got.Kind)
			if tt.want == ReplyDistance || tt.want == ReplyStatus {
				assert.NoError(t, got.Err)
			} else {
				assert.Error(t, got.Err)
			}
		})
	}
}

func TestIsAcknowledged(t *testing.T) {
	assert.True(t, IsAcknowledged("O,OK!\r\n"))
	assert.True(t, IsAcknowledged("C,OK!"))
	assert.False(t, IsAcknowledged("O,ERR"))
	assert.False(t, IsAcknowledged(""))
}

func TestCommandWire(t *testing.T) {
	assert.Equal(t, []byte("O\r\n"), LaserOn.Wire())
	assert.Equal(t, []byte("X\r\n"), StopMeasure.Wire())
	assert.True(t, FastMeasure.IsMeasure())
	assert.False(t, ReadStatus.IsMeasure())
	assert.Equal(t, "SLOW_MEASURE", SlowMeasure.String())
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

// Package lidar talks to a laser distance sensor over its line-oriented
// ASCII protocol: single-character commands terminated by CRLF, replies
// carrying a distance and quality, a status line, or an Erxx code.
package lidar

import "fmt"

// Command is a single-character sensor command
type Command byte

// Sensor commands
const (
	LaserOn     Command = 'O'
	LaserOff    Command = 'C'
	ReadStatus  Command = 'S'
	AutoMeasure Command = 'D'
	SlowMeasure Command = 'M'
	FastMeasure Command = 'F'
	Version     Command = 'V'
	PowerOff    Command = 'X'

	// StopMeasure ends continuous measurement. The sensor has no dedicated
	// stop command; powering the module off is what ends the stream.
	StopMeasure = PowerOff
)

// Terminator follows every command on the wire
const Terminator = "\r\n"

// AckToken marks a successful laser on/off reply
const AckToken = ",OK!"

// IsMeasure reports whether the command triggers a measurement
func (c Command) IsMeasure() bool {
	return c == AutoMeasure || c == SlowMeasure || c == FastMeasure
}

// Wire returns the bytes sent for the command
func (c Command) Wire() []byte {
	return []byte(string(rune(c)) + Terminator)
}

func (c Command) String() string {
	switch c {
	case LaserOn:
		return "LASER_ON"
	case LaserOff:
		return "LASER_OFF"
	case ReadStatus:
		return "READ_STATUS"
	case AutoMeasure:
		return "AUTO_MEASURE"
	case SlowMeasure:
		return "SLOW_MEASURE"
	case FastMeasure:
		return "FAST_MEASURE"
	case Version:
		return "VERSION"
	case PowerOff:
		return "POWER_OFF"
	default:
		return fmt.Sprintf("UNKNOWN(%q)", rune(c))
	}
}

// errorEntry maps a device error token to its cause
type errorEntry struct {
	Code    string
	Message string
}

// errorTable lists the device error tokens in match order
var errorTable = []errorEntry{
	{"Er01", "Battery voltage too low (must be >= 2.0V)"},
	{"Er02", "Internal error"},
	{"Er03", "Module temperature too low (< -20°C)"},
	{"Er04", "Module temperature too high (> +40°C)"},
	{"Er05", "Target out of measurement range"},
	{"Er06", "Invalid measurement result"},
	{"Er07", "Background light too strong"},
	{"Er08", "Laser signal too weak"},
	{"Er09", "Laser signal too strong"},
	{"Er10", "Hardware malfunction 1"},
	{"Er11", "Hardware malfunction 2"},
	{"Er12", "Hardware malfunction 3"},
	{"Er13", "Hardware malfunction 4"},
	{"Er14", "Hardware malfunction 5"},
	{"Er15", "Laser signal unstable"},
}

// LookupError returns the message for a device error code
func LookupError(code string) (string, bool) {
	for _, e := range errorTable {
		if e.Code == code {
			return e.Message, true
		}
	}
	return "", false
}

// ErrorCodes returns every known device error code in order
func ErrorCodes() []string {
	codes := make([]string, len(errorTable))
	for i, e := range errorTable {
		codes[i] = e.Code
	}
	return codes
}

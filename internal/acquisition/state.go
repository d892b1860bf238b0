// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

// Package acquisition drives the distance sensor and the deflector through
// one session state machine.
package acquisition

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opticbench/aodscan/pkg/lidar"
)

// State is the acquisition state
type State int

const (
	Disconnected State = iota
	Connected
	SingleShot
	Continuous
	Scanning
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	case SingleShot:
		return "SINGLE_SHOT"
	case Continuous:
		return "CONTINUOUS"
	case Scanning:
		return "SCANNING"
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// Mode selects the continuous measurement rate
type Mode string

const (
	ModeFast Mode = "fast"
	ModeSlow Mode = "slow"
	ModeAuto Mode = "auto"
)

// ParseMode accepts fast, slow and auto, case-insensitive
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFast, ModeSlow, ModeAuto:
		return m, nil
	}
	return "", fmt.Errorf("unknown measurement mode %q (fast, slow, auto)", s)
}

// command returns the sensor command for the mode. The sensor has no
// automatic continuous rate, so auto runs as slow.
func (m Mode) command() (lidar.Command, Mode) {
	if m == ModeFast {
		return lidar.FastMeasure, ModeFast
	}
	return lidar.SlowMeasure, ModeSlow
}

// Session is the state of one connection, from Connect to Disconnect
type Session struct {
	ID                uuid.UUID
	Port              string
	State             State
	ConsecutiveErrors int
	Mode              Mode
	PatternID         string
	LaserOn           bool
	StartedAt         time.Time
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/opticbench/aodscan/internal/metrics"
	"github.com/opticbench/aodscan/pkg/aod"
	"github.com/opticbench/aodscan/pkg/lidar"
	"github.com/opticbench/aodscan/pkg/transport"
)

// simulatedDistance is the mean range reported by the simulated sensor
const simulatedDistance = 1.5

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("AODSCAN_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// sensorTarget returns the name handed to the opener for the sensor
func sensorTarget() string {
	switch {
	case simulate:
		return "simulator"
	case wsURL != "":
		return wsURL
	}
	return cfg.Lidar.Port
}

// describeSensor returns a one-line description of the sensor connection
func describeSensor() string {
	switch {
	case simulate:
		return "Simulator"
	case wsURL != "":
		return fmt.Sprintf("WebSocket: %s", wsURL)
	}
	return fmt.Sprintf("Serial: %s @ %s", cfg.Lidar.Port, cfg.Lidar.Serial)
}

// openSensorLink opens the simulator, WebSocket or serial link based on flags
func openSensorLink(target string) (transport.Link, error) {
	if simulate {
		return lidar.NewSimulator(simulatedDistance, time.Now().UnixNano()).Link(), nil
	}

	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		link, err := transport.OpenWebSocket(target, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, err
		}
		return link, nil
	}

	if target == "" {
		return nil, fmt.Errorf("either --port, --url or --simulate must be specified")
	}
	link, err := transport.OpenSerial(target, cfg.Lidar.Serial)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// openDeflectorLink opens the deflector port, or an in-memory link when
// simulating
func openDeflectorLink() (transport.Link, string, error) {
	if simulate {
		return transport.NewFakeLink(), "Simulator", nil
	}
	if cfg.AOD.Port == "" {
		return nil, "", fmt.Errorf("--aod-port or --simulate must be specified")
	}
	link, err := transport.OpenSerial(cfg.AOD.Port, cfg.AOD.Serial)
	if err != nil {
		return nil, "", err
	}
	return link, fmt.Sprintf("Serial: %s @ %s", cfg.AOD.Port, cfg.AOD.Serial), nil
}

func loadCalibration() (*aod.Calibration, error) {
	if cfg.AOD.CalibrationFile != "" {
		return aod.LoadCalibration(cfg.AOD.CalibrationFile)
	}
	return aod.DefaultCalibration()
}

// openDeflector opens the deflector with the configured calibration. m may
// be nil.
func openDeflector(m *metrics.Metrics) (*aod.Deflector, string, error) {
	cal, err := loadCalibration()
	if err != nil {
		return nil, "", err
	}
	link, info, err := openDeflectorLink()
	if err != nil {
		return nil, "", err
	}

	opts := []aod.DeflectorOption{
		aod.WithSettle(cfg.AOD.Settle),
		aod.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, aod.WithFrameHook(func(f *aod.Frame) {
			m.FramesSent.WithLabelValues(aod.FormatFrameType(f.Type)).Inc()
		}))
	}
	return aod.NewDeflector(link, cal, opts...), info, nil
}

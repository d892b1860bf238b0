// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/internal/config"
	"github.com/opticbench/aodscan/internal/logging"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int
	aodPort  string

	calibrationFile string

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	logLevel string
	simulate bool

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "aodscan",
	Short: "Beam steering and distance acquisition tool",
	Long: `aodscan drives an acousto-optic deflector and a serial laser distance
sensor: single and continuous measurements, calibrated beam steering and
scan patterns, frame inspection and recorded session statistics.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 19200] [--aod-port /dev/ttyUSB1]
  WebSocket: --url ws://host/path [--username user]
  Simulator: --simulate

For WebSocket authentication, the password is read from the AODSCAN_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Distance sensor serial port")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 19200, "Distance sensor baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&aodPort, "aod-port", "", "Deflector serial port")
	rootCmd.PersistentFlags().StringVar(&calibrationFile, "calibration", "", "Deflector calibration table (TSV)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL of a sensor bridge (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use simulated sensor and deflector")
}

// loadSettings reads the config file and lays the command line flags over it
func loadSettings(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.GetDefaultConfig()
	}

	if portName != "" {
		cfg.Lidar.Port = portName
	}
	if cmd.Flags().Changed("baud") {
		cfg.Lidar.Serial.BaudRate = baudRate
	}
	if aodPort != "" {
		cfg.AOD.Port = aodPort
	}
	if calibrationFile != "" {
		cfg.AOD.CalibrationFile = calibrationFile
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = logging.Setup(cfg.Log)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

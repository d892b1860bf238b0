// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/internal/measure"
)

var (
	measureCount    int
	measureInterval time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read sensor temperature and supply voltage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(sessionOptions{})
		if err != nil {
			return err
		}
		defer s.close()

		status, err := s.ctrl.ReadStatus()
		if err != nil {
			return err
		}
		fmt.Printf("Temperature: %.1f°C\n", status.Temperature)
		if status.VoltageDefaulted {
			fmt.Printf("Voltage:     %.2fV (not reported, default)\n", status.Voltage)
		} else {
			fmt.Printf("Voltage:     %.2fV\n", status.Voltage)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Read the sensor firmware version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(sessionOptions{})
		if err != nil {
			return err
		}
		defer s.close()

		v, err := s.ctrl.Version()
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Take single-shot distance measurements",
	Args:  cobra.NoArgs,
	RunE:  runMeasure,
}

var laserCmd = &cobra.Command{
	Use:       "laser on|off|toggle",
	Short:     "Switch the sensor laser",
	Long: `Switch the sensor laser on or off. The laser state is not readable from
the sensor, so every new connection starts from off and toggle switches it on.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "toggle"},
	RunE:      runLaser,
}

func init() {
	measureCmd.Flags().IntVarP(&measureCount, "count", "n", 1, "Number of measurements")
	measureCmd.Flags().DurationVar(&measureInterval, "interval", 0, "Pause between measurements")

	rootCmd.AddCommand(statusCmd, versionCmd, measureCmd, laserCmd)
}

func formatMeasurement(m measure.Measurement) string {
	return fmt.Sprintf("[%s] %.3f m  quality %d", m.Timestamp.Format("15:04:05.000"), m.Distance, m.Quality)
}

func runMeasure(cmd *cobra.Command, args []string) error {
	if measureCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	s, err := newSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var distances []float64
	failures := 0
	for i := 0; i < measureCount; i++ {
		if i > 0 && measureInterval > 0 {
			time.Sleep(measureInterval)
		}
		m, err := s.ctrl.MeasureOnce(ctx)
		if err != nil {
			if measureCount == 1 {
				return err
			}
			failures++
			fmt.Printf("[ERROR] %v\n", err)
			continue
		}
		distances = append(distances, m.Distance)
		fmt.Println(formatMeasurement(m))
	}

	if measureCount > 1 {
		printSummary(measure.Summarize(distances), failures)
	}
	return nil
}

func printSummary(sum measure.Summary, failures int) {
	fmt.Printf("\n%d measurements, %d failed\n", sum.Count, failures)
	if sum.Count == 0 {
		return
	}
	fmt.Printf("  Mean:   %.4f m\n", sum.Mean)
	fmt.Printf("  Median: %.4f m\n", sum.Median)
	fmt.Printf("  StdDev: %.4f m\n", sum.StdDev)
	fmt.Printf("  Range:  %.4f .. %.4f m\n", sum.Min, sum.Max)
}

func runLaser(cmd *cobra.Command, args []string) error {
	// keep the laser in the requested state on exit
	cfg.Acquisition.AutoLaserOff = false
	s, err := newSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.close()

	if args[0] == "toggle" {
		on, err := s.ctrl.ToggleLaser()
		if err != nil {
			return err
		}
		fmt.Printf("Laser %s\n", onOff(on))
		return nil
	}

	on, err := parseSwitch(args[0])
	if err != nil {
		return err
	}
	if err := s.ctrl.SetLaser(on); err != nil {
		return err
	}
	fmt.Printf("Laser %s\n", onOff(on))
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

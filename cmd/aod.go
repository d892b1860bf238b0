// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/pkg/aod"
)

var autoAmplitude bool

var aodCmd = &cobra.Command{
	Use:   "aod",
	Short: "Drive the acousto-optic deflector",
	Long: `Send single commands to the deflector.

start and stop switch the RF chain (preamplifier and amplifier). angle, freq
and amplitude leave the RF chain running after the command is sent.`,
}

var aodStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Enable preamplifier and amplifier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeflector(func(d *aod.Deflector) error {
			if err := d.Start(); err != nil {
				return err
			}
			fmt.Println("RF chain enabled")
			return nil
		})
	},
}

var aodStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Disable amplifier and preamplifier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeflector(func(d *aod.Deflector) error {
			if err := d.Stop(); err != nil {
				return err
			}
			fmt.Println("RF chain disabled")
			return nil
		})
	},
}

var aodAngleCmd = &cobra.Command{
	Use:   "angle <degrees>",
	Short: "Steer the beam to a calibrated angle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		angle, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid angle: %v", err)
		}
		return withDeflector(func(d *aod.Deflector) error {
			freq, err := d.Calibration().AngleToFrequency(angle)
			if err != nil {
				lo, hi := d.Calibration().AngleRange()
				return fmt.Errorf("%w: %g not in [%g, %g]", err, angle, lo, hi)
			}
			if err := d.SetAngle(angle); err != nil {
				return err
			}
			fmt.Printf("Angle %.4f -> %.3f MHz\n", angle, freq)
			if autoAmplitude {
				if err := d.SetAmplitudeForAngle(angle); err != nil {
					return err
				}
				fmt.Printf("Amplitude %.1f%%\n", d.Calibration().FrequencyToAmplitude(freq))
			}
			return nil
		})
	},
}

var aodFreqCmd = &cobra.Command{
	Use:   "freq <MHz>",
	Short: "Set the drive frequency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid frequency: %v", err)
		}
		return withDeflector(func(d *aod.Deflector) error {
			if err := d.SetFrequency(freq); err != nil {
				return err
			}
			fmt.Printf("Frequency %.2f MHz (angle %.4f)\n", freq, d.Calibration().FrequencyToAngle(freq))
			return nil
		})
	},
}

var aodAmplitudeCmd = &cobra.Command{
	Use:   "amplitude <percent>",
	Short: "Set the drive amplitude",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pct, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid amplitude: %v", err)
		}
		return withDeflector(func(d *aod.Deflector) error {
			if err := d.SetAmplitude(pct); err != nil {
				return err
			}
			fmt.Printf("Amplitude %.1f%%\n", pct)
			return nil
		})
	},
}

func init() {
	aodAngleCmd.Flags().BoolVar(&autoAmplitude, "auto-amplitude", false, "Also set the calibrated amplitude for the angle")

	aodCmd.AddCommand(aodStartCmd, aodStopCmd, aodAngleCmd, aodFreqCmd, aodAmplitudeCmd)
	rootCmd.AddCommand(aodCmd)
}

// withDeflector runs fn on a freshly opened deflector and detaches it
// afterwards so the setpoint stays in effect
func withDeflector(fn func(d *aod.Deflector) error) error {
	d, info, err := openDeflector(nil)
	if err != nil {
		return err
	}
	logger.Debugf("deflector: %s", info)
	defer d.Detach()
	return fn(d)
}

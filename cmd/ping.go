// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/pkg/lidar"
)

var (
	pingTimeout time.Duration
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the sensor link with repeated version queries",
	Long: `Send version queries to the rangefinder and report the round trip time.

This checks the link without touching the laser or starting a measurement.
It is useful for verifying:
  - The serial port or WebSocket bridge is reachable
  - HTTP Basic authentication works
  - The sensor answers commands

Returns an error when any query fails or times out.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 2*time.Second, "Timeout for each query")
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 3, "Number of queries to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	link, err := openSensorLink(sensorTarget())
	if err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	defer link.Close()

	sensor := lidar.NewSensor(link,
		lidar.WithLogger(logger),
		lidar.WithSettle(cfg.Lidar.Settle),
		lidar.WithReadWindow(cfg.Lidar.ReadWindow),
	)

	fmt.Printf("aodscan - Sensor Ping\n")
	fmt.Printf("Connection: %s\n", describeSensor())
	fmt.Printf("Timeout: %v per query\n", pingTimeout)
	fmt.Printf("Count: %d queries\n\n", pingCount)

	type result struct {
		version string
		err     error
	}

	successCount := 0
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		results := make(chan result, 1)
		go func() {
			v, err := sensor.Version()
			results <- result{version: v, err: err}
		}()

		select {
		case r := <-results:
			if r.err != nil {
				fmt.Printf("FAILED: %v\n", r.err)
				break
			}
			fmt.Printf("reply %q, rtt=%v\n", r.version, time.Since(startTime).Round(time.Millisecond))
			successCount++

		case <-time.After(pingTimeout):
			fmt.Printf("TIMEOUT (no reply in %v)\n", pingTimeout)
			// the pending query still owns the link
			<-results
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	loss := 0.0
	if pingCount > 0 {
		loss = float64(failCount) / float64(pingCount) * 100
	}
	fmt.Printf("%d queries sent, %d replies received, %.0f%% loss\n", pingCount, successCount, loss)

	if failCount > 0 {
		return fmt.Errorf("%d of %d queries failed", failCount, pingCount)
	}
	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/internal/measure"
)

var (
	outlierThreshold float64
	movingAvgWindow  int
)

var statsCmd = &cobra.Command{
	Use:   "stats <file.cbor>",
	Short: "Summarize a recorded measurement session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Float64Var(&outlierThreshold, "outlier-threshold", measure.DefaultOutlierThreshold, "Outlier threshold in standard deviations")
	statsCmd.Flags().IntVar(&movingAvgWindow, "window", measure.DefaultMovingAvgWindow, "Moving average window")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	records, err := measure.ReadRecords(file)
	if len(records) == 0 {
		if err != nil {
			return err
		}
		fmt.Println("No measurements recorded")
		return nil
	}
	if err != nil {
		// keep what was readable from a truncated file
		fmt.Printf("[WARN] %v\n", err)
	}

	history := measure.NewLog()
	for _, r := range records {
		history.Add(r.Measurement())
	}
	distances := history.Distances(0)
	qualities := history.Qualities(0)
	intervals := history.Intervals(0)

	first := records[0].Measurement().Timestamp
	last := records[len(records)-1].Measurement().Timestamp
	fmt.Printf("File:     %s\n", args[0])
	if records[0].Session != "" {
		fmt.Printf("Session:  %s\n", records[0].Session)
	}
	fmt.Printf("Span:     %s .. %s (%s)\n",
		first.Format("2006-01-02 15:04:05.000"), last.Format("15:04:05.000"), last.Sub(first).Round(time.Millisecond))

	sum := measure.Summarize(distances)
	printSummary(sum, 0)

	q := measure.Summarize(qualities)
	fmt.Printf("  Quality: mean %.0f, range %.0f .. %.0f\n", q.Mean, q.Min, q.Max)

	if len(intervals) > 0 {
		iv := measure.Summarize(intervals)
		if iv.Mean > 0 {
			fmt.Printf("  Rate:    %.1f Hz\n", 1/iv.Mean)
		}
	}

	outliers, cleaned := measure.Outliers(distances, outlierThreshold)
	fmt.Printf("\nOutliers (> %.1f sigma): %d\n", outlierThreshold, len(outliers))
	if len(outliers) > 0 {
		c := measure.Summarize(cleaned)
		fmt.Printf("  Cleaned mean %.4f m, stddev %.4f m\n", c.Mean, c.StdDev)
	}

	if avg := measure.MovingAverage(distances, movingAvgWindow); len(avg) > 0 {
		fmt.Printf("Moving average (%d): last %.4f m\n", movingAvgWindow, avg[len(avg)-1])
	}
	if rates := measure.RateOfChange(distances, intervals); len(rates) > 0 {
		r := measure.Summarize(rates)
		fmt.Printf("Rate of change: mean %.4f m/s, max |%.4f| m/s\n", r.Mean, maxAbs(r.Min, r.Max))
	}
	return nil
}

func maxAbs(a, b float64) float64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package measure

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Analysis defaults
const (
	DefaultOutlierThreshold = 2.0 // standard deviations
	DefaultMovingAvgWindow  = 5
)

// Summary holds descriptive statistics. StdDev is the population
// standard deviation.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	StdDev float64
}

// Summarize computes a Summary; an empty input yields a zero Summary
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Count:  len(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		Median: median(values),
		StdDev: std,
	}
}

// median averages the two middle values for even lengths
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Outliers splits values into those more than k standard deviations from
// the mean and the rest. Fewer than three values are never outliers.
func Outliers(values []float64, k float64) (outliers, cleaned []float64) {
	if len(values) < 3 {
		return nil, append([]float64(nil), values...)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	threshold := k * std
	for _, v := range values {
		if math.Abs(v-mean) > threshold {
			outliers = append(outliers, v)
		} else {
			cleaned = append(cleaned, v)
		}
	}
	return outliers, cleaned
}

// MovingAverage returns the trailing mean over window values. The first
// points average whatever is available.
func MovingAverage(values []float64, window int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		out[i] = stat.Mean(values[start:i+1], nil)
	}
	return out
}

// RateOfChange returns the per-second change between consecutive values.
// intervals[i] is the time between values[i] and values[i+1]; a
// non-positive interval yields 0. Mismatched lengths yield nil.
func RateOfChange(values, intervals []float64) []float64 {
	if len(values) < 2 || len(values) != len(intervals)+1 {
		return nil
	}
	rates := make([]float64, len(intervals))
	for i := 1; i < len(values); i++ {
		if dt := intervals[i-1]; dt > 0 {
			rates[i-1] = (values[i] - values[i-1]) / dt
		}
	}
	return rates
}

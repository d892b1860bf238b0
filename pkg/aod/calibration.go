// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

//go:embed aod.dev
var defaultCalibration []byte

// ErrAngleOutOfRange is returned when no frequency in the table produces the
// requested angle.
var ErrAngleOutOfRange = errors.New("angle outside calibrated range")

// Root solver settings
const (
	solverSubdivisions = 16
	solverIterations   = 100
	solverTolerance    = 1e-9
)

// Sample is one calibration row
type Sample struct {
	Frequency float64
	Angle     float64
	Amplitude float64
}

// Calibration maps deflection angle to drive frequency and frequency to
// drive amplitude. It is immutable after construction.
type Calibration struct {
	samples     []Sample
	frequencies []float64
	angles      []float64
	angle       interp.FittablePredictor
	amplitude   interp.PiecewiseLinear
}

// NewCalibration builds a calibration from samples ordered by strictly
// increasing frequency.
func NewCalibration(samples []Sample) (*Calibration, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("calibration needs at least 2 samples, got %d", len(samples))
	}

	c := &Calibration{
		samples:     append([]Sample(nil), samples...),
		frequencies: make([]float64, len(samples)),
		angles:      make([]float64, len(samples)),
	}
	amplitudes := make([]float64, len(samples))
	for i, s := range samples {
		if math.IsNaN(s.Frequency) || math.IsNaN(s.Angle) || math.IsNaN(s.Amplitude) {
			return nil, fmt.Errorf("calibration row %d contains NaN", i+1)
		}
		if i > 0 && s.Frequency <= samples[i-1].Frequency {
			return nil, fmt.Errorf("calibration frequencies must be strictly increasing (row %d: %g after %g)", i+1, s.Frequency, samples[i-1].Frequency)
		}
		c.frequencies[i] = s.Frequency
		c.angles[i] = s.Angle
		amplitudes[i] = s.Amplitude
	}

	// Monotone cubic through the samples; two points degenerate to a line.
	if len(samples) == 2 {
		c.angle = &interp.PiecewiseLinear{}
	} else {
		c.angle = &interp.FritschButland{}
	}
	if err := c.angle.Fit(c.frequencies, c.angles); err != nil {
		return nil, fmt.Errorf("failed to fit angle curve: %w", err)
	}
	if err := c.amplitude.Fit(c.frequencies, amplitudes); err != nil {
		return nil, fmt.Errorf("failed to fit amplitude curve: %w", err)
	}

	return c, nil
}

// ParseCalibration reads a tab-separated table with a header naming the
// Frequency, Angle and Amplitude columns. Lines starting with # are ignored.
func ParseCalibration(r io.Reader) (*Calibration, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration header: %w", err)
	}

	columns := map[string]int{"frequency": -1, "angle": -1, "amplitude": -1}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := columns[key]; ok {
			columns[key] = i
		}
	}
	for name, idx := range columns {
		if idx < 0 {
			return nil, fmt.Errorf("calibration header missing %q column", name)
		}
	}

	var samples []Sample
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read calibration row: %w", err)
		}

		var values [3]float64
		for j, name := range []string{"frequency", "angle", "amplitude"} {
			idx := columns[name]
			if idx >= len(record) {
				return nil, fmt.Errorf("calibration row %d: missing %s", line, name)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("calibration row %d: invalid %s %q", line, name, record[idx])
			}
			values[j] = v
		}
		samples = append(samples, Sample{Frequency: values[0], Angle: values[1], Amplitude: values[2]})
	}

	return NewCalibration(samples)
}

// LoadCalibration reads a calibration file from disk
func LoadCalibration(path string) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open calibration file: %w", err)
	}
	defer f.Close()

	cal, err := ParseCalibration(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cal, nil
}

// DefaultCalibration returns the calibration table shipped with the driver
func DefaultCalibration() (*Calibration, error) {
	return ParseCalibration(bytes.NewReader(defaultCalibration))
}

// Samples returns a copy of the calibration rows
func (c *Calibration) Samples() []Sample {
	return append([]Sample(nil), c.samples...)
}

// FrequencyRange returns the lowest and highest calibrated frequency
func (c *Calibration) FrequencyRange() (float64, float64) {
	return c.frequencies[0], c.frequencies[len(c.frequencies)-1]
}

// AngleRange returns the smallest and largest sampled angle
func (c *Calibration) AngleRange() (float64, float64) {
	return floats.Min(c.angles), floats.Max(c.angles)
}

// FrequencyToAngle evaluates the interpolated angle at frequency f
func (c *Calibration) FrequencyToAngle(f float64) float64 {
	return c.angle.Predict(f)
}

// FrequencyToAmplitude linearly interpolates the amplitude at frequency f,
// clamped to the end samples outside the table.
func (c *Calibration) FrequencyToAmplitude(f float64) float64 {
	return c.amplitude.Predict(f)
}

// AngleToFrequency solves the angle curve for the lowest frequency that
// produces angle.
func (c *Calibration) AngleToFrequency(angle float64) (float64, error) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0, fmt.Errorf("%w: %g", ErrAngleOutOfRange, angle)
	}

	g := func(f float64) float64 { return c.angle.Predict(f) - angle }

	for i := 0; i < len(c.frequencies)-1; i++ {
		lo, hi := c.frequencies[i], c.frequencies[i+1]
		step := (hi - lo) / solverSubdivisions
		a := lo
		ga := g(a)
		for k := 1; k <= solverSubdivisions; k++ {
			if ga == 0 {
				return a, nil
			}
			b := lo + float64(k)*step
			if k == solverSubdivisions {
				b = hi
			}
			gb := g(b)
			if math.Signbit(ga) != math.Signbit(gb) || gb == 0 {
				return bisect(g, a, b, ga), nil
			}
			a, ga = b, gb
		}
	}
	if g(c.frequencies[len(c.frequencies)-1]) == 0 {
		return c.frequencies[len(c.frequencies)-1], nil
	}

	lo, hi := c.AngleRange()
	return 0, fmt.Errorf("%w: %g not in [%g, %g]", ErrAngleOutOfRange, angle, lo, hi)
}

// bisect narrows a bracketing interval [a, b] around a root of g
func bisect(g func(float64) float64, a, b, ga float64) float64 {
	for i := 0; i < solverIterations && b-a > solverTolerance; i++ {
		mid := a + (b-a)/2
		gm := g(mid)
		if gm == 0 {
			return mid
		}
		if math.Signbit(gm) == math.Signbit(ga) {
			a, ga = mid, gm
		} else {
			b = mid
		}
	}
	return a + (b-a)/2
}

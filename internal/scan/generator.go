// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

// Package scan drives a deflector through angle sequences: point, line,
// square, circle and zigzag patterns, run by a cancellable worker.
package scan

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ZigzagSampleRate is the zigzag setpoint rate in Hz
const ZigzagSampleRate = 20

// ErrInvalidParams is returned for pattern parameters that cannot produce
// a scan
var ErrInvalidParams = errors.New("invalid scan parameters")

// Step is one setpoint and the pause that follows it
type Step struct {
	Angle float64
	Delay time.Duration
}

// Generator produces setpoints. Next receives the time since the scan
// started and returns false once a finite pattern is exhausted.
type Generator interface {
	Next(elapsed time.Duration) (Step, bool)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// sequence replays a fixed list of angles, optionally forever
type sequence struct {
	angles []float64
	delay  time.Duration
	loop   bool
	i      int
}

func (s *sequence) Next(time.Duration) (Step, bool) {
	if s.i >= len(s.angles) {
		if !s.loop || len(s.angles) == 0 {
			return Step{}, false
		}
		s.i = 0
	}
	step := Step{Angle: s.angles[s.i], Delay: s.delay}
	s.i++
	return step, true
}

// linspace returns n evenly spaced values from start to end inclusive
func linspace(start, end float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, end)
}

// bounce appends the reversed sequence, so the scan runs there and back
func bounce(angles []float64) []float64 {
	out := make([]float64, 0, 2*len(angles))
	out = append(out, angles...)
	for i := len(angles) - 1; i >= 0; i-- {
		out = append(out, angles[i])
	}
	return out
}

// Point holds a single angle and finishes
func Point(angle float64) (Generator, error) {
	if !finite(angle) {
		return nil, invalid("angle %g", angle)
	}
	return &sequence{angles: []float64{angle}}, nil
}

// Line sweeps from start to end in steps setpoints, then back, forever
func Line(start, end, speed float64, steps int) (Generator, error) {
	if !finite(start, end, speed) {
		return nil, invalid("non-finite line parameter")
	}
	if steps < 1 {
		return nil, invalid("line steps %d < 1", steps)
	}
	if speed <= 0 {
		return nil, invalid("line speed %g <= 0", speed)
	}
	return &sequence{
		angles: bounce(linspace(start, end, steps)),
		delay:  seconds(math.Abs(end-start) / (float64(steps) * speed)),
		loop:   true,
	}, nil
}

// Square sweeps across [-size, +size] in steps setpoints, then back, forever
func Square(size, speed float64, steps int) (Generator, error) {
	if !finite(size, speed) {
		return nil, invalid("non-finite square parameter")
	}
	if steps < 2 {
		return nil, invalid("square steps %d < 2", steps)
	}
	if speed <= 0 {
		return nil, invalid("square speed %g <= 0", speed)
	}
	if size < 0 {
		return nil, invalid("square size %g < 0", size)
	}
	points := make([]float64, steps)
	for i := range points {
		points[i] = -size + float64(i)*2*size/float64(steps-1)
	}
	return &sequence{
		angles: bounce(points),
		delay:  seconds(2 * size / (float64(steps) * speed)),
		loop:   true,
	}, nil
}

// Circle projects a circle onto the single deflection axis:
// radius·sin(2πi/steps), looping forward only.
func Circle(radius, speed float64, steps int) (Generator, error) {
	if !finite(radius, speed) {
		return nil, invalid("non-finite circle parameter")
	}
	if steps < 1 {
		return nil, invalid("circle steps %d < 1", steps)
	}
	if speed <= 0 {
		return nil, invalid("circle speed %g <= 0", speed)
	}
	if radius < 0 {
		return nil, invalid("circle radius %g < 0", radius)
	}
	angles := make([]float64, steps)
	for i := range angles {
		angles[i] = radius * math.Sin(2*math.Pi*float64(i)/float64(steps))
	}
	return &sequence{
		angles: angles,
		delay:  seconds(2 * math.Pi * radius / (float64(steps) * speed)),
		loop:   true,
	}, nil
}

type zigzag struct {
	amplitude float64
	frequency float64
	duration  time.Duration
}

// Zigzag follows amplitude·sin(2πf·t) at ZigzagSampleRate for duration
// seconds of wall time, then finishes.
func Zigzag(amplitude, frequency, duration float64) (Generator, error) {
	if !finite(amplitude, frequency, duration) {
		return nil, invalid("non-finite zigzag parameter")
	}
	if duration < 0 {
		return nil, invalid("zigzag duration %g < 0", duration)
	}
	return &zigzag{amplitude: amplitude, frequency: frequency, duration: seconds(duration)}, nil
}

func (z *zigzag) Next(elapsed time.Duration) (Step, bool) {
	if elapsed >= z.duration {
		return Step{}, false
	}
	t := elapsed.Seconds()
	return Step{
		Angle: z.amplitude * math.Sin(2*math.Pi*z.frequency*t),
		Delay: time.Second / ZigzagSampleRate,
	}, true
}

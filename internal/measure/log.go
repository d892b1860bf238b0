// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

// Package measure keeps the measurement history of a session, derives
// statistics from it and records it to disk.
package measure

import (
	"sync"
	"time"
)

// Measurement is one distance reading
type Measurement struct {
	Timestamp time.Time
	Distance  float64 // meters
	Quality   int
}

// Log is an append-only, timestamp ordered measurement history
type Log struct {
	mu           sync.RWMutex
	measurements []Measurement
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{}
}

// Add appends m and returns the new length
func (l *Log) Add(m Measurement) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.measurements = append(l.measurements, m)
	return len(l.measurements)
}

// OnMeasurement lets the log subscribe to acquisition events
func (l *Log) OnMeasurement(m Measurement) {
	l.Add(m)
}

// Len returns the number of measurements
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.measurements)
}

// Last returns the newest n measurements; n <= 0 returns all of them
func (l *Log) Last(n int) []Measurement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if n > 0 && n < len(l.measurements) {
		start = len(l.measurements) - n
	}
	return append([]Measurement(nil), l.measurements[start:]...)
}

// Distances returns the newest n distances; n <= 0 returns all
func (l *Log) Distances(n int) []float64 {
	last := l.Last(n)
	out := make([]float64, len(last))
	for i, m := range last {
		out[i] = m.Distance
	}
	return out
}

// Qualities returns the newest n quality values; n <= 0 returns all
func (l *Log) Qualities(n int) []float64 {
	last := l.Last(n)
	out := make([]float64, len(last))
	for i, m := range last {
		out[i] = float64(m.Quality)
	}
	return out
}

// Intervals returns the seconds between consecutive measurements of the
// newest n
func (l *Log) Intervals(n int) []float64 {
	last := l.Last(n)
	if len(last) < 2 {
		return nil
	}
	out := make([]float64, len(last)-1)
	for i := 1; i < len(last); i++ {
		out[i-1] = last[i].Timestamp.Sub(last[i-1].Timestamp).Seconds()
	}
	return out
}

// Clear drops every measurement
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.measurements = nil
}

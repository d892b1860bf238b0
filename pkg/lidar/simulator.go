// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package lidar

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/opticbench/aodscan/pkg/transport"
)

// Simulator answers sensor commands in memory so the tool can run without
// hardware.
type Simulator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	start     time.Time
	streaming bool

	// Base is the mean simulated distance in meters
	Base float64
	// ErrorRate is the probability a measurement reply is an Er05
	ErrorRate float64
}

// NewSimulator creates a simulator around a base distance
func NewSimulator(base float64, seed int64) *Simulator {
	return &Simulator{
		rng:   rand.New(rand.NewSource(seed)),
		start: time.Now(),
		Base:  base,
	}
}

// Link returns a fake link wired to the simulator
func (s *Simulator) Link() *transport.FakeLink {
	link := transport.NewFakeLink()
	link.Responder = s.respond
	link.Stream = s.stream
	return link
}

func (s *Simulator) measurement() string {
	if s.rng.Float64() < s.ErrorRate {
		return "Er05\r\n"
	}
	t := time.Since(s.start).Seconds()
	d := s.Base + 0.05*math.Sin(t) + s.rng.NormFloat64()*0.002
	if d < 0 {
		d = 0
	}
	quality := 100 + s.rng.Intn(200)
	return fmt.Sprintf("D: %.3fm,%04d\r\n", d, quality)
}

func (s *Simulator) respond(cmd string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case string(rune(LaserOn)):
		return []string{"O,OK!\r\n"}
	case string(rune(LaserOff)):
		return []string{"C,OK!\r\n"}
	case string(rune(ReadStatus)):
		return []string{fmt.Sprintf("S: %.1f'C %.2fV\r\n", 23+s.rng.Float64(), 3.1+s.rng.Float64()*0.05)}
	case string(rune(Version)):
		return []string{"V: SIM-1.0\r\n"}
	case string(rune(AutoMeasure)):
		// echo first, the reading follows on the second read
		return []string{"D\r\n", s.measurement()}
	case string(rune(SlowMeasure)), string(rune(FastMeasure)):
		s.streaming = true
		return nil
	case string(rune(PowerOff)):
		s.streaming = false
		return nil
	}
	return []string{"?\r\n"}
}

func (s *Simulator) stream() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming {
		return ""
	}
	return s.measurement()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package lidar

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opticbench/aodscan/pkg/transport"
)

// Default timings
const (
	DefaultSettle        = 100 * time.Millisecond
	DefaultMeasureSettle = 500 * time.Millisecond
	DefaultReadWindow    = 50 * time.Millisecond
)

// Option configures a Sensor
type Option func(*Sensor)

// WithSettle sets the pause between writing a command and reading its reply
func WithSettle(d time.Duration) Option {
	return func(s *Sensor) { s.settle = d }
}

// WithMeasureSettle sets the extra pause before the second read of a
// measurement reply
func WithMeasureSettle(d time.Duration) Option {
	return func(s *Sensor) { s.measureSettle = d }
}

// WithReadWindow sets how long a reply read waits for the first byte
func WithReadWindow(d time.Duration) Option {
	return func(s *Sensor) { s.readWindow = d }
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Sensor) { s.logger = logger }
}

// WithSleep replaces time.Sleep, used by tests
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Sensor) { s.sleep = sleep }
}

// Sensor sends commands to the distance sensor and reads its replies.
// Every exchange runs through one gate so a polling worker and a caller
// never interleave on the wire.
type Sensor struct {
	gate          *transport.Gate
	settle        time.Duration
	measureSettle time.Duration
	readWindow    time.Duration
	sleep         func(time.Duration)
	logger        logrus.FieldLogger
}

// NewSensor creates a sensor on link
func NewSensor(link transport.Link, opts ...Option) *Sensor {
	s := &Sensor{
		gate:          transport.NewGate(link),
		settle:        DefaultSettle,
		measureSettle: DefaultMeasureSettle,
		readWindow:    DefaultReadWindow,
		sleep:         time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	s.logger = s.logger.WithField("component", "lidar")
	return s
}

func clean(raw string) string {
	return strings.ToValidUTF8(raw, "")
}

// Send writes cmd and, if waitForResponse is set, returns the reply text.
// Each reply read waits up to timeout for the first byte; zero or negative
// uses the configured read window. Measurement commands get a second,
// later read which wins when non-empty. Without waiting, Send pauses the
// settle interval and returns "".
func (s *Sensor) Send(cmd Command, waitForResponse bool, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = s.readWindow
	}
	var reply string
	err := s.gate.Exchange(func(link transport.Link) error {
		if err := link.ResetInputBuffer(); err != nil {
			return err
		}
		if _, err := link.Write(cmd.Wire()); err != nil {
			return err
		}
		s.sleep(s.settle)
		if !waitForResponse {
			return nil
		}

		first, err := transport.ReadAvailable(link, timeout)
		if err != nil {
			return err
		}
		reply = first
		if !cmd.IsMeasure() {
			return nil
		}

		s.sleep(s.measureSettle)
		second, err := transport.ReadAvailable(link, timeout)
		if err != nil {
			return err
		}
		if second != "" {
			reply = second
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("send %s: %w", cmd, err)
	}

	reply = clean(reply)
	s.logger.WithField("command", cmd.String()).Debugf("reply %q", reply)
	return reply, nil
}

// Poll reads whatever arrived within timeout without sending anything
func (s *Sensor) Poll(timeout time.Duration) (string, error) {
	var reply string
	err := s.gate.Exchange(func(link transport.Link) error {
		var err error
		reply, err = transport.ReadAvailable(link, timeout)
		return err
	})
	if err != nil {
		return "", err
	}
	return clean(reply), nil
}

// Flush discards any unread input
func (s *Sensor) Flush() error {
	return s.gate.Exchange(func(link transport.Link) error {
		return link.ResetInputBuffer()
	})
}

// Status requests and parses the sensor status
func (s *Sensor) Status() (Status, error) {
	reply, err := s.Send(ReadStatus, true, 0)
	if err != nil {
		return Status{}, err
	}
	return ParseStatus(reply)
}

// Version returns the trimmed version reply
func (s *Sensor) Version() (string, error) {
	reply, err := s.Send(Version, true, 0)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &ProtocolError{Reason: "no response"}
	}
	return reply, nil
}

// Measure takes one automatic measurement
func (s *Sensor) Measure() (Distance, error) {
	reply, err := s.Send(AutoMeasure, true, 0)
	if err != nil {
		return Distance{}, err
	}
	return ParseDistance(reply)
}

// SetLaser switches the laser and reports whether the sensor acknowledged
func (s *Sensor) SetLaser(on bool) (bool, string, error) {
	cmd := LaserOff
	if on {
		cmd = LaserOn
	}
	reply, err := s.Send(cmd, true, 0)
	if err != nil {
		return false, "", err
	}
	return IsAcknowledged(reply), reply, nil
}

// Close releases the link
func (s *Sensor) Close() error {
	return s.gate.Close()
}

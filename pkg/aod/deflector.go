// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opticbench/aodscan/pkg/transport"
)

// DefaultSettle is the pause the driver needs after every command
const DefaultSettle = 10 * time.Millisecond

// ErrDeflectorClosed is returned by every operation after the deflector was
// closed, including the automatic close that follows a failed setpoint.
var ErrDeflectorClosed = errors.New("deflector closed")

// DeflectorOption configures a Deflector
type DeflectorOption func(*Deflector)

// WithSettle overrides the pause after each command
func WithSettle(d time.Duration) DeflectorOption {
	return func(def *Deflector) { def.settle = d }
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) DeflectorOption {
	return func(def *Deflector) { def.logger = logger }
}

// WithSleep replaces time.Sleep, used by tests
func WithSleep(sleep func(time.Duration)) DeflectorOption {
	return func(def *Deflector) { def.sleep = sleep }
}

// WithFrameHook registers a callback invoked after every frame is written
func WithFrameHook(hook func(*Frame)) DeflectorOption {
	return func(def *Deflector) { def.hook = hook }
}

// Deflector drives an acousto-optic deflector over a Link. Frames are
// written one at a time through a single gate, each followed by the settle
// pause.
type Deflector struct {
	gate   *transport.Gate
	cal    *Calibration
	settle time.Duration
	sleep  func(time.Duration)
	logger logrus.FieldLogger
	hook   func(*Frame)

	mu        sync.Mutex
	lastAngle float64
	hasAngle  bool
	closed    bool
}

// NewDeflector creates a deflector on link using cal for angle lookups
func NewDeflector(link transport.Link, cal *Calibration, opts ...DeflectorOption) *Deflector {
	d := &Deflector{
		gate:   transport.NewGate(link),
		cal:    cal,
		settle: DefaultSettle,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logrus.StandardLogger()
	}
	d.logger = d.logger.WithField("component", "aod")
	return d
}

// Calibration returns the table used for angle lookups
func (d *Deflector) Calibration() *Calibration {
	return d.cal
}

func (d *Deflector) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// send writes one frame and waits the settle interval while still holding
// the gate, so the next command cannot start early.
func (d *Deflector) send(f *Frame) error {
	if d.isClosed() {
		return ErrDeflectorClosed
	}
	buf, err := f.Bytes()
	if err != nil {
		return err
	}

	err = d.gate.Exchange(func(link transport.Link) error {
		if _, err := link.Write(buf); err != nil {
			return err
		}
		d.sleep(d.settle)
		return nil
	})
	if err != nil {
		return err
	}

	d.logger.WithField("frame_type", FormatFrameType(f.Type)).Debugf("sent %s", FormatHex(buf))
	if d.hook != nil {
		d.hook(f)
	}
	return nil
}

// Start enables the preamplifier, then the amplifier
func (d *Deflector) Start() error {
	if err := d.send(NewPreampCommand(true)); err != nil {
		return fmt.Errorf("failed to enable preamplifier: %w", err)
	}
	if err := d.send(NewAmpCommand(true)); err != nil {
		return fmt.Errorf("failed to enable amplifier: %w", err)
	}
	return nil
}

// Stop disables the amplifier, then the preamplifier. Both frames are
// attempted even if the first fails.
func (d *Deflector) Stop() error {
	ampErr := d.send(NewAmpCommand(false))
	preampErr := d.send(NewPreampCommand(false))
	if ampErr != nil {
		return fmt.Errorf("failed to disable amplifier: %w", ampErr)
	}
	if preampErr != nil {
		return fmt.Errorf("failed to disable preamplifier: %w", preampErr)
	}
	return nil
}

// SetAngle solves the calibration for angle and sets that frequency
func (d *Deflector) SetAngle(angle float64) error {
	if d.isClosed() {
		return ErrDeflectorClosed
	}
	freq, err := d.cal.AngleToFrequency(angle)
	if err != nil {
		return err
	}
	if err := d.SetFrequency(freq); err != nil {
		return err
	}

	d.mu.Lock()
	d.lastAngle = angle
	d.hasAngle = true
	d.mu.Unlock()
	return nil
}

// SetFrequency sets the drive frequency. Any failure switches the beam off
// and releases the link; the deflector is unusable afterwards.
func (d *Deflector) SetFrequency(f float64) error {
	if d.isClosed() {
		return ErrDeflectorClosed
	}
	frame, err := NewSetFrequencyCommand(f)
	if err == nil {
		err = d.send(frame)
	}
	if err != nil {
		d.shutdown(err)
		return err
	}
	return nil
}

// SetAmplitude sets the drive amplitude in percent. Failures are handled
// as in SetFrequency.
func (d *Deflector) SetAmplitude(pct float64) error {
	if d.isClosed() {
		return ErrDeflectorClosed
	}
	frame, err := NewSetAmplitudeCommand(pct)
	if err == nil {
		err = d.send(frame)
	}
	if err != nil {
		d.shutdown(err)
		return err
	}
	return nil
}

// SetAmplitudeForAngle sets the calibrated amplitude for angle
func (d *Deflector) SetAmplitudeForAngle(angle float64) error {
	freq, err := d.cal.AngleToFrequency(angle)
	if err != nil {
		return err
	}
	return d.SetAmplitude(d.cal.FrequencyToAmplitude(freq))
}

// LastAngle returns the most recent angle set successfully
func (d *Deflector) LastAngle() (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastAngle, d.hasAngle
}

// shutdown stops the RF chain and closes the link after a failed setpoint
func (d *Deflector) shutdown(cause error) {
	d.logger.WithError(cause).Warn("setpoint failed, stopping deflector and closing link")
	if err := d.Stop(); err != nil {
		d.logger.WithError(err).Warn("stop after failure incomplete")
	}
	if err := d.release(); err != nil {
		d.logger.WithError(err).Warn("close after failure failed")
	}
}

func (d *Deflector) release() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	return d.gate.Close()
}

// Close switches the RF chain off and releases the link. Closing twice is
// a no-op.
func (d *Deflector) Close() error {
	if d.isClosed() {
		return nil
	}
	if err := d.Stop(); err != nil {
		d.logger.WithError(err).Warn("stop on close failed")
	}
	return d.release()
}

// Detach releases the link without switching the RF chain off, leaving the
// last setpoint in effect
func (d *Deflector) Detach() error {
	return d.release()
}

// Closed reports whether the deflector was closed
func (d *Deflector) Closed() bool {
	return d.isClosed()
}

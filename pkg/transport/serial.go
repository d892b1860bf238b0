// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package transport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// PortOptions describes the serial line settings used when opening a port.
type PortOptions struct {
	BaudRate int    `yaml:"baud_rate" json:"baud_rate"`
	DataBits int    `yaml:"data_bits" json:"data_bits"`
	StopBits int    `yaml:"stop_bits" json:"stop_bits"`
	Parity   string `yaml:"parity" json:"parity"`
}

// LidarPortOptions returns the distance sensor line settings (19200 8N1)
func LidarPortOptions() PortOptions {
	return PortOptions{BaudRate: 19200, DataBits: 8, StopBits: 1, Parity: "N"}
}

// DeflectorPortOptions returns the deflector driver line settings (115200 8N1)
func DeflectorPortOptions() PortOptions {
	return PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}
}

var (
	parities  = map[string]serial.Parity{"N": serial.NoParity, "E": serial.EvenParity, "O": serial.OddParity}
	stopBits  = map[int]serial.StopBits{1: serial.OneStopBit, 2: serial.TwoStopBits}
	dataWidth = map[int]bool{7: true, 8: true}
)

// Normalize fills unset framing fields from 8N1 and checks the result.
// The baud rate has no default; both devices document theirs.
func (o PortOptions) Normalize() (PortOptions, error) {
	if o.BaudRate <= 0 {
		return o, fmt.Errorf("baud rate %d: must be positive", o.BaudRate)
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.StopBits == 0 {
		o.StopBits = 1
	}
	o.Parity = strings.ToUpper(strings.TrimSpace(o.Parity))
	if o.Parity == "" {
		o.Parity = "N"
	}

	if !dataWidth[o.DataBits] {
		return o, fmt.Errorf("data bits %d: want 7 or 8", o.DataBits)
	}
	if _, ok := stopBits[o.StopBits]; !ok {
		return o, fmt.Errorf("stop bits %d: want 1 or 2", o.StopBits)
	}
	if _, ok := parities[o.Parity]; !ok {
		return o, fmt.Errorf("parity %q: want N, E or O", o.Parity)
	}
	return o, nil
}

// SerialMode converts the options for go.bug.st/serial
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	n, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: n.BaudRate,
		DataBits: n.DataBits,
		Parity:   parities[n.Parity],
		StopBits: stopBits[n.StopBits],
	}, nil
}

// String formats the options as e.g. "19200 8N1"
func (o PortOptions) String() string {
	n, err := o.Normalize()
	if err != nil {
		return fmt.Sprintf("%d ?", o.BaudRate)
	}
	return fmt.Sprintf("%d %d%s%d", n.BaudRate, n.DataBits, n.Parity, n.StopBits)
}

// SerialLink wraps a serial port
type SerialLink struct {
	port serial.Port
	name string
}

// OpenSerial opens the named serial port
func OpenSerial(name string, opts PortOptions) (*SerialLink, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("failed to open serial port %s: %w", name, err)}
	}

	return &SerialLink{port: port, name: name}, nil
}

// Name returns the device path the link was opened on
func (s *SerialLink) Name() string {
	return s.name
}

func (s *SerialLink) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	return n, wrapErr("read", err)
}

func (s *SerialLink) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	return n, wrapErr("write", err)
}

func (s *SerialLink) Close() error {
	return wrapErr("close", s.port.Close())
}

func (s *SerialLink) SetReadTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = serial.NoTimeout
	}
	return wrapErr("read", s.port.SetReadTimeout(timeout))
}

func (s *SerialLink) ResetInputBuffer() error {
	return wrapErr("flush", s.port.ResetInputBuffer())
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, &TransportError{Op: "list", Err: err}
	}
	return ports, nil
}

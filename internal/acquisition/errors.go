// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package acquisition

import (
	"errors"
	"fmt"

	"github.com/opticbench/aodscan/pkg/lidar"
	"github.com/opticbench/aodscan/pkg/transport"
)

var (
	ErrNotConnected         = errors.New("not connected")
	ErrInvalidState         = errors.New("operation not allowed in current state")
	ErrConnectionFailed     = errors.New("connection failed")
	ErrThresholdExceeded    = errors.New("too many consecutive measurement errors")
	ErrNoDeflector          = errors.New("no deflector configured")
	ErrLaserNotAcknowledged = errors.New("laser command not acknowledged")
)

// ThresholdError ends a continuous session. It wraps the last read error.
type ThresholdError struct {
	Count int
	Last  error
}

func (e *ThresholdError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%v (%d)", ErrThresholdExceeded, e.Count)
	}
	return fmt.Sprintf("%v (%d), last: %v", ErrThresholdExceeded, e.Count, e.Last)
}

func (e *ThresholdError) Is(target error) bool {
	return target == ErrThresholdExceeded
}

func (e *ThresholdError) Unwrap() error {
	return e.Last
}

// stateError reports an operation attempted in the wrong state
func stateError(op string, s State) error {
	if s == Disconnected {
		return fmt.Errorf("%s: %w", op, ErrNotConnected)
	}
	return fmt.Errorf("%s in %s: %w", op, s, ErrInvalidState)
}

// ErrorKind labels an error for metrics: device, protocol, transport or other
func ErrorKind(err error) string {
	var devErr *lidar.DeviceError
	var protoErr *lidar.ProtocolError
	var transErr *transport.TransportError
	switch {
	case errors.As(err, &devErr):
		return "device"
	case errors.As(err, &protoErr):
		return "protocol"
	case errors.As(err, &transErr), errors.Is(err, transport.ErrConnectionClosed):
		return "transport"
	}
	return "other"
}

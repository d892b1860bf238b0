// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

// Package transport provides exclusive byte-stream links to a single connected
// device: serial ports, WebSocket bridges and in-memory fakes for tests.
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"
)

//go:generate mockgen -destination=mocks/mock_link.go -package=mocks github.com/opticbench/aodscan/pkg/transport Link

// Link is an exclusive byte-stream handle to one device.
type Link interface {
	io.Reader
	io.Writer
	io.Closer

	// SetReadTimeout bounds how long a single Read may block. A Read that
	// times out returns 0 bytes and a nil error. Zero or negative blocks.
	SetReadTimeout(timeout time.Duration) error

	// ResetInputBuffer discards bytes received but not yet read.
	ResetInputBuffer() error
}

// ErrConnectionClosed is returned when reading from a link that was closed
var ErrConnectionClosed = errors.New("connection closed")

// TransportError reports an I/O failure on a link
type TransportError struct {
	Op  string // open, read, write, flush, close
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// wrapErr wraps err as a TransportError unless it already is one.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// maxReadAvailable caps how many bytes ReadAvailable collects in one call
const maxReadAvailable = 4096

// ReadAvailable reads whatever the device sends within timeout. The first
// read waits up to timeout; reading continues until a read returns no data.
// An empty string with a nil error means nothing arrived.
func ReadAvailable(link Link, timeout time.Duration) (string, error) {
	if err := link.SetReadTimeout(timeout); err != nil {
		return "", wrapErr("read", err)
	}

	var out []byte
	buf := make([]byte, 256)
	for len(out) < maxReadAvailable {
		n, err := link.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(out) > 0 {
				break
			}
			return string(out), wrapErr("read", err)
		}
		if n == 0 {
			break
		}
	}
	return string(out), nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

import (
	"fmt"
	"time"
)

// Decoder states
const (
	stateIdle = iota
	stateLength
	stateType
	statePayload
	stateCRC
)

// Decoder recovers frames from a captured byte stream, one byte at a time.
// Bytes outside a frame are skipped until the next preamble.
type Decoder struct {
	state   int
	length  int
	buffer  []byte
	skipped int
}

// NewDecoder creates a new stream decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateIdle,
		buffer: make([]byte, 0, HeaderSize+MaxPayloadSize+1),
	}
}

// Reset returns the decoder to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.length = 0
	d.buffer = d.buffer[:0]
}

// Skipped returns how many bytes were discarded while hunting for a preamble
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeByte processes a single byte. It returns a completed frame, or nil
// if the frame is incomplete. A CRC mismatch yields a FramingError and the
// decoder resynchronises on the next preamble.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		if b != Preamble {
			d.skipped++
			return nil, nil
		}
		d.buffer = append(d.buffer[:0], b)
		d.state = stateLength
		return nil, nil

	case stateLength:
		if b == 0 {
			d.Reset()
			return nil, &FramingError{Reason: "zero payload length"}
		}
		d.length = int(b)
		d.buffer = append(d.buffer, b)
		d.state = stateType
		return nil, nil

	case stateType:
		d.buffer = append(d.buffer, b)
		d.state = statePayload
		return nil, nil

	case statePayload:
		d.buffer = append(d.buffer, b)
		if len(d.buffer) == HeaderSize+d.length {
			d.state = stateCRC
		}
		return nil, nil

	case stateCRC:
		calculated := CalculateCRC8(d.buffer)
		if calculated != b {
			d.Reset()
			return nil, &FramingError{Reason: fmt.Sprintf("CRC mismatch: expected 0x%02X, got 0x%02X", calculated, b)}
		}
		payload := make([]byte, d.length)
		copy(payload, d.buffer[HeaderSize:])
		frame := &Frame{
			Type:      d.buffer[2],
			Payload:   payload,
			CRC:       b,
			Timestamp: time.Now(),
		}
		d.Reset()
		return frame, nil
	}

	d.Reset()
	return nil, fmt.Errorf("decoder in unknown state %d", d.state)
}

// DecodeAll feeds data through the decoder and returns every complete frame
// along with any framing errors encountered.
func (d *Decoder) DecodeAll(data []byte) ([]*Frame, []error) {
	var frames []*Frame
	var errs []error
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

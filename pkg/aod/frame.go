// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// FramingError reports a buffer that is not a well-formed frame
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "aod framing: " + e.Reason
}

// EncodingError reports a value that cannot be represented on the wire
type EncodingError struct {
	Field string
	Value float64
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("aod encoding: %s %g not representable", e.Field, e.Value)
}

// Frame is a decoded deflector command
type Frame struct {
	Type      byte
	Payload   []byte
	CRC       byte
	Timestamp time.Time
}

// Bytes returns the wire encoding of the frame
func (f *Frame) Bytes() ([]byte, error) {
	return Encode(f.Type, f.Payload)
}

// Encode builds a complete frame for the given type and payload. Payloads
// carry between 1 and MaxPayloadSize bytes.
func Encode(frameType byte, payload []byte) ([]byte, error) {
	if len(payload) == 0 || len(payload) > MaxPayloadSize {
		return nil, &EncodingError{Field: "payload length", Value: float64(len(payload))}
	}

	buf := make([]byte, 0, HeaderSize+len(payload)+1)
	buf = append(buf, Preamble, byte(len(payload)), frameType)
	buf = append(buf, payload...)
	buf = append(buf, CalculateCRC8(buf))
	return buf, nil
}

// Decode parses one complete frame. The buffer must hold exactly one frame.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < MinFrameSize {
		return nil, &FramingError{Reason: fmt.Sprintf("short buffer: %d bytes (min %d)", len(buf), MinFrameSize)}
	}
	if buf[0] != Preamble {
		return nil, &FramingError{Reason: fmt.Sprintf("bad preamble 0x%02X", buf[0])}
	}

	length := int(buf[1])
	if want := HeaderSize + length + 1; len(buf) != want {
		return nil, &FramingError{Reason: fmt.Sprintf("length mismatch: header declares %d payload bytes, frame has %d", length, len(buf)-HeaderSize-1)}
	}

	crc := buf[len(buf)-1]
	if calculated := CalculateCRC8(buf[:len(buf)-1]); calculated != crc {
		return nil, &FramingError{Reason: fmt.Sprintf("CRC mismatch: expected 0x%02X, got 0x%02X", calculated, crc)}
	}

	payload := make([]byte, length)
	copy(payload, buf[HeaderSize:HeaderSize+length])
	return &Frame{
		Type:      buf[2],
		Payload:   payload,
		CRC:       crc,
		Timestamp: time.Now(),
	}, nil
}

// encodeScaled converts value×scale to a little-endian uint16
func encodeScaled(field string, value, scale float64) ([]byte, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, &EncodingError{Field: field, Value: value}
	}
	scaled := math.Round(value * scale)
	if scaled < 0 || scaled > math.MaxUint16 {
		return nil, &EncodingError{Field: field, Value: value}
	}
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, uint16(scaled))
	return out, nil
}

func decodeScaled(field string, payload []byte, scale float64) (float64, error) {
	if len(payload) != 2 {
		return 0, &FramingError{Reason: fmt.Sprintf("%s payload must be 2 bytes, got %d", field, len(payload))}
	}
	return float64(binary.LittleEndian.Uint16(payload)) / scale, nil
}

// EncodeFrequency returns the LE16 wire value of round(f×100)
func EncodeFrequency(f float64) ([]byte, error) {
	return encodeScaled("frequency", f, FrequencyScale)
}

// EncodeAmplitude returns the LE16 wire value of round(pct×10)
func EncodeAmplitude(pct float64) ([]byte, error) {
	return encodeScaled("amplitude", pct, AmplitudeScale)
}

// DecodeFrequency is the inverse of EncodeFrequency
func DecodeFrequency(payload []byte) (float64, error) {
	return decodeScaled("frequency", payload, FrequencyScale)
}

// DecodeAmplitude is the inverse of EncodeAmplitude
func DecodeAmplitude(payload []byte) (float64, error) {
	return decodeScaled("amplitude", payload, AmplitudeScale)
}

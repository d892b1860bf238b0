// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestCalculateCRC8(t *testing.T) {
	// CRC-8/NRSC-5 check value
	if got := CalculateCRC8([]byte("123456789")); got != 0xF7 {
		t.Errorf("CalculateCRC8(\"123456789\") = 0x%02X, want 0xF7", got)
	}
	if got := CalculateCRC8(nil); got != 0xFF {
		t.Errorf("CalculateCRC8(nil) = 0x%02X, want 0xFF", got)
	}
}

func TestCommandBytes(t *testing.T) {
	freq, err := NewSetFrequencyCommand(80.0)
	if err != nil {
		t.Fatalf("NewSetFrequencyCommand: %v", err)
	}
	ampl, err := NewSetAmplitudeCommand(50.0)
	if err != nil {
		t.Fatalf("NewSetAmplitudeCommand: %v", err)
	}

	tests := []struct {
		name  string
		frame *Frame
		want  []byte
	}{
		{"preamp on", NewPreampCommand(true), []byte{0xAA, 0x01, 0xA2, 0x01, 0x1C}},
		{"amp on", NewAmpCommand(true), []byte{0xAA, 0x01, 0xA3, 0x01, 0xE8}},
		{"preamp off", NewPreampCommand(false), []byte{0xAA, 0x01, 0xA2, 0x00, 0x2D}},
		{"amp off", NewAmpCommand(false), []byte{0xAA, 0x01, 0xA3, 0x00, 0xD9}},
		{"frequency 80", freq, []byte{0xAA, 0x02, 0xA5, 0x40, 0x1F, 0x51}},
		{"amplitude 50%", ampl, []byte{0xAA, 0x02, 0xA7, 0xF4, 0x01, 0x93}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.frame.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncodeFrequencyRounding(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		want    uint16
		wantErr bool
	}{
		{"exact", 80.0, 8000, false},
		{"rounds up", 80.006, 8001, false},
		{"rounds down", 80.004, 8000, false},
		{"binary fraction", 0.29, 29, false},
		{"max", 655.35, 65535, false},
		{"overflow", 655.36, 0, true},
		{"negative", -1, 0, true},
		{"nan", math.NaN(), 0, true},
		{"inf", math.Inf(1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeFrequency(tt.value)
			if tt.wantErr {
				var encErr *EncodingError
				if !errors.As(err, &encErr) {
					t.Fatalf("EncodeFrequency(%v) error = %v, want EncodingError", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeFrequency(%v) error: %v", tt.value, err)
			}
			if v := uint16(got[0]) | uint16(got[1])<<8; v != tt.want {
				t.Errorf("EncodeFrequency(%v) = %d, want %d", tt.value, v, tt.want)
			}
		})
	}
}

func TestEncodeAmplitudeOverflow(t *testing.T) {
	if _, err := EncodeAmplitude(6553.6); err == nil {
		t.Error("expected EncodingError for amplitude overflow")
	}
	got, err := EncodeAmplitude(100)
	if err != nil {
		t.Fatalf("EncodeAmplitude(100): %v", err)
	}
	back, err := DecodeAmplitude(got)
	if err != nil || back != 100 {
		t.Errorf("DecodeAmplitude = %v, %v; want 100", back, err)
	}
}

func TestEncodePayloadLimits(t *testing.T) {
	if _, err := Encode(TypeSetFrequency, nil); err == nil {
		t.Error("expected error for empty payload")
	}
	if _, err := Encode(TypeSetFrequency, make([]byte, MaxPayloadSize+1)); err == nil {
		t.Error("expected error for oversize payload")
	}
	buf, err := Encode(0x10, make([]byte, MaxPayloadSize))
	if err != nil {
		t.Fatalf("Encode max payload: %v", err)
	}
	if len(buf) != HeaderSize+MaxPayloadSize+1 {
		t.Errorf("len = %d, want %d", len(buf), HeaderSize+MaxPayloadSize+1)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, _ := NewPreampCommand(true).Bytes()

	tests := []struct {
		name   string
		buf    []byte
		reason string
	}{
		{"short", valid[:4], "short buffer"},
		{"bad preamble", append([]byte{0x55}, valid[1:]...), "bad preamble"},
		{"length too long", []byte{0xAA, 0x02, 0xA2, 0x01, 0x1C}, "length mismatch"},
		{"trailing byte", append(append([]byte{}, valid...), 0x00), "length mismatch"},
		{"bad crc", []byte{0xAA, 0x01, 0xA2, 0x01, 0x1D}, "CRC mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			var fe *FramingError
			if !errors.As(err, &fe) {
				t.Fatalf("Decode() error = %v, want FramingError", err)
			}
			if !strings.Contains(fe.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", fe.Reason, tt.reason)
			}
		})
	}
}

func TestDecodeValid(t *testing.T) {
	frame, err := Decode([]byte{0xAA, 0x02, 0xA5, 0x40, 0x1F, 0x51})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Type != TypeSetFrequency {
		t.Errorf("Type = 0x%02X, want 0x%02X", frame.Type, TypeSetFrequency)
	}
	f, err := DecodeFrequency(frame.Payload)
	if err != nil || f != 80.0 {
		t.Errorf("DecodeFrequency = %v, %v; want 80", f, err)
	}
}

func TestStreamDecoder(t *testing.T) {
	on, _ := NewPreampCommand(true).Bytes()
	freq, _ := NewSetFrequencyCommand(81.25)
	freqBytes, _ := freq.Bytes()
	corrupt := append([]byte{}, on...)
	corrupt[len(corrupt)-1] ^= 0xFF

	stream := []byte{0x00, 0x13}
	stream = append(stream, on...)
	stream = append(stream, corrupt...)
	stream = append(stream, 0x42)
	stream = append(stream, freqBytes...)

	d := NewDecoder()
	frames, errs := d.DecodeAll(stream)

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if frames[0].Type != TypePreamp || frames[1].Type != TypeSetFrequency {
		t.Errorf("frame types = 0x%02X, 0x%02X", frames[0].Type, frames[1].Type)
	}
	if d.Skipped() != 3 {
		t.Errorf("Skipped() = %d, want 3", d.Skipped())
	}
}

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  string
	}{
		{"preamp", NewPreampCommand(true), "PREAMP (0xA2) len=1 state=ON"},
		{"amp off", NewAmpCommand(false), "AMP (0xA3) len=1 state=OFF"},
		{"frequency", &Frame{Type: TypeSetFrequency, Payload: []byte{0x40, 0x1F}}, "SET_FREQUENCY (0xA5) len=2 frequency=80.00"},
		{"amplitude", &Frame{Type: TypeSetAmplitude, Payload: []byte{0xF4, 0x01}}, "SET_AMPLITUDE (0xA7) len=2 amplitude=50.0%"},
		{"unknown", &Frame{Type: 0x10, Payload: []byte{0xDE, 0xAD}}, "UNKNOWN (0x10) len=2 payload=DE AD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatFrame(tt.frame)
			if !strings.HasSuffix(got, tt.want) {
				t.Errorf("FormatFrame() = %q, want suffix %q", got, tt.want)
			}
		})
	}
}

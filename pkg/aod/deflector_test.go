// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

import (
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/opticbench/aodscan/pkg/transport"
	"github.com/opticbench/aodscan/pkg/transport/mocks"
)

func frameBytes(t *testing.T, f *Frame, err error) []byte {
	t.Helper()
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	buf, err := f.Bytes()
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return buf
}

func newTestDeflector(t *testing.T, link transport.Link, sleeps *[]time.Duration) *Deflector {
	t.Helper()
	cal, err := DefaultCalibration()
	if err != nil {
		t.Fatalf("DefaultCalibration: %v", err)
	}
	return NewDeflector(link, cal, WithSleep(func(d time.Duration) {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
	}))
}

func TestDeflectorStartStopOrder(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	link := mocks.NewMockLink(mockCtrl)
	gomock.InOrder(
		link.EXPECT().Write([]byte{0xAA, 0x01, 0xA2, 0x01, 0x1C}).Return(5, nil),
		link.EXPECT().Write([]byte{0xAA, 0x01, 0xA3, 0x01, 0xE8}).Return(5, nil),
		link.EXPECT().Write([]byte{0xAA, 0x01, 0xA3, 0x00, 0xD9}).Return(5, nil),
		link.EXPECT().Write([]byte{0xAA, 0x01, 0xA2, 0x00, 0x2D}).Return(5, nil),
	)

	var sleeps []time.Duration
	d := newTestDeflector(t, link, &sleeps)
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if len(sleeps) != 4 {
		t.Fatalf("got %d settle pauses, want 4", len(sleeps))
	}
	for _, s := range sleeps {
		if s != DefaultSettle {
			t.Errorf("settle = %v, want %v", s, DefaultSettle)
		}
	}
}

func TestDeflectorSetAngle(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	cal, _ := DefaultCalibration()
	freq, err := cal.AngleToFrequency(0.2)
	if err != nil {
		t.Fatalf("AngleToFrequency: %v", err)
	}
	f, err := NewSetFrequencyCommand(freq)
	want := frameBytes(t, f, err)

	link := mocks.NewMockLink(mockCtrl)
	link.EXPECT().Write(want).Return(len(want), nil)

	var sent []*Frame
	d := NewDeflector(link, cal, WithSleep(func(time.Duration) {}), WithFrameHook(func(f *Frame) {
		sent = append(sent, f)
	}))
	if err := d.SetAngle(0.2); err != nil {
		t.Fatalf("SetAngle: %v", err)
	}
	if angle, ok := d.LastAngle(); !ok || angle != 0.2 {
		t.Errorf("LastAngle() = %v, %v; want 0.2, true", angle, ok)
	}
	if len(sent) != 1 || sent[0].Type != TypeSetFrequency {
		t.Errorf("frame hook saw %d frames", len(sent))
	}
}

func TestDeflectorSetAngleOutOfRange(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// no writes expected: the solve fails before anything is sent
	link := mocks.NewMockLink(mockCtrl)
	d := newTestDeflector(t, link, nil)

	if err := d.SetAngle(10); !errors.Is(err, ErrAngleOutOfRange) {
		t.Errorf("SetAngle(10) error = %v, want ErrAngleOutOfRange", err)
	}
	if d.Closed() {
		t.Error("deflector closed after a calibration error")
	}
}

func TestDeflectorWriteFailureStopsAndCloses(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	f, err := NewSetFrequencyCommand(80)
	freqBytes := frameBytes(t, f, err)
	writeErr := errors.New("cable pulled")

	link := mocks.NewMockLink(mockCtrl)
	gomock.InOrder(
		link.EXPECT().Write(freqBytes).Return(0, writeErr),
		link.EXPECT().Write([]byte{0xAA, 0x01, 0xA3, 0x00, 0xD9}).Return(5, nil),
		link.EXPECT().Write([]byte{0xAA, 0x01, 0xA2, 0x00, 0x2D}).Return(5, nil),
		link.EXPECT().Close().Return(nil),
	)

	d := newTestDeflector(t, link, nil)
	err = d.SetFrequency(80)
	if !errors.Is(err, writeErr) {
		t.Fatalf("SetFrequency error = %v, want %v", err, writeErr)
	}
	if !d.Closed() {
		t.Fatal("deflector still open after failed setpoint")
	}
	if err := d.SetAngle(0); !errors.Is(err, ErrDeflectorClosed) {
		t.Errorf("SetAngle after failure error = %v, want ErrDeflectorClosed", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDeflectorEncodingFailureStopsAndCloses(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	link := mocks.NewMockLink(mockCtrl)
	gomock.InOrder(
		link.EXPECT().Write([]byte{0xAA, 0x01, 0xA3, 0x00, 0xD9}).Return(5, nil),
		link.EXPECT().Write([]byte{0xAA, 0x01, 0xA2, 0x00, 0x2D}).Return(5, nil),
		link.EXPECT().Close().Return(nil),
	)

	d := newTestDeflector(t, link, nil)
	var encErr *EncodingError
	if err := d.SetAmplitude(10000); !errors.As(err, &encErr) {
		t.Fatalf("SetAmplitude(10000) error = %v, want EncodingError", err)
	}
	if !d.Closed() {
		t.Error("deflector still open after encoding failure")
	}
}

func TestDeflectorAmplitudeForAngle(t *testing.T) {
	link := transport.NewFakeLink()
	d := newTestDeflector(t, link, nil)

	if err := d.SetAmplitudeForAngle(0); err != nil {
		t.Fatalf("SetAmplitudeForAngle: %v", err)
	}
	writes := link.Writes()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(writes))
	}
	frame, err := Decode(writes[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pct, _ := DecodeAmplitude(frame.Payload)
	if frame.Type != TypeSetAmplitude || pct < 60 || pct > 63 {
		t.Errorf("frame = %s", FormatFrame(frame))
	}
}

func TestDeflectorClose(t *testing.T) {
	link := transport.NewFakeLink()
	d := newTestDeflector(t, link, nil)

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !link.Closed() {
		t.Error("link not closed")
	}
	if got := len(link.Writes()); got != 2 {
		t.Errorf("Close wrote %d frames, want 2 (amp off, preamp off)", got)
	}
	if err := d.Start(); !errors.Is(err, ErrDeflectorClosed) {
		t.Errorf("Start after Close error = %v, want ErrDeflectorClosed", err)
	}
}

func TestDeflectorDetachKeepsRFOn(t *testing.T) {
	link := transport.NewFakeLink()
	d := newTestDeflector(t, link, nil)

	if err := d.SetFrequency(80); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if err := d.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if !link.Closed() {
		t.Error("link not closed")
	}
	if got := len(link.Writes()); got != 1 {
		t.Errorf("Detach wrote %d extra frames, want none", got-1)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close after Detach: %v", err)
	}
}

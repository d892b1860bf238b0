// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

// Command builder functions create Frames ready for encoding.

func switchPayload(on bool) []byte {
	if on {
		return []byte{SwitchOn}
	}
	return []byte{SwitchOff}
}

// NewPreampCommand switches the RF preamplifier (0xA2)
func NewPreampCommand(on bool) *Frame {
	return &Frame{Type: TypePreamp, Payload: switchPayload(on)}
}

// NewAmpCommand switches the RF power amplifier (0xA3)
func NewAmpCommand(on bool) *Frame {
	return &Frame{Type: TypeAmp, Payload: switchPayload(on)}
}

// NewSetFrequencyCommand sets the drive frequency (0xA5).
// The frequency is sent as round(f×100), little-endian.
func NewSetFrequencyCommand(f float64) (*Frame, error) {
	payload, err := EncodeFrequency(f)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: TypeSetFrequency, Payload: payload}, nil
}

// NewSetAmplitudeCommand sets the drive amplitude in percent (0xA7)
func NewSetAmplitudeCommand(pct float64) (*Frame, error) {
	payload, err := EncodeAmplitude(pct)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: TypeSetAmplitude, Payload: payload}, nil
}

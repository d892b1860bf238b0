// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s (0x%02X) len=%d %s", timestamp, FormatFrameType(f.Type), f.Type, len(f.Payload), FormatPayload(f))
}

// FormatFrameType returns the human-readable name for a frame type
func FormatFrameType(frameType byte) string {
	switch frameType {
	case TypePreamp:
		return "PREAMP"
	case TypeAmp:
		return "AMP"
	case TypeSetFrequency:
		return "SET_FREQUENCY"
	case TypeSetAmplitude:
		return "SET_AMPLITUDE"
	default:
		return "UNKNOWN"
	}
}

// FormatPayload renders the payload according to the frame type
func FormatPayload(f *Frame) string {
	switch f.Type {
	case TypePreamp, TypeAmp:
		if len(f.Payload) == 1 {
			switch f.Payload[0] {
			case SwitchOn:
				return "state=ON"
			case SwitchOff:
				return "state=OFF"
			}
		}
	case TypeSetFrequency:
		if v, err := DecodeFrequency(f.Payload); err == nil {
			return fmt.Sprintf("frequency=%.2f", v)
		}
	case TypeSetAmplitude:
		if v, err := DecodeAmplitude(f.Payload); err == nil {
			return fmt.Sprintf("amplitude=%.1f%%", v)
		}
	}
	return "payload=" + FormatHex(f.Payload)
}

// FormatHex renders bytes as space separated hex pairs
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

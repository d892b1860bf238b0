// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

// Package aod implements the binary command protocol of an acousto-optic
// deflector driver, the calibration table that maps deflection angles to
// drive frequencies, and a deflector adapter that drives the hardware.
//
// Wire format of every frame:
//
//	[0xAA][len][type][payload ... len bytes][crc8]
//
// The CRC-8 (poly 0x31, init 0xFF, no reflection, xorout 0) covers every
// byte before it.
package aod

// Protocol framing
const (
	Preamble = 0xAA
)

// Frame size limits
const (
	HeaderSize     = 3 // preamble + length + type
	MinFrameSize   = 5 // header + 1 payload byte + crc
	MaxPayloadSize = 255
)

// CRC-8 configuration
const (
	crcPolynomial = 0x31
	crcInitial    = 0xFF
)

// Frame types
const (
	TypePreamp       = 0xA2
	TypeAmp          = 0xA3
	TypeSetFrequency = 0xA5
	TypeSetAmplitude = 0xA7
)

// Payload scaling
const (
	FrequencyScale = 100 // frequency units -> wire value
	AmplitudeScale = 10  // percent -> wire value
)

// Switch payloads
const (
	SwitchOff = 0x00
	SwitchOn  = 0x01
)

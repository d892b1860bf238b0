// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package aod

// CalculateCRC8 computes the CRC-8 (poly 0x31, init 0xFF) of data
func CalculateCRC8(data []byte) byte {
	crc := byte(crcInitial)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

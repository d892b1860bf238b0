// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors
//
// aodscan - beam steering and lidar acquisition bench
//
// A CLI and terminal UI for driving an acousto-optic deflector and a
// serial laser rangefinder, with scan patterns, continuous acquisition,
// recording and live statistics.

package main

import (
	"os"

	"github.com/opticbench/aodscan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

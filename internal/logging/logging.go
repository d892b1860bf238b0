// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

// Package logging builds the logrus logger used across aodscan.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/opticbench/aodscan/internal/config"
)

// Setup creates a logger from cfg. Unknown levels fall back to info, and an
// unusable log file falls back to stderr.
func Setup(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	var out io.Writer = os.Stderr
	switch cfg.Output {
	case "stdout":
		out = os.Stdout
	case "file":
		if cfg.FilePath != "" {
			file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				out = file
			} else {
				log.Warnf("failed to open log file %s, using stderr: %v", cfg.FilePath, err)
			}
		}
	}
	log.SetOutput(out)

	return log
}

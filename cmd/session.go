// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opticbench/aodscan/internal/acquisition"
	"github.com/opticbench/aodscan/internal/metrics"
	"github.com/opticbench/aodscan/internal/scan"
	"github.com/opticbench/aodscan/pkg/aod"
	"github.com/opticbench/aodscan/pkg/lidar"
)

// session bundles the controller with its optional deflector side
type session struct {
	ctrl      *acquisition.Controller
	deflector *aod.Deflector
	engine    *scan.Engine
	registry  *scan.Registry
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	aodInfo   string
}

type sessionOptions struct {
	deflector bool
	observers acquisition.Observers
}

// newSession builds and connects a controller. With opts.deflector the AOD
// is opened and started so patterns can run.
func newSession(opts sessionOptions) (*session, error) {
	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return nil, err
	}

	s := &session{metrics: m, gatherer: reg}
	ctrlOpts := []acquisition.Option{
		acquisition.WithConfig(cfg.Acquisition),
		acquisition.WithLogger(logger),
		acquisition.WithMetrics(m),
		acquisition.WithObserver(opts.observers),
		acquisition.WithSensorOptions(
			lidar.WithSettle(cfg.Lidar.Settle),
			lidar.WithMeasureSettle(cfg.Lidar.MeasureSettle),
			lidar.WithReadWindow(cfg.Lidar.ReadWindow),
		),
	}

	if opts.deflector {
		registry, err := scan.NewRegistry(cfg.Scan.PatternsFile)
		if err != nil {
			return nil, err
		}
		deflector, info, err := openDeflector(m)
		if err != nil {
			return nil, err
		}
		if err := deflector.Start(); err != nil {
			deflector.Close()
			return nil, err
		}
		if err := deflector.SetAmplitude(cfg.AOD.DefaultAmplitude); err != nil {
			return nil, err
		}

		s.deflector = deflector
		s.registry = registry
		s.aodInfo = info
		s.engine = scan.NewEngine(deflector,
			scan.WithJoinTimeout(cfg.Scan.JoinTimeout),
			scan.WithLogger(logger),
			scan.WithStepHook(func(id string, _ scan.Step) {
				m.ScanSetpoints.WithLabelValues(id).Inc()
			}),
		)
		ctrlOpts = append(ctrlOpts, acquisition.WithScanner(s.engine, registry))
	}

	s.ctrl = acquisition.New(openSensorLink, ctrlOpts...)
	if err := s.ctrl.Connect(sensorTarget()); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// close disconnects the sensor and switches the deflector off
func (s *session) close() {
	if err := s.ctrl.Disconnect(); err != nil {
		logger.WithError(err).Warn("disconnect")
	}
	if s.deflector != nil {
		if err := s.deflector.Close(); err != nil {
			logger.WithError(err).Warn("deflector close")
		}
	}
}

// parseParams turns k=v arguments into pattern parameters
func parseParams(pairs []string) (scan.Params, error) {
	params := scan.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %v", key, err)
		}
		params[key] = f
	}
	return params, nil
}

// parseSwitch accepts on/off style arguments
func parseSwitch(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "1", "true", "enable":
		return true, nil
	case "off", "0", "false", "disable":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", arg)
}

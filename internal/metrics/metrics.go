// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

// Package metrics exposes acquisition and deflector counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the collectors of one aodscan process
type Metrics struct {
	Measurements      prometheus.Counter
	MeasurementErrors *prometheus.CounterVec
	ContinuousAborts  prometheus.Counter
	FramesSent        *prometheus.CounterVec
	ScanSetpoints     *prometheus.CounterVec
	State             prometheus.Gauge
	LastDistance      prometheus.Gauge
}

// New creates unregistered collectors
func New() *Metrics {
	return &Metrics{
		Measurements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aodscan_measurements_total",
			Help: "Distance measurements received",
		}),
		MeasurementErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aodscan_measurement_errors_total",
			Help: "Failed measurement reads by error kind",
		}, []string{"kind"}),
		ContinuousAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aodscan_continuous_aborts_total",
			Help: "Continuous sessions aborted after too many consecutive errors",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aodscan_aod_frames_sent_total",
			Help: "Deflector frames written by frame type",
		}, []string{"type"}),
		ScanSetpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aodscan_scan_setpoints_total",
			Help: "Scan setpoints applied by pattern",
		}, []string{"pattern"}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aodscan_acquisition_state",
			Help: "Acquisition state (0 disconnected, 1 connected, 2 single shot, 3 continuous, 4 scanning)",
		}),
		LastDistance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aodscan_last_distance_meters",
			Help: "Most recent measured distance",
		}),
	}
}

// Register adds every collector to reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Measurements,
		m.MeasurementErrors,
		m.ContinuousAborts,
		m.FramesSent,
		m.ScanSetpoints,
		m.State,
		m.LastDistance,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the /metrics and /health mux for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics server on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("metrics server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

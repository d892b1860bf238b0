// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndExpose(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))

	m.Measurements.Inc()
	m.MeasurementErrors.WithLabelValues("device").Add(2)
	m.FramesSent.WithLabelValues("SET_FREQUENCY").Inc()
	m.State.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Measurements))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MeasurementErrors.WithLabelValues("device")))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `aodscan_aod_frames_sent_total{type="SET_FREQUENCY"} 1`)
	assert.Contains(t, string(body), "aodscan_acquisition_state 3")

	resp, err = srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg))
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opticbench/aodscan/internal/acquisition"
	"github.com/opticbench/aodscan/internal/measure"
	"github.com/opticbench/aodscan/pkg/lidar"
)

func applyMsg(t *testing.T, m monitorModel, msg tea.Msg) monitorModel {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(monitorModel)
	require.True(t, ok)
	return out
}

func TestMonitorModelBatch(t *testing.T) {
	m := initialMonitorModel(nil, "Simulator")
	now := time.Now()

	m = applyMsg(t, m, monitorBatchMsg{events: []tea.Msg{
		stateChangedMsg{from: acquisition.Connected, to: acquisition.Continuous},
		measurementMsg(measure.Measurement{Timestamp: now, Distance: 1.25, Quality: 90}),
		measurementMsg(measure.Measurement{Timestamp: now.Add(100 * time.Millisecond), Distance: 1.35, Quality: 88}),
		statusMsg(lidar.Status{Temperature: 24.5, Voltage: 3.3}),
		laserMsg(true),
		errorMsg{err: errors.New("read failed")},
	}})

	assert.Equal(t, acquisition.Continuous, m.state)
	assert.Equal(t, 2, m.history.Len())
	require.NotNil(t, m.status)
	assert.InDelta(t, 24.5, m.status.Temperature, 1e-9)
	assert.True(t, m.laserOn)
	assert.Equal(t, 1, m.readErrors)
	require.Len(t, m.errorLog, 2)
	assert.False(t, m.errorLog[0].isError)
	assert.True(t, m.errorLog[1].isError)

	view := m.View()
	assert.Contains(t, view, "AODSCAN MONITOR")
	assert.Contains(t, view, "CONTINUOUS")
	assert.Contains(t, view, "1.350 m")
	assert.Contains(t, view, "read failed")
}

func TestMonitorModelSkipsSingleShotTransitions(t *testing.T) {
	m := initialMonitorModel(nil, "Simulator")
	m = applyMsg(t, m, stateChangedMsg{from: acquisition.Connected, to: acquisition.SingleShot})
	m = applyMsg(t, m, stateChangedMsg{from: acquisition.SingleShot, to: acquisition.Connected})
	assert.Empty(t, m.errorLog)
	assert.Equal(t, acquisition.Connected, m.state)
}

func TestMonitorModelLogBounded(t *testing.T) {
	m := initialMonitorModel(nil, "Simulator")
	for i := 0; i < maxLogEntries+20; i++ {
		m.addLogEntry("event", false)
	}
	assert.Len(t, m.errorLog, maxLogEntries)
}

func TestMonitorModelActionResult(t *testing.T) {
	m := initialMonitorModel(nil, "Simulator")
	m = applyMsg(t, m, actionResultMsg{action: "laser", err: nil})
	assert.Empty(t, m.errorLog)

	m = applyMsg(t, m, actionResultMsg{action: "laser", err: errors.New("not acknowledged")})
	require.Len(t, m.errorLog, 1)
	assert.Equal(t, "laser: not acknowledged", m.errorLog[0].message)
}

func TestMonitorModelQuit(t *testing.T) {
	m := initialMonitorModel(nil, "Simulator")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
	assert.True(t, next.(monitorModel).quitting)
	assert.Equal(t, "Shutting down...\n", next.View())
}

func TestMonitorModelEmptyView(t *testing.T) {
	m := initialMonitorModel(nil, "Simulator")
	view := m.View()
	assert.Contains(t, view, "No measurements yet")
	assert.Contains(t, view, "no events yet")
	assert.False(t, strings.Contains(view, "Patterns"))
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1 hour, 2 minutes and 3 seconds"},
		{26 * time.Hour, "1 day and 2 hours"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.d))
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/internal/acquisition"
	"github.com/opticbench/aodscan/internal/measure"
	"github.com/opticbench/aodscan/pkg/lidar"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for measurements and beam steering",
	Long: `Monitor and control a measurement session from an interactive terminal UI.

Features:
  - Live distance readings and rolling statistics
  - Continuous and single-shot measurement
  - Laser control and sensor status
  - Scan pattern selection and manual angle entry (with --aod-port or --simulate)
  - Event logging

Keys: c=continuous m=measure f=fast/slow l=laser s=status x=stop pattern
Tab switches between the pattern list and the angle input, Enter applies.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// monitorBridge forwards controller events to the TUI in batches so the
// polling worker never waits on the UI
type monitorBridge struct {
	events chan tea.Msg
	done   chan struct{}
	p      *tea.Program
}

func newMonitorBridge() *monitorBridge {
	return &monitorBridge{
		events: make(chan tea.Msg, 256),
		done:   make(chan struct{}),
	}
}

func (b *monitorBridge) push(msg tea.Msg) {
	select {
	case b.events <- msg:
	default:
	}
}

func (b *monitorBridge) observer() acquisition.Observer {
	return acquisition.ObserverFuncs{
		StateChange: func(from, to acquisition.State) { b.push(stateChangedMsg{from: from, to: to}) },
		Measurement: func(m measure.Measurement) { b.push(measurementMsg(m)) },
		Status:      func(s lidar.Status) { b.push(statusMsg(s)) },
		Laser:       func(on bool) { b.push(laserMsg(on)) },
		Error:       func(err error) { b.push(errorMsg{err: err}) },
	}
}

// batchLoop sends batched updates to the TUI at a fixed rate
func (b *monitorBridge) batchLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			var batch monitorBatchMsg
		drainLoop:
			for {
				select {
				case msg := <-b.events:
					batch.events = append(batch.events, msg)
				default:
					break drainLoop
				}
			}
			if len(batch.events) > 0 {
				b.p.Send(batch)
			}
		}
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	bridge := newMonitorBridge()
	withDeflector := simulate || cfg.AOD.Port != ""

	s, err := newSession(sessionOptions{
		deflector: withDeflector,
		observers: acquisition.Observers{bridge.observer()},
	})
	if err != nil {
		return err
	}

	m := initialMonitorModel(s, describeSensor())
	p := tea.NewProgram(m, tea.WithAltScreen())
	bridge.p = p
	go bridge.batchLoop()

	_, err = p.Run()
	close(bridge.done)
	s.close()
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

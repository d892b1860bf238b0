// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/internal/acquisition"
	"github.com/opticbench/aodscan/internal/measure"
	"github.com/opticbench/aodscan/internal/metrics"
	"github.com/opticbench/aodscan/internal/publish"
)

var (
	continuousMode     string
	continuousDuration time.Duration
	recordPath         string
	useMQTT            bool
	metricsAddr        string
)

var continuousCmd = &cobra.Command{
	Use:   "continuous",
	Short: "Stream distance measurements until interrupted",
	Long: `Put the sensor in continuous mode and print every measurement as it
arrives. The session ends on Ctrl+C, after --duration, or when too many
consecutive reads fail.

Measurements can be recorded to a CBOR file (--record), published to the
configured MQTT broker (--mqtt) and exposed as Prometheus metrics
(--metrics-addr).`,
	Args: cobra.NoArgs,
	RunE: runContinuous,
}

func init() {
	continuousCmd.Flags().StringVar(&continuousMode, "mode", "fast", "Measurement mode (fast, slow, auto)")
	continuousCmd.Flags().DurationVar(&continuousDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	continuousCmd.Flags().StringVar(&recordPath, "record", "", "Record measurements to a CBOR file")
	continuousCmd.Flags().BoolVar(&useMQTT, "mqtt", false, "Publish events to the configured MQTT broker")
	continuousCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(continuousCmd)
}

// sessionID lets observers created before the session read its id
type sessionID struct {
	ctrl *acquisition.Controller
}

func (s *sessionID) get() uuid.UUID {
	if s.ctrl == nil {
		return uuid.Nil
	}
	sess, ok := s.ctrl.Session()
	if !ok {
		return uuid.Nil
	}
	return sess.ID
}

func runContinuous(cmd *cobra.Command, args []string) error {
	mode, err := acquisition.ParseMode(continuousMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if continuousDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, continuousDuration)
		defer cancel()
	}

	history := measure.NewLog()
	ids := &sessionID{}
	observers := acquisition.Observers{
		acquisition.ObserverFuncs{
			Measurement: func(m measure.Measurement) {
				history.Add(m)
				fmt.Println(formatMeasurement(m))
			},
			Error: func(err error) {
				fmt.Printf("[ERROR] %v\n", err)
			},
		},
	}

	// the recorder is created once the session id is known
	var recorder *measure.Recorder
	var recordFile *os.File
	if recordPath != "" {
		recordFile, err = os.Create(recordPath)
		if err != nil {
			return fmt.Errorf("failed to create record file: %w", err)
		}
		defer recordFile.Close()
		observers = append(observers, acquisition.ObserverFuncs{
			Measurement: func(m measure.Measurement) {
				if recorder == nil {
					return
				}
				if err := recorder.Write(m); err != nil {
					logger.WithError(err).Warn("record")
				}
			},
		})
	}

	if useMQTT {
		client, err := publish.Dial(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		observers = append(observers, publish.NewMQTTPublisher(client, cfg.MQTT.Topic, cfg.MQTT.QoS, ids.get, logger))
	}

	s, err := newSession(sessionOptions{observers: observers})
	if err != nil {
		return err
	}
	ids.ctrl = s.ctrl
	defer s.close()

	if recordFile != nil {
		recorder = measure.NewRecorder(recordFile, ids.get().String())
	}

	addr := metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, s.gatherer, logger); err != nil {
				logger.WithError(err).Error("metrics server")
			}
		}()
	}

	fmt.Printf("aodscan - Continuous Measurement\n")
	fmt.Printf("Connection: %s\n", describeSensor())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := s.ctrl.StartContinuous(mode); err != nil {
		return err
	}

	err = s.ctrl.WaitContinuous(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = s.ctrl.StopContinuous()
	}

	printSummary(measure.Summarize(history.Distances(0)), 0)
	if recorder != nil {
		fmt.Printf("Recorded %d measurements to %s\n", recorder.Count(), recordPath)
	}
	return err
}

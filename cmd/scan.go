// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/internal/acquisition"
	"github.com/opticbench/aodscan/internal/scan"
)

var (
	scanParams   []string
	scanDuration time.Duration

	patternName        string
	patternDescription string
	patternKind        string
	patternParams      []string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run scan patterns on the deflector",
}

var scanRunCmd = &cobra.Command{
	Use:   "run <pattern-id>",
	Short: "Run a scan pattern until it ends or is interrupted",
	Long: `Run a built-in or saved pattern. Parameters given with --param override the
stored ones for this run only. Point and zigzag patterns end by themselves;
the others run until Ctrl+C or --duration.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Manage saved scan patterns",
}

var patternListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and saved patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := scan.NewRegistry(cfg.Scan.PatternsFile)
		if err != nil {
			return err
		}
		for _, e := range registry.List() {
			fmt.Printf("%-16s %-8s %-8s %s\n", e.ID, e.Provenance, e.Kind, formatParams(e.Params))
			if e.Description != "" {
				fmt.Printf("%-16s %s\n", "", e.Description)
			}
		}
		return nil
	},
}

var patternSaveCmd = &cobra.Command{
	Use:   "save <pattern-id>",
	Short: "Save a custom pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(patternParams)
		if err != nil {
			return err
		}
		registry, err := scan.NewRegistry(cfg.Scan.PatternsFile)
		if err != nil {
			return err
		}
		name := patternName
		if name == "" {
			name = args[0]
		}
		p := scan.Pattern{
			Name:        name,
			Description: patternDescription,
			Kind:        patternKind,
			Params:      params,
		}
		if err := registry.Save(args[0], p); err != nil {
			return err
		}
		fmt.Printf("Saved pattern %s to %s\n", args[0], registry.Path())
		return nil
	},
}

var patternDeleteCmd = &cobra.Command{
	Use:   "delete <pattern-id>",
	Short: "Delete a custom pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := scan.NewRegistry(cfg.Scan.PatternsFile)
		if err != nil {
			return err
		}
		if err := registry.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted pattern %s\n", args[0])
		return nil
	},
}

func init() {
	scanRunCmd.Flags().StringArrayVar(&scanParams, "param", nil, "Parameter override key=value (repeatable)")
	scanRunCmd.Flags().DurationVar(&scanDuration, "duration", 0, "Stop after this long (0 runs until the pattern ends or Ctrl+C)")
	scanCmd.AddCommand(scanRunCmd)

	patternSaveCmd.Flags().StringVar(&patternName, "name", "", "Display name")
	patternSaveCmd.Flags().StringVar(&patternDescription, "description", "", "Description")
	patternSaveCmd.Flags().StringVar(&patternKind, "kind", "", "Pattern kind (point, line, square, circle, zigzag)")
	patternSaveCmd.Flags().StringArrayVar(&patternParams, "param", nil, "Parameter key=value (repeatable)")
	patternSaveCmd.MarkFlagRequired("kind")
	patternCmd.AddCommand(patternListCmd, patternSaveCmd, patternDeleteCmd)

	rootCmd.AddCommand(scanCmd, patternCmd)
}

func formatParams(p scan.Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}

func runScan(cmd *cobra.Command, args []string) error {
	overrides, err := parseParams(scanParams)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if scanDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scanDuration)
		defer cancel()
	}

	ended := make(chan struct{}, 1)
	observers := acquisition.Observers{
		acquisition.ObserverFuncs{
			StateChange: func(from, to acquisition.State) {
				if from == acquisition.Scanning {
					select {
					case ended <- struct{}{}:
					default:
					}
				}
			},
			Error: func(err error) {
				fmt.Printf("[ERROR] %v\n", err)
			},
		},
	}

	s, err := newSession(sessionOptions{deflector: true, observers: observers})
	if err != nil {
		return err
	}
	defer s.close()

	fmt.Printf("aodscan - Scan %s\n", args[0])
	fmt.Printf("Sensor:    %s\n", describeSensor())
	fmt.Printf("Deflector: %s\n", s.aodInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := s.ctrl.StartPattern(args[0], overrides); err != nil {
		return err
	}

	select {
	case <-ended:
		fmt.Println("Pattern finished")
		return nil
	case <-ctx.Done():
	}
	if err := s.ctrl.StopPattern(); err != nil {
		return err
	}
	if angle, ok := s.deflector.LastAngle(); ok {
		fmt.Printf("Stopped at angle %.4f\n", angle)
	}
	return nil
}

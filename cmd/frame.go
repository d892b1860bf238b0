// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opticbench/aodscan/pkg/aod"
	"github.com/opticbench/aodscan/pkg/transport"
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Encode, decode and sniff deflector frames",
}

var frameEncodeCmd = &cobra.Command{
	Use:   "encode preamp|amp on|off, encode freq <MHz>, encode amplitude <percent>",
	Short: "Print the wire bytes of a deflector command",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := buildFrame(args[0], args[1])
		if err != nil {
			return err
		}
		buf, err := frame.Bytes()
		if err != nil {
			return err
		}
		fmt.Println(aod.FormatHex(buf))
		return nil
	},
}

var frameDecodeCmd = &cobra.Command{
	Use:   "decode <hex bytes>",
	Short: "Decode one frame given as hex",
	Long: `Decode one frame. Bytes may be given as one string or several arguments,
with or without spaces, for example: aodscan frame decode AA 01 A2 01 1C`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := parseHex(args)
		if err != nil {
			return err
		}
		frame, err := aod.Decode(buf)
		if err != nil {
			return err
		}
		fmt.Print(aod.FormatFrame(frame))
		return nil
	},
}

var frameSniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Decode deflector frames from a serial or WebSocket tap",
	Long: `Continuously decode and display deflector frames as they arrive on the
port given by --aod-port, or on the WebSocket bridge given by --url.`,
	Args: cobra.NoArgs,
	RunE: runSniff,
}

func init() {
	frameCmd.AddCommand(frameEncodeCmd, frameDecodeCmd, frameSniffCmd)
	rootCmd.AddCommand(frameCmd)
}

func buildFrame(kind, value string) (*aod.Frame, error) {
	kind = strings.ToLower(kind)
	switch kind {
	case "preamp", "amp":
		on, err := parseSwitch(value)
		if err != nil {
			return nil, err
		}
		if kind == "preamp" {
			return aod.NewPreampCommand(on), nil
		}
		return aod.NewAmpCommand(on), nil
	case "freq", "frequency":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frequency: %v", err)
		}
		return aod.NewSetFrequencyCommand(f)
	case "amplitude", "ampl":
		pct, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amplitude: %v", err)
		}
		return aod.NewSetAmplitudeCommand(pct)
	}
	return nil, fmt.Errorf("unknown frame kind %q (preamp, amp, freq, amplitude)", kind)
}

// parseHex joins args and decodes them, ignoring spaces, colons and 0x
func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer(" ", "", ":", "", "0x", "", "0X", "").Replace(s)
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %v", err)
	}
	return buf, nil
}

func openSniffLink() (transport.Link, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		link, err := transport.OpenWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return link, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}
	return openDeflectorLink()
}

func runSniff(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := openSniffLink()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("aodscan - Deflector Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// block on reads
	if err := conn.SetReadTimeout(0); err != nil {
		return err
	}

	decoder := aod.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// a closed link does not come back
			if errors.Is(err, transport.ErrConnectionClosed) {
				logger.Info("Connection closed")
				return nil
			}
			logger.WithError(err).Warn("Read error")
			continue
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				fmt.Print(aod.FormatFrame(frame))
			}
		}
	}
}

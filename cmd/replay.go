// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/powerstat/pkg/capture"
	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	replayRaw    bool
	replayOutput string
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode a capture file offline",
	Long: `Feed a capture file through the frame decoder and the selected model.

By default every property change is printed with the time it was captured.
With --output the changes are suppressed and the final property snapshot is
printed instead. Sent frames are listed by route; --raw also prints every
received frame.

Examples:
  powerstat replay session.cap
  powerstat replay session.cap --model delta2 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRaw, "raw", false, "Print every received frame")
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "", "Print the final snapshot in this format (table, json, yaml)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replayOutput != "" {
		if err := checkFormat(replayOutput); err != nil {
			return err
		}
	}
	model, err := selectModel()
	if err != nil {
		return err
	}

	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	stats := efpacket.NewStatistics()

	var at time.Time
	dev := newDevice(model,
		device.WithObserver(device.StatisticsObserver{Stats: stats}),
		device.WithStateCallback(func(name string, value any) {
			if replayOutput == "" {
				fmt.Fprintf(out, "[%s] %s = %s\n", at.Format("15:04:05.000"), name, formatValue(value))
			}
		}),
	)

	var (
		scanner *frameScanner
		session uuid.UUID
	)
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		at = e.Time

		if e.Direction == capture.Outbound {
			packet, err := efpacket.Decode(e.Data, useXOR)
			if err != nil {
				logger.Warn("undecodable sent frame", "error", err)
				continue
			}
			if replayOutput == "" {
				fmt.Fprintf(out, "[%s] sent %s\n", at.Format("15:04:05.000"), device.FormatKey(packet))
			}
			continue
		}

		// A new session starts on a fresh stream
		if scanner == nil || e.Session != session {
			scanner = newFrameScanner()
			session = e.Session
		}
		res := scanner.scan(e.Data)
		if res.synced {
			stats.AddSkipped(scanner.invalidBytes)
		}
		for _, decodeErr := range res.errs {
			dev.Observe(nil, decodeErr)
		}
		for _, packet := range res.packets {
			dev.Observe(packet, nil)
			if replayRaw {
				fmt.Fprint(out, efpacket.FormatPacket(packet))
			}
			dev.HandlePacket(packet)
		}
	}

	if replayOutput != "" {
		snapshot := propertyTable(dev.Props().Snapshot())
		return writeOutput(out, replayOutput, snapshot, map[string]any(snapshot))
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, stats.String())
	return nil
}

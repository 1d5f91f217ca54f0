// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/powerstat/pkg/capture"
	"github.com/spf13/cobra"
)

var captureDuration time.Duration

var captureCmd = &cobra.Command{
	Use:   "capture <file>",
	Short: "Record raw traffic to a capture file",
	Long: `Record the raw bytes received from the bridge to a capture file.

Chunks are stored as they arrive, without decoding, so a capture also keeps
corrupted and unsynchronized traffic. Use 'replay' to decode it later.

Recording runs until Ctrl+C or until --duration elapses.

Examples:
  powerstat capture session.cap --port /dev/ttyUSB0
  powerstat capture session.cap --url ws://bridge/ws --duration 1m`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0, "Stop after this long (0 records until interrupted)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	rec, err := capture.Create(args[0])
	if err != nil {
		return err
	}
	defer rec.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if captureDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, captureDuration)
		defer cancel()
	}
	closeOnCancel(ctx, conn)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Powerstat - Capture\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "File: %s (session %s)\n", args[0], rec.Session())
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")

	var bytes int
	err = readChunks(ctx, conn, func(data []byte) {
		if err := rec.Write(capture.Inbound, data); err != nil {
			logger.Warn("capture failed", "error", err)
			return
		}
		bytes += len(data)
	})
	if err != nil && ctx.Err() == nil {
		return err
	}

	fmt.Fprintf(out, "Recorded %d chunks (%d bytes)\n", rec.Count(), bytes)
	return nil
}

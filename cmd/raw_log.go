// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/models"
	"github.com/spf13/cobra"
)

var rawDecode bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display frames as they arrive.

Each frame is shown with timestamp, route, addressing and a hex dump of the
payload. With --decode, payloads routed by the selected model are also shown
as records.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawDecode, "decode", true, "Decode routed payloads with the selected model")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	model, err := selectModel()
	if err != nil {
		return err
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	closeOnCancel(ctx, conn)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Powerstat - Raw Frame Log\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Model: %s\n", model.Name)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	decoder := efpacket.NewStreamDecoder(useXOR)

	err = readChunks(ctx, conn, func(data []byte) {
		packets, errs := decoder.Feed(data)
		for _, decodeErr := range errs {
			fmt.Fprintf(out, "[ERROR] %v\n", decodeErr)
		}
		for _, packet := range packets {
			fmt.Fprint(out, efpacket.FormatPacket(packet))
			if rawDecode {
				printRouted(out, model, packet)
			}
		}
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrConnectionClosed) {
		logger.Info("connection closed")
		return nil
	}
	return err
}

func printRouted(out io.Writer, model *device.Model, packet *efpacket.Packet) {
	msgs, err := models.DecodeRoute(model, device.KeyOf(packet), packet.Payload())
	for _, msg := range msgs {
		fmt.Fprintf(out, "  %v\n", msg)
	}
	if err != nil {
		fmt.Fprintf(out, "  [DECODE] %v\n", err)
	}
	fmt.Fprintln(out)
}

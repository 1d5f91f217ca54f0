// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Wait for a valid frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
frame. It ignores invalid bytes and waits for a complete frame that passes
its header and frame checksums.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing connectivity to a BLE bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Powerstat - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	closeOnCancel(ctx, conn)

	decoder := efpacket.NewStreamDecoder(useXOR)

	// Channel for packet reception
	packetChan := make(chan *efpacket.Packet, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		err := readChunks(ctx, conn, func(data []byte) {
			packets, _ := decoder.Feed(data)
			if len(packets) == 0 {
				return
			}
			if skipped := decoder.Skipped(); skipped > 0 {
				fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
			}
			select {
			case packetChan <- packets[0]:
			default:
			}
			cancel()
		})
		if ctx.Err() == nil {
			errChan <- err
		}
	}()

	// Wait for packet or timeout
	select {
	case packet := <-packetChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Route: %s\n", device.FormatKey(packet))
		fmt.Printf("  Version: %d\n", packet.Version())
		seq := packet.Seq()
		fmt.Printf("  Seq: %s\n", efpacket.FormatHex(seq[:]))
		fmt.Printf("  Length: %d bytes\n", packet.PayloadLen())
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}

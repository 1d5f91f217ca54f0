// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/props"
	"github.com/Thermoquad/powerstat/pkg/rawdata"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and payloads",
	Long: `Track frame errors, malformed payloads and unknown routes with statistics.

This command validates each frame and detects:
  - Frame check failures (prefix, size, length, CRC8, CRC16)
  - Payloads too short for their record layout (truncated records)
  - Payloads that cannot be decoded at all
  - Frames with no route in the selected device model
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// issueKind classifies a problem found in a frame that passed its checksums
type issueKind int

const (
	issueUnrouted issueKind = iota
	issueTruncated
	issueUndecodable
)

func (k issueKind) String() string {
	switch k {
	case issueUnrouted:
		return "UNROUTED"
	case issueTruncated:
		return "TRUNCATED"
	case issueUndecodable:
		return "UNDECODABLE"
	}
	return "UNKNOWN"
}

type frameIssue struct {
	kind    issueKind
	message string
}

// inspectFrame decodes the payload of a valid frame with every decoder routed
// to it and reports anything that does not fit the model
func inspectFrame(model *device.Model, packet *efpacket.Packet) []frameIssue {
	key := device.KeyOf(packet)
	decoders := model.Routes[key]
	if len(decoders) == 0 {
		return []frameIssue{{
			kind:    issueUnrouted,
			message: fmt.Sprintf("no route for %s (%d bytes)", key, packet.PayloadLen()),
		}}
	}

	var issues []frameIssue
	payload := packet.Payload()
	for _, dec := range decoders {
		msgs, err := dec.Decode(payload)
		if err != nil {
			issues = append(issues, frameIssue{
				kind:    issueUndecodable,
				message: fmt.Sprintf("%s: %v", dec.Name(), err),
			})
			continue
		}
		for _, msg := range msgs {
			if r := truncatedRecord(msg); r != nil {
				issues = append(issues, frameIssue{
					kind: issueTruncated,
					message: fmt.Sprintf("%s: %d of %d bytes, %d fields absent",
						r.Schema().Name(), r.Size(), r.Schema().Width(), absentFields(r)),
				})
			}
		}
	}
	return issues
}

func truncatedRecord(msg props.Message) *rawdata.Record {
	switch m := msg.(type) {
	case *rawdata.Record:
		if m.Truncated() {
			return m
		}
	case *rawdata.CompositeRecord:
		if m.Header().Truncated() {
			return m.Header()
		}
	}
	return nil
}

func absentFields(r *rawdata.Record) int {
	n := 0
	for _, f := range r.Schema().Fields() {
		if !r.Present(f.Name) {
			n++
		}
	}
	return n
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
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

	if useTUI {
		return runTUIMode(ctx, conn, connInfo, model)
	}
	return runTextMode(ctx, conn, connInfo, model)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	var de *efpacket.DecodeError
	if errors.As(err, &de) && len(de.Data) > 0 {
		fmt.Print(efpacket.FormatHexDump(de.Data, "  "))
	}
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// printFrameIssues prints the payload problems of a frame
func printFrameIssues(packet *efpacket.Packet, issues []frameIssue) {
	timestamp := packet.Timestamp().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mPAYLOAD ISSUE:\033[0m %s\n", timestamp, device.FormatKey(packet))
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, issue := range issues {
		switch issue.kind {
		case issueUndecodable:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m %s\n", i+1, issue.kind, issue.message)
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m %s\n", i+1, issue.kind, issue.message)
		}
	}

	fmt.Print(efpacket.FormatHexDump(packet.Payload(), "  "))
	fmt.Println()
}

// frameScanner feeds stream bytes to a decoder and holds back decode errors
// until the stream has produced its first valid frame
type frameScanner struct {
	decoder      *efpacket.StreamDecoder
	synchronized bool
	invalidBytes int
}

type scanResult struct {
	packets []*efpacket.Packet
	errs    []error
	// synced is set on the call that produced the first valid frame
	synced bool
}

func newFrameScanner() *frameScanner {
	return &frameScanner{decoder: efpacket.NewStreamDecoder(useXOR)}
}

func (s *frameScanner) scan(data []byte) scanResult {
	before := s.decoder.Skipped()
	packets, errs := s.decoder.Feed(data)

	var res scanResult
	if !s.synchronized {
		s.invalidBytes += s.decoder.Skipped() - before
		if len(packets) == 0 {
			return res
		}
		s.synchronized = true
		res.synced = true
		errs = nil
	}
	res.packets = packets
	res.errs = errs
	return res
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(ctx context.Context, conn Connection, connInfo string, model *device.Model) error {
	scanner := newFrameScanner()

	// Create TUI program
	m := initialModel(connInfo, model.Name, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	// Reader goroutine
	go func() {
		err := readChunks(ctx, conn, func(data []byte) {
			res := scanner.scan(data)
			if res.synced {
				p.Send(syncMsg{invalidBytes: scanner.invalidBytes})
			}
			for _, decodeErr := range res.errs {
				p.Send(frameDataMsg{decodeErr: decodeErr})
			}
			for _, packet := range res.packets {
				p.Send(frameDataMsg{packet: packet, issues: inspectFrame(model, packet)})
			}
		})
		if err != nil && ctx.Err() == nil {
			p.Send(connectionLostMsg{err: err})
		}
	}()

	// Run TUI
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(ctx context.Context, conn Connection, connInfo string, model *device.Model) error {
	fmt.Printf("Powerstat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Model: %s\n", model.Name)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	scanner := newFrameScanner()
	stats := efpacket.NewStatistics()

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking reads
	chunks := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readChunks(ctx, conn, func(data []byte) {
			chunks <- append([]byte(nil), data...)
		})
	}()

	for {
		select {
		case data := <-chunks:
			res := scanner.scan(data)
			if res.synced {
				if scanner.invalidBytes > 0 {
					stats.AddSkipped(scanner.invalidBytes)
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", scanner.invalidBytes)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}

			for _, decodeErr := range res.errs {
				stats.Update(nil, decodeErr)
				printDecodeError(decodeErr)
			}

			for _, packet := range res.packets {
				stats.Update(packet, nil)
				issues := inspectFrame(model, packet)
				if len(issues) > 0 && issues[0].kind == issueUnrouted {
					stats.MarkUnrecognized()
				}

				// Print frame or issue based on mode
				if len(issues) > 0 {
					printFrameIssues(packet, issues)
				} else if showAll {
					fmt.Print(efpacket.FormatPacket(packet))
					printRouted(os.Stdout, model, packet)
				}
			}

		case err := <-readErr:
			fmt.Println()
			fmt.Print(stats.String())
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return err

		case <-statsTicker.C:
			// Print statistics
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/powerstat/pkg/capture"
	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/metrics"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	monitorTUI      bool
	monitorOnce     bool
	monitorDuration time.Duration
	monitorOutput   string
	metricsAddr     string
	monitorCapture  string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Track device properties and send commands",
	Long: `Monitor a power station through its device model.

Every frame runs one processing cycle: the payload is routed by
(src, cmdSet, cmdId) to the record layouts of the selected model, the decoded
records update the bound properties and each changed property is reported.

Features:
  - Live property table with change highlighting (--tui)
  - Command panel for the model's write commands (--tui)
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss
  - Prometheus metrics endpoint (--metrics-addr)
  - Capture of inbound and outbound bytes (--capture)

With --once, properties are collected for --duration and printed once.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "Collect properties for --duration, print them and exit")
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 5*time.Second, "Collection time for --once")
	monitorCmd.Flags().StringVarP(&monitorOutput, "output", "o", formatTable, "Output format for --once (table, json, yaml)")
	monitorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record traffic to a capture file")
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	sender   *connSender
	rec      *capture.Writer
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
	cm.sender.SetConn(conn)
}

// propertyChange is one property update reported by a processing cycle
type propertyChange struct {
	name  string
	value any
	at    time.Time
}

// frameEvent is one frame seen by the reader
type frameEvent struct {
	packet    *efpacket.Packet
	decodeErr error
	matched   bool
}

// monitorSink receives the output of the reader
type monitorSink interface {
	synced(invalidBytes int)
	frame(ev frameEvent)
	changed(ch propertyChange)
	lost(err error)
	reconnected(connInfo string)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := checkFormat(monitorOutput); err != nil {
		return err
	}
	model, err := selectModel()
	if err != nil {
		return err
	}

	// Open initial connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cm := &connectionManager{conn: conn, connInfo: connInfo}
	if monitorCapture != "" {
		cm.rec, err = capture.Create(monitorCapture)
		if err != nil {
			conn.Close()
			return err
		}
		defer cm.rec.Close()
		logger.Info("capturing traffic", "file", monitorCapture, "session", cm.rec.Session())
	}
	cm.sender = newConnSender(conn, cm.rec)
	defer func() {
		if c := cm.getConn(); c != nil {
			c.Close()
		}
	}()

	opts := []device.Option{device.WithSender(cm.sender)}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.NewCollector(model.Name, reg)
		if err != nil {
			return err
		}
		opts = append(opts, device.WithObserver(collector))
		srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", metricsAddr)
	}

	switch {
	case monitorOnce:
		return runMonitorOnce(ctx, cmd, cm, model, opts)
	case monitorTUI:
		return runMonitorTUI(ctx, cm, model, opts)
	}
	return runMonitorText(ctx, cm, model, opts)
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}

// readerLoop processes frames with dev until ctx ends, reconnecting with
// exponential backoff whenever the connection is lost. It is the only
// goroutine touching dev's properties.
func (cm *connectionManager) readerLoop(ctx context.Context, dev *device.Device, sink monitorSink) {
	for {
		err := cm.readFromConnection(ctx, dev, sink)
		if ctx.Err() != nil {
			return
		}
		sink.lost(err)

		if !cm.reconnect(ctx) {
			return
		}
		sink.reconnected(cm.connInfo)
	}
}

// readFromConnection runs processing cycles until the connection fails
func (cm *connectionManager) readFromConnection(ctx context.Context, dev *device.Device, sink monitorSink) error {
	conn := cm.getConn()
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	closeOnCancel(connCtx, conn)

	scanner := newFrameScanner()
	return readChunks(connCtx, conn, func(data []byte) {
		if cm.rec != nil {
			if err := cm.rec.Write(capture.Inbound, data); err != nil {
				logger.Warn("capture failed", "error", err)
			}
		}

		res := scanner.scan(data)
		if res.synced {
			sink.synced(scanner.invalidBytes)
		}
		for _, decodeErr := range res.errs {
			dev.Observe(nil, decodeErr)
			sink.frame(frameEvent{decodeErr: decodeErr})
		}
		for _, packet := range res.packets {
			dev.Observe(packet, nil)
			matched := dev.HandlePacket(packet)
			sink.frame(frameEvent{packet: packet, matched: matched})
		}
	})
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect(ctx context.Context) bool {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		// Attempt to reconnect
		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			return true
		}
		logger.Debug("reconnect failed", "error", err, "backoff", backoff)

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// textSink prints changes as they happen
type textSink struct {
	stats *efpacket.Statistics
}

func (s *textSink) synced(invalidBytes int) {
	s.stats.AddSkipped(invalidBytes)
	if invalidBytes > 0 {
		fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n", invalidBytes)
		return
	}
	fmt.Printf("[SYNC] Synchronized\n")
}

func (s *textSink) frame(ev frameEvent) {}

func (s *textSink) changed(ch propertyChange) {
	fmt.Printf("[%s] %s = %s\n", ch.at.Format("15:04:05.000"), ch.name, formatValue(ch.value))
}

func (s *textSink) lost(err error) {
	fmt.Printf("[CONN] Connection lost (%v), reconnecting...\n", err)
}

func (s *textSink) reconnected(connInfo string) {
	fmt.Printf("[CONN] Reconnected: %s\n", connInfo)
}

func runMonitorText(ctx context.Context, cm *connectionManager, model *device.Model, opts []device.Option) error {
	fmt.Printf("Powerstat - Monitor\n")
	fmt.Printf("Connection: %s\n", cm.connInfo)
	fmt.Printf("Model: %s\n", model.Name)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := efpacket.NewStatistics()
	sink := &textSink{stats: stats}
	opts = append(opts,
		device.WithObserver(device.StatisticsObserver{Stats: stats}),
		device.WithStateCallback(func(name string, value any) {
			sink.changed(propertyChange{name: name, value: value, at: time.Now()})
		}),
	)
	dev := newDevice(model, opts...)

	cm.readerLoop(ctx, dev, sink)

	fmt.Println()
	fmt.Print(stats.String())
	return nil
}

// onceSink ignores everything; runMonitorOnce reads the final snapshot
type onceSink struct{}

func (onceSink) synced(int)             {}
func (onceSink) frame(frameEvent)       {}
func (onceSink) changed(propertyChange) {}

func (onceSink) lost(err error) { logger.Warn("connection lost", "error", err) }

func (onceSink) reconnected(connInfo string) { logger.Info("reconnected", "connection", connInfo) }

func runMonitorOnce(ctx context.Context, cmd *cobra.Command, cm *connectionManager, model *device.Model, opts []device.Option) error {
	dev := newDevice(model, opts...)

	ctx, cancel := context.WithTimeout(ctx, monitorDuration)
	defer cancel()
	cm.readerLoop(ctx, dev, onceSink{})

	snapshot := propertyTable(dev.Props().Snapshot())
	return writeOutput(cmd.OutOrStdout(), monitorOutput, snapshot, map[string]any(snapshot))
}

// batchSink forwards reader output to the TUI in batches
type batchSink struct {
	mu      sync.Mutex
	pending monitorBatchMsg
}

func (s *batchSink) synced(invalidBytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.sync = &invalidBytes
}

func (s *batchSink) frame(ev frameEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.frames = append(s.pending.frames, ev)
}

func (s *batchSink) changed(ch propertyChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.changes = append(s.pending.changes, ch)
}

func (s *batchSink) lost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.lost = err
}

func (s *batchSink) reconnected(connInfo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.reconnected = connInfo
}

// take returns and clears the pending batch
func (s *batchSink) take() (monitorBatchMsg, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.pending
	s.pending = monitorBatchMsg{}
	return b, !b.empty()
}

func runMonitorTUI(ctx context.Context, cm *connectionManager, model *device.Model, opts []device.Option) error {
	sink := &batchSink{}
	opts = append(opts,
		// Log lines would tear the alt screen; problems show in the event log
		device.WithLogger(slog.New(slog.DiscardHandler)),
		device.WithStateCallback(func(name string, value any) {
			sink.changed(propertyChange{name: name, value: value, at: time.Now()})
		}),
	)
	dev := newDevice(model, opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Create TUI program with alt screen
	m := initialMonitorModel(ctx, dev, cm.connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go cm.readerLoop(ctx, dev, sink)

	// Batch sender goroutine - sends batched updates to TUI at fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if batch, ok := sink.take(); ok {
					p.Send(batch)
				}
			}
		}
	}()

	// Run TUI
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

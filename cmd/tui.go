// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// Per-route traffic seen since start
type routeTraffic struct {
	key      device.RouteKey
	count    uint64
	lastSize int
	lastSeen time.Time
}

// TUI model
type model struct {
	connInfo      string
	modelName     string
	statsInterval int
	showAll       bool
	stats         *efpacket.Statistics
	issueCounts   map[issueKind]uint64
	routes        map[device.RouteKey]*routeTraffic
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	width         int
	height        int
	quitting      bool
	lost          bool
}

// Messages
type tickMsg time.Time
type frameDataMsg struct {
	packet    *efpacket.Packet
	decodeErr error
	issues    []frameIssue
}
type syncMsg struct {
	invalidBytes int
}
type connectionLostMsg struct {
	err error
}

// formatElapsed formats a duration in seconds to a human-friendly string
func formatElapsed(total uint64) string {
	seconds := total
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	unit := func(n uint64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, unit(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo, modelName string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		modelName:     modelName,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         efpacket.NewStatistics(),
		issueCounts:   make(map[issueKind]uint64),
		routes:        make(map[device.RouteKey]*routeTraffic),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.issueCounts = make(map[issueKind]uint64)
			m.routes = make(map[device.RouteKey]*routeTraffic)
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Update statistics rates
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		m.stats.AddSkipped(msg.invalidBytes)
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connectionLostMsg:
		m.lost = true
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)

	case frameDataMsg:
		m.handleFrame(msg)
	}

	return m, nil
}

func (m *model) handleFrame(msg frameDataMsg) {
	if msg.decodeErr != nil {
		m.stats.Update(nil, msg.decodeErr)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}
	if msg.packet == nil {
		return
	}

	m.stats.Update(msg.packet, nil)
	m.trackRoute(msg.packet)

	route := device.FormatKey(msg.packet)
	for _, issue := range msg.issues {
		m.issueCounts[issue.kind]++
		if issue.kind == issueUnrouted {
			m.stats.MarkUnrecognized()
		}
		m.addLogEntry(fmt.Sprintf("%s %s: %s", route, issue.kind, issue.message), issue.kind == issueUndecodable)
	}
	if len(msg.issues) == 0 && m.showAll {
		m.addLogEntry(fmt.Sprintf("%s len=%d (valid)", route, msg.packet.PayloadLen()), false)
	}
}

func (m *model) trackRoute(p *efpacket.Packet) {
	key := device.KeyOf(p)
	t, ok := m.routes[key]
	if !ok {
		t = &routeTraffic{key: key}
		m.routes[key] = t
	}
	t.count++
	t.lastSize = p.PayloadLen()
	t.lastSeen = p.Timestamp()
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// sortedRoutes returns route traffic ordered by route key
func (m model) sortedRoutes() []*routeTraffic {
	out := make([]*routeTraffic, 0, len(m.routes))
	for _, t := range m.routes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].key, out[j].key
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		if a.CmdSet != b.CmdSet {
			return a.CmdSet < b.CmdSet
		}
		return a.CmdID < b.CmdID
	})
	return out
}

// Styles shared by the terminal UIs
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("POWERSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Model: %s | Mode: %s | 'r' reset, 'q' quit",
		m.connInfo, m.modelName, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.lost:
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
		s.WriteString("\n\n")
	}

	s.WriteString(boxStyle.Render(m.renderStatistics()))
	s.WriteString("\n\n")

	// Routes section (only shown once frames arrived)
	if len(m.routes) > 0 {
		s.WriteString(statsLabelStyle.Render("Routes:"))
		s.WriteString("\n")
		routeContent := strings.Builder{}
		for _, t := range m.sortedRoutes() {
			routeContent.WriteString(fmt.Sprintf("%s %s len=%d last=%s\n",
				statsLabelStyle.Render(t.key.String()),
				statsValueStyle.Render(fmt.Sprintf("%6d", t.count)),
				t.lastSize, t.lastSeen.Format("15:04:05")))
		}
		s.WriteString(boxStyle.Render(strings.TrimRight(routeContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(renderEventLog(m.errorLog, m.height-15-len(m.routes), m.width))

	return s.String()
}

func (m model) renderStatistics() string {
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		errorPercent = float64(m.stats.DecodeErrors) * 100.0 / float64(m.stats.TotalPackets)
	}

	content := strings.Builder{}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidPackets, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.DecodeErrors, errorPercent)),
	))

	if m.stats.DecodeErrors > 0 {
		content.WriteString(statsLabelStyle.Render("Checks:"))
		for _, check := range efpacket.Checks {
			if n := m.stats.CheckFailures[check]; n > 0 {
				content.WriteString(fmt.Sprintf(" %s %s", headerStyle.Render(efpacket.FormatCheck(check)), errorStyle.Render(fmt.Sprintf("%d", n))))
			}
		}
		content.WriteString("\n")
	}

	if len(m.issueCounts) > 0 {
		content.WriteString(statsLabelStyle.Render("Payload:"))
		for _, kind := range []issueKind{issueUnrouted, issueTruncated, issueUndecodable} {
			if n := m.issueCounts[kind]; n > 0 {
				style := warningStyle
				if kind == issueUndecodable {
					style = errorStyle
				}
				content.WriteString(fmt.Sprintf(" %s %s", headerStyle.Render(strings.ToLower(kind.String())), style.Render(fmt.Sprintf("%d", n))))
			}
		}
		content.WriteString("\n")
	}

	errRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), errRate,
		statsLabelStyle.Render("Running:"), statsValueStyle.Render(formatElapsed(uint64(time.Since(m.stats.StartTime).Seconds()))),
	))
	return content.String()
}

// renderEventLog renders the newest log entries that fit in height lines
func renderEventLog(entries []errorLogEntry, height, width int) string {
	if height < 5 {
		height = 5
	}

	logContent := strings.Builder{}
	startIdx := len(entries) - height
	if startIdx < 0 {
		startIdx = 0
	}

	if len(entries) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(entries); i++ {
			entry := entries[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	return boxStyle.Width(max(width-4, 20)).Render(logContent.String())
}

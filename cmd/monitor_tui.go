// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	commandTimeout = 5 * time.Second
	// Properties changed within this window are highlighted
	highlightWindow = 2 * time.Second
)

// Focus states
const (
	focusProperties = iota
	focusCommands
	focusValueInput
	focusCount
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// commandItem is a write command in the command list
type commandItem struct {
	cmd device.Command
}

// Implement list.Item interface
func (c commandItem) Title() string       { return c.cmd.Name }
func (c commandItem) Description() string { return fmt.Sprintf("%s (%s)", c.cmd.Description, c.cmd.Usage()) }
func (c commandItem) FilterValue() string { return c.cmd.Name }

// propertyState is the last known value of one property
type propertyState struct {
	value   any
	changed time.Time
	updates uint64
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	ctx      context.Context
	dev      *device.Device
	connInfo string

	// Properties in registry order
	names      []string
	properties map[string]*propertyState
	propTable  table.Model

	// Commands
	commandList list.Model
	valueInput  textinput.Model
	focused     int

	// Monitoring
	stats         *efpacket.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// monitorBatchMsg carries everything the reader produced since the last batch
type monitorBatchMsg struct {
	sync        *int
	frames      []frameEvent
	changes     []propertyChange
	lost        error
	reconnected string
}

func (b monitorBatchMsg) empty() bool {
	return b.sync == nil && len(b.frames) == 0 && len(b.changes) == 0 && b.lost == nil && b.reconnected == ""
}

type commandResultMsg struct {
	name string
	arg  int64
	err  error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(ctx context.Context, dev *device.Device, connInfo string) monitorModel {
	// Initialize text input for command values
	ti := textinput.New()
	ti.Placeholder = "value"
	ti.CharLimit = 10
	ti.Width = 12

	// Initialize command list from the model's write commands
	items := make([]list.Item, len(dev.Model().Commands))
	for i, c := range dev.Model().Commands {
		items[i] = commandItem{cmd: c}
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	commandList := list.New(items, delegate, 36, 12)
	commandList.Title = "Commands"
	commandList.SetShowStatusBar(false)
	commandList.SetShowHelp(false)
	commandList.SetFilteringEnabled(false)

	names := dev.Props().Names()
	propTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Property", Width: 28},
			{Title: "Value", Width: 16},
			{Title: "Updates", Width: 8},
			{Title: "Changed", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12"))
	propTable.SetStyles(styles)

	m := monitorModel{
		ctx:           ctx,
		dev:           dev,
		connInfo:      connInfo,
		names:         names,
		properties:    make(map[string]*propertyState, len(names)),
		propTable:     propTable,
		commandList:   commandList,
		valueInput:    ti,
		focused:       focusProperties,
		stats:         efpacket.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.refreshTable()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateSizes()

	case monitorTickMsg:
		m.stats.CalculateRates()
		m.refreshTable()
		return m, monitorTickCmd()

	case monitorBatchMsg:
		m.processBatch(msg)

	case commandResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s %d failed: %v", msg.name, msg.arg, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("Sent %s %d", msg.name, msg.arg), false)
		}
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focused != focusValueInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		switch m.focused {
		case focusCommands:
			return m.cycleFocus(1), nil
		case focusValueInput:
			return m.sendCommand()
		}
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focused {
	case focusProperties:
		m.propTable, cmd = m.propTable.Update(msg)
	case focusCommands:
		m.commandList, cmd = m.commandList.Update(msg)
	case focusValueInput:
		m.valueInput, cmd = m.valueInput.Update(msg)
	}
	return m, cmd
}

func (m monitorModel) cycleFocus(delta int) monitorModel {
	m.focused = (m.focused + delta + focusCount) % focusCount

	// No commands to pick from
	if len(m.dev.Model().Commands) == 0 && m.focused != focusProperties {
		m.focused = focusProperties
	}

	if m.focused == focusProperties {
		m.propTable.Focus()
	} else {
		m.propTable.Blur()
	}
	if m.focused == focusValueInput {
		m.valueInput.Focus()
		if item, ok := m.commandList.SelectedItem().(commandItem); ok {
			m.valueInput.Placeholder = item.cmd.Usage()
		}
	} else {
		m.valueInput.Blur()
	}
	return m
}

// sendCommand validates the typed value and sends the selected command
// without blocking the UI
func (m monitorModel) sendCommand() (tea.Model, tea.Cmd) {
	// Don't allow commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}

	item, ok := m.commandList.SelectedItem().(commandItem)
	if !ok {
		return m, nil
	}

	arg, err := item.cmd.Parse(strings.TrimSpace(m.valueInput.Value()))
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	m.valueInput.SetValue("")

	ctx, dev, name := m.ctx, m.dev, item.cmd.Name
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		return commandResultMsg{name: name, arg: arg, err: dev.Execute(ctx, name, arg)}
	}
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) processBatch(b monitorBatchMsg) {
	if b.sync != nil {
		m.synchronized = true
		m.stats.AddSkipped(*b.sync)
		if *b.sync > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", *b.sync), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	for _, ev := range b.frames {
		if ev.decodeErr != nil {
			m.stats.Update(nil, ev.decodeErr)
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.decodeErr), true)
			continue
		}
		m.stats.Update(ev.packet, nil)
		if !ev.matched {
			m.stats.MarkUnrecognized()
		}
	}

	for _, ch := range b.changes {
		st, ok := m.properties[ch.name]
		if !ok {
			st = &propertyState{}
			m.properties[ch.name] = st
			if !slices.Contains(m.names, ch.name) {
				m.names = append(m.names, ch.name)
			}
		}
		st.value = ch.value
		st.changed = ch.at
		st.updates++
	}
	if len(b.changes) > 0 {
		m.refreshTable()
	}

	if b.lost != nil {
		m.connectionLost = true
		m.synchronized = false
		m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", b.lost), true)
	}
	if b.reconnected != "" {
		m.connectionLost = false
		m.connInfo = b.reconnected
		m.addLogEntry("Reconnected: "+b.reconnected, false)
	}
}

// refreshTable rebuilds the property rows. Recently changed values are
// marked with an asterisk.
func (m *monitorModel) refreshTable() {
	rows := make([]table.Row, len(m.names))
	for i, name := range m.names {
		st := m.properties[name]
		if st == nil {
			rows[i] = table.Row{name, "-", "0", ""}
			continue
		}
		value := formatValue(st.value)
		if time.Since(st.changed) < highlightWindow {
			value = "* " + value
		}
		rows[i] = table.Row{name, value, fmt.Sprintf("%d", st.updates), st.changed.Format("15:04:05")}
	}
	m.propTable.SetRows(rows)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	focusedBoxStyle := boxStyle.BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("POWERSTAT MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | q=quit Tab=switch Enter=select/send",
		m.dev.Model().Name, connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (properties) | right panel (commands)
	tableStyle := boxStyle
	if m.focused == focusProperties {
		tableStyle = focusedBoxStyle
	}
	propertyPanel := tableStyle.Render(m.propTable.View())

	commandStyle := boxStyle
	if m.focused != focusProperties {
		commandStyle = focusedBoxStyle
	}
	commandPanel := commandStyle.Render(m.renderCommandPanel())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, propertyPanel, " ", commandPanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")
	s.WriteString(renderEventLog(m.errorLog, 6, m.width))

	return s.String()
}

func (m monitorModel) renderCommandPanel() string {
	if len(m.dev.Model().Commands) == 0 {
		return headerStyle.Render("No commands for this model")
	}

	var s strings.Builder
	s.WriteString(m.commandList.View())
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Value: "))
	if m.focused == focusValueInput {
		s.WriteString(m.valueInput.View())
	} else {
		// Show as plain text when not focused
		val := m.valueInput.Value()
		if val == "" {
			val = m.valueInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	return s.String()
}

func (m monitorModel) renderStatisticsBar() string {
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		errorPercent = float64(m.stats.DecodeErrors) * 100.0 / float64(m.stats.TotalPackets)
	}

	errText := statsValueStyle.Render("0.0%")
	if errorPercent > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	stream := warningStyle.Render("waiting")
	if m.synchronized {
		stream = statsValueStyle.Render("synced")
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), errText,
		statsLabelStyle.Render("Unrouted:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Unrecognized)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f fr/s", m.stats.PacketRate)),
		statsLabelStyle.Render("Stream:"), stream,
	)

	return boxStyle.Width(max(m.width-4, 20)).Render(content)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m *monitorModel) updateSizes() {
	// Event log and statistics take roughly 14 lines
	tableHeight := m.height - 16
	if tableHeight < 5 {
		tableHeight = 5
	}
	m.propTable.SetHeight(tableHeight)
	m.commandList.SetSize(36, max(tableHeight-3, 4))
}

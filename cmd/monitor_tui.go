// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opticbench/aodscan/internal/acquisition"
	"github.com/opticbench/aodscan/internal/measure"
	"github.com/opticbench/aodscan/internal/scan"
	"github.com/opticbench/aodscan/pkg/lidar"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	statsWindow   = 100 // measurements included in the rolling statistics
	maxLogEntries = 100
)

// Focus states
const (
	focusPatternList = iota
	focusAngleInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// eventLogEntry is one line of the event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// patternItem implements list.Item
type patternItem struct {
	entry scan.Entry
}

func (p patternItem) Title() string {
	return fmt.Sprintf("%s (%s)", p.entry.ID, p.entry.Provenance)
}
func (p patternItem) Description() string { return p.entry.Kind + " " + formatParams(p.entry.Params) }
func (p patternItem) FilterValue() string { return p.entry.ID }

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	sess     *session
	connInfo string

	// Acquisition
	state       acquisition.State
	mode        acquisition.Mode
	laserOn     bool
	status      *lidar.Status
	history     *measure.Log
	readErrors  int
	connectedAt time.Time

	// Beam steering
	patterns     list.Model
	angleInput   textinput.Model
	focusedField int

	// UI state
	errorLog []eventLogEntry
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type stateChangedMsg struct {
	from, to acquisition.State
}

type measurementMsg measure.Measurement

type statusMsg lidar.Status

type laserMsg bool

type errorMsg struct {
	err error
}

type monitorBatchMsg struct {
	events []tea.Msg
}

type actionResultMsg struct {
	action string
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

// initialMonitorModel builds the model; s may be nil in tests
func initialMonitorModel(s *session, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.CharLimit = 10
	ti.Width = 10

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	patternList := list.New([]list.Item{}, delegate, 36, 12)
	patternList.Title = "Patterns"
	patternList.SetShowStatusBar(false)
	patternList.SetShowHelp(false)
	patternList.SetFilteringEnabled(false)

	m := monitorModel{
		sess:         s,
		connInfo:     connInfo,
		state:        acquisition.Connected,
		mode:         acquisition.ModeFast,
		history:      measure.NewLog(),
		connectedAt:  time.Now(),
		patterns:     patternList,
		angleInput:   ti,
		focusedField: focusPatternList,
		errorLog:     make([]eventLogEntry, 0),
		width:        80,
		height:       24,
	}

	if s != nil && s.registry != nil {
		var items []list.Item
		for _, e := range s.registry.List() {
			items = append(items, patternItem{entry: e})
		}
		m.patterns.SetItems(items)
	}
	if s != nil {
		m.state = s.ctrl.State()
		if sess, ok := s.ctrl.Session(); ok {
			m.connectedAt = sess.StartedAt
		}
	}
	return m
}

func (m monitorModel) hasDeflector() bool {
	return m.sess != nil && m.sess.deflector != nil
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

	case monitorTickMsg:
		if m.sess != nil {
			m.state = m.sess.ctrl.State()
		}
		return m, monitorTickCmd()

	case monitorBatchMsg:
		for _, event := range msg.events {
			m.applyEvent(event)
		}

	case actionResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", msg.action, msg.err), true)
		}

	default:
		m.applyEvent(msg)
	}

	return m, nil
}

// applyEvent folds one controller event into the model
func (m *monitorModel) applyEvent(msg tea.Msg) {
	switch msg := msg.(type) {
	case stateChangedMsg:
		m.state = msg.to
		if msg.to == acquisition.Connected && msg.from == acquisition.Disconnected {
			m.connectedAt = time.Now()
		}
		// single shots flip state twice per reading, keep them out of the log
		if msg.from != acquisition.SingleShot && msg.to != acquisition.SingleShot {
			m.addLogEntry(fmt.Sprintf("%s -> %s", msg.from, msg.to), false)
		}

	case measurementMsg:
		m.history.Add(measure.Measurement(msg))

	case statusMsg:
		s := lidar.Status(msg)
		m.status = &s

	case laserMsg:
		m.laserOn = bool(msg)

	case errorMsg:
		m.readErrors++
		m.addLogEntry(msg.err.Error(), true)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-maxLogEntries:]
	}
}

// action runs fn off the UI goroutine; controller calls may block
func action(name string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{action: name, err: fn()}
	}
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		if !m.hasDeflector() {
			return m, nil
		}
		if m.focusedField == focusPatternList {
			m.focusedField = focusAngleInput
			m.angleInput.Focus()
		} else {
			m.focusedField = focusPatternList
			m.angleInput.Blur()
		}
		return m, nil

	case "enter":
		return m.handleEnter()
	}

	// The angle input takes every other key while focused
	if m.focusedField == focusAngleInput {
		var cmd tea.Cmd
		m.angleInput, cmd = m.angleInput.Update(msg)
		return m, cmd
	}

	if m.sess == nil {
		if msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}
	ctrl := m.sess.ctrl

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "c":
		if m.state == acquisition.Continuous {
			return m, action("stop continuous", ctrl.StopContinuous)
		}
		mode := m.mode
		return m, action("start continuous", func() error { return ctrl.StartContinuous(mode) })

	case "f":
		if m.mode == acquisition.ModeFast {
			m.mode = acquisition.ModeSlow
		} else {
			m.mode = acquisition.ModeFast
		}
		m.addLogEntry(fmt.Sprintf("Next continuous run uses %s mode", m.mode), false)

	case "m":
		return m, action("measure", func() error {
			_, err := ctrl.MeasureOnce(context.Background())
			return err
		})

	case "l":
		return m, action("laser", func() error {
			_, err := ctrl.ToggleLaser()
			return err
		})

	case "s":
		return m, action("status", func() error {
			_, err := ctrl.ReadStatus()
			return err
		})

	case "x":
		return m, action("stop pattern", ctrl.StopPattern)

	case "up", "k", "down", "j":
		m.patterns, _ = m.patterns.Update(msg)
	}

	return m, nil
}

func (m monitorModel) handleEnter() (tea.Model, tea.Cmd) {
	if !m.hasDeflector() {
		return m, nil
	}
	ctrl := m.sess.ctrl

	if m.focusedField == focusAngleInput {
		value := m.angleInput.Value()
		if value == "" {
			value = m.angleInput.Placeholder
		}
		angle, err := strconv.ParseFloat(value, 64)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid angle: %s", value), true)
			return m, nil
		}
		if m.state == acquisition.Scanning {
			m.addLogEntry("Stop the running pattern before setting an angle", true)
			return m, nil
		}
		deflector := m.sess.deflector
		m.addLogEntry(fmt.Sprintf("Angle %.4f", angle), false)
		return m, action("set angle", func() error { return deflector.SetAngle(angle) })
	}

	item, ok := m.patterns.SelectedItem().(patternItem)
	if !ok {
		return m, nil
	}
	id := item.entry.ID
	if m.state == acquisition.Scanning {
		return m, action("switch pattern", func() error {
			if err := ctrl.StopPattern(); err != nil {
				return err
			}
			return ctrl.StartPattern(id, nil)
		})
	}
	return m, action("start pattern "+id, func() error { return ctrl.StartPattern(id, nil) })
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	var s strings.Builder

	// Header
	helpText := "q=quit c=continuous m=measure f=mode l=laser s=status"
	if m.hasDeflector() {
		helpText += " x=stop Tab=switch"
	}
	s.WriteString(titleStyle.Render("AODSCAN MONITOR"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", m.connInfo, helpText)))
	s.WriteString("\n\n")

	s.WriteString(m.renderSessionBar(statsLabelStyle, statsValueStyle, warningStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderStatistics(statsLabelStyle, statsValueStyle, errorStyle, headerStyle, boxStyle))
	s.WriteString("\n")

	if m.hasDeflector() {
		listStyle := boxStyle.Width(38)
		if m.focusedField == focusPatternList {
			listStyle = focusedBoxStyle.Width(38)
		}
		patternPanel := listStyle.Render(m.patterns.View())

		controlStyle := boxStyle.Width(m.width - 38 - 6)
		if m.focusedField == focusAngleInput {
			controlStyle = focusedBoxStyle.Width(m.width - 38 - 6)
		}
		controlPanel := controlStyle.Render(m.renderBeamPanel(statsLabelStyle, statsValueStyle, headerStyle))

		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, patternPanel, " ", controlPanel))
		s.WriteString("\n")
	}

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, errorStyle, headerStyle, boxStyle))
	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderSessionBar(labelStyle, valueStyle, warningStyle, boxStyle lipgloss.Style) string {
	stateStyle := valueStyle
	if m.state == acquisition.Disconnected {
		stateStyle = warningStyle
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("State:"), stateStyle.Render(m.state.String()),
		labelStyle.Render("Mode:"), valueStyle.Render(string(m.mode)),
		labelStyle.Render("Laser:"), valueStyle.Render(onOff(m.laserOn)),
		labelStyle.Render("Up:"), valueStyle.Render(formatElapsed(time.Since(m.connectedAt))),
	)
	if m.status != nil {
		voltage := fmt.Sprintf("%.2fV", m.status.Voltage)
		if m.status.VoltageDefaulted {
			voltage += "?"
		}
		content += fmt.Sprintf("  %s %s  %s %s",
			labelStyle.Render("Temp:"), valueStyle.Render(fmt.Sprintf("%.1f°C", m.status.Temperature)),
			labelStyle.Render("Supply:"), valueStyle.Render(voltage),
		)
	}
	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderStatistics(labelStyle, valueStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	distances := m.history.Distances(statsWindow)
	if len(distances) == 0 {
		return boxStyle.Width(m.width - 4).Render(headerStyle.Render("No measurements yet"))
	}

	sum := measure.Summarize(distances)
	last := distances[len(distances)-1]
	rate := 0.0
	if intervals := m.history.Intervals(statsWindow); len(intervals) > 0 {
		if iv := measure.Summarize(intervals); iv.Mean > 0 {
			rate = 1 / iv.Mean
		}
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Last:"), valueStyle.Render(fmt.Sprintf("%.3f m", last)),
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", m.history.Len())),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f Hz", rate)),
	))
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Mean:"), valueStyle.Render(fmt.Sprintf("%.4f m", sum.Mean)),
		labelStyle.Render("StdDev:"), valueStyle.Render(fmt.Sprintf("%.4f m", sum.StdDev)),
		labelStyle.Render("Range:"), valueStyle.Render(fmt.Sprintf("%.3f .. %.3f m", sum.Min, sum.Max)),
	))
	if m.readErrors > 0 {
		content.WriteString(fmt.Sprintf("   %s %s",
			labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.readErrors))))
	}
	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m monitorModel) renderBeamPanel(labelStyle, valueStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder

	pattern := "none"
	if m.sess != nil {
		if sess, ok := m.sess.ctrl.Session(); ok && sess.PatternID != "" {
			pattern = sess.PatternID
		}
	}
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Pattern:"), valueStyle.Render(pattern)))

	if angle, ok := m.sess.deflector.LastAngle(); ok {
		s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Angle:"), valueStyle.Render(fmt.Sprintf("%.4f", angle))))
	} else {
		s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Angle:"), headerStyle.Render("not set")))
	}
	lo, hi := m.sess.deflector.Calibration().AngleRange()
	s.WriteString(headerStyle.Render(fmt.Sprintf("Calibrated range %.3f .. %.3f", lo, hi)))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Set angle: "))
	if m.focusedField == focusAngleInput {
		s.WriteString(m.angleInput.View())
	} else {
		val := m.angleInput.Value()
		if val == "" {
			val = m.angleInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	return s.String()
}

func (m monitorModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}
	return boxStyle.Width(m.width - 4).Render(s.String())
}

// formatElapsed renders a duration as "1 hour, 2 minutes and 3 seconds"
func formatElapsed(d time.Duration) string {
	total := int64(d / time.Second)
	if total <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := total / u.size
		total %= u.size
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

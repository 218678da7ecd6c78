// Package picker provides the session picker overlay for choosing a
// previous Claude Code session to resume.
package picker

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"claude-alamode/internal/sessions"
	"claude-alamode/internal/ui/overlay"
	"claude-alamode/internal/ui/styles"
	"claude-alamode/internal/ui/textwidth"
)

const (
	boxMaxWidth = 100
	boxMinWidth = 40
	maxRows     = 15

	// zoneRowPrefix namespaces bubblezone IDs for picker rows.
	zoneRowPrefix = "picker-row:"
)

// SelectMsg is sent when a session is chosen.
type SelectMsg struct {
	Session sessions.Meta
}

// CancelMsg is sent when the picker is dismissed.
type CancelMsg struct{}

// DeleteMsg is sent when a session is removed from the launch history.
// The transcript file on disk is untouched.
type DeleteMsg struct {
	Session sessions.Meta
}

// Model holds the session picker state.
type Model struct {
	sessions []sessions.Meta
	selected int
	offset   int // First visible row for scrolling
	width    int
	height   int
	visible  bool
}

// New creates a picker over the given sessions, newest first.
func New(metas []sessions.Meta) Model {
	return Model{sessions: metas}
}

// SetSessions replaces the session list and clamps the selection.
func (m Model) SetSessions(metas []sessions.Meta) Model {
	m.sessions = metas
	if m.selected >= len(metas) {
		m.selected = max(len(metas)-1, 0)
	}
	return m
}

// SetSize sets the viewport dimensions for overlay rendering.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// Visible returns whether the picker is currently showing.
func (m Model) Visible() bool {
	return m.visible
}

// Show makes the picker visible with the selection reset to the top.
func (m Model) Show() Model {
	m.visible = true
	m.selected = 0
	m.offset = 0
	return m
}

// Hide dismisses the picker.
func (m Model) Hide() Model {
	m.visible = false
	return m
}

// Selected returns the currently selected session metadata.
func (m Model) Selected() (sessions.Meta, bool) {
	if m.selected >= 0 && m.selected < len(m.sessions) {
		return m.sessions[m.selected], true
	}
	return sessions.Meta{}, false
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down", "ctrl+n":
			m = m.moveSelection(1)
		case "k", "up", "ctrl+p":
			m = m.moveSelection(-1)
		case "g":
			m.selected = 0
			m.offset = 0
		case "G":
			m = m.moveSelection(len(m.sessions))
		case "enter":
			if meta, ok := m.Selected(); ok {
				m.visible = false
				return m, func() tea.Msg { return SelectMsg{Session: meta} }
			}
		case "d":
			if meta, ok := m.Selected(); ok {
				m.sessions = append(m.sessions[:m.selected], m.sessions[m.selected+1:]...)
				if m.selected >= len(m.sessions) {
					m.selected = max(len(m.sessions)-1, 0)
				}
				if m.offset > m.selected {
					m.offset = m.selected
				}
				return m, func() tea.Msg { return DeleteMsg{Session: meta} }
			}
		case "esc", "q":
			m.visible = false
			return m, func() tea.Msg { return CancelMsg{} }
		}

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelDown:
			m = m.moveSelection(1)
		case tea.MouseButtonWheelUp:
			m = m.moveSelection(-1)
		case tea.MouseButtonLeft:
			if msg.Action != tea.MouseActionRelease {
				break
			}
			for i := range m.sessions {
				if z := zone.Get(rowZoneID(i)); z != nil && z.InBounds(msg) {
					m.selected = i
					meta := m.sessions[i]
					m.visible = false
					return m, func() tea.Msg { return SelectMsg{Session: meta} }
				}
			}
		}
	}

	return m, nil
}

// moveSelection shifts the selection by delta, clamping and scrolling.
func (m Model) moveSelection(delta int) Model {
	m.selected += delta
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected > len(m.sessions)-1 {
		m.selected = max(len(m.sessions)-1, 0)
	}

	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+maxRows {
		m.offset = m.selected - maxRows + 1
	}
	return m
}

// View renders the picker box.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	boxWidth := m.boxWidth()
	contentWidth := boxWidth - 2

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.OverlayTitleColor).
		PaddingLeft(1)
	dividerStyle := lipgloss.NewStyle().Foreground(styles.OverlayBorderColor)
	divider := dividerStyle.Render(strings.Repeat("─", boxWidth))

	var rows strings.Builder
	if len(m.sessions) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(styles.TextMutedColor).
			Italic(true).
			Render("No sessions for this project")
		rows.WriteString(" " + empty)
	} else {
		end := min(m.offset+maxRows, len(m.sessions))
		for i := m.offset; i < end; i++ {
			rows.WriteString(m.renderRow(i, contentWidth))
			if i < end-1 {
				rows.WriteString("\n")
			}
		}
	}

	footer := lipgloss.NewStyle().
		Foreground(styles.TextMutedColor).
		Render(" ↑/↓ navigate  ⏎ resume  d forget  esc cancel")

	content := titleStyle.Render("Resume Session") + "\n" +
		divider + "\n" +
		rows.String() + "\n" +
		dividerStyle.Render(strings.Repeat("─", boxWidth)) + "\n" +
		footer

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OverlayBorderColor).
		Width(boxWidth)

	return boxStyle.Render(content)
}

// renderRow renders one session line: indicator, short id, age, message
// count, then the first prompt truncated to fit.
func (m Model) renderRow(i, width int) string {
	meta := m.sessions[i]

	indicator := " "
	if i == m.selected {
		indicator = styles.SelectionIndicatorStyle.Render(">")
	}

	id := shortID(meta.SessionID)
	age := formatAge(time.Since(meta.Modified))
	count := fmt.Sprintf("%d msgs", meta.MessageCount)

	promptWidth := width - textwidth.StringWidth(fmt.Sprintf("  %s  %-8s %-9s ", id, age, count))
	prompt := textwidth.TruncateWithTail(firstLine(meta.FirstPrompt), max(promptWidth, 10), "…")

	idStyle := lipgloss.NewStyle().Foreground(styles.TextSecondaryColor)
	metaStyle := lipgloss.NewStyle().Foreground(styles.TextMutedColor)

	line := indicator + " " + idStyle.Render(id) + "  " +
		metaStyle.Render(fmt.Sprintf("%-8s %-9s ", age, count)) + prompt

	if i == m.selected {
		line = lipgloss.NewStyle().Bold(true).Render(line)
	}

	return zone.Mark(rowZoneID(i), line)
}

// Overlay renders the picker centered on the given background.
func (m Model) Overlay(bg string) string {
	if !m.visible {
		return bg
	}
	return overlay.Place(overlay.Config{
		Width:    m.width,
		Height:   m.height,
		Position: overlay.Center,
	}, m.View(), bg)
}

func (m Model) boxWidth() int {
	return max(min(m.width-4, boxMaxWidth), boxMinWidth)
}

// rowZoneID returns the bubblezone ID for a picker row.
func rowZoneID(i int) string {
	return fmt.Sprintf("%s%d", zoneRowPrefix, i)
}

// shortID returns the first 8 characters of a session ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// firstLine returns the first line of a possibly multi-line prompt.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatAge renders a duration as a compact relative age like "5m" or "2d".
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

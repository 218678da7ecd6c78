// Package statusbar renders the single-line status bar showing session,
// model, context usage, and cost for the current conversation.
package statusbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"claude-alamode/internal/ui/styles"
	"claude-alamode/internal/ui/textwidth"
)

// Model holds the status bar state.
type Model struct {
	width         int
	sessionID     string
	modelName     string
	project       string
	contextTokens int
	costUSD       float64
	working       bool
}

// New creates an empty status bar.
func New() Model {
	return Model{}
}

// SetWidth sets the render width.
func (m Model) SetWidth(width int) Model {
	m.width = width
	return m
}

// SetSession updates the displayed session ID.
func (m Model) SetSession(id string) Model {
	m.sessionID = id
	return m
}

// SetModel updates the displayed model name.
func (m Model) SetModel(name string) Model {
	m.modelName = name
	return m
}

// SetProject updates the displayed project path.
func (m Model) SetProject(path string) Model {
	m.project = path
	return m
}

// SetUsage updates context token count and accumulated cost.
func (m Model) SetUsage(contextTokens int, costUSD float64) Model {
	m.contextTokens = contextTokens
	m.costUSD = costUSD
	return m
}

// AddCost accumulates cost from a completed turn.
func (m Model) AddCost(usd float64) Model {
	m.costUSD += usd
	return m
}

// SetWorking toggles the working indicator.
func (m Model) SetWorking(working bool) Model {
	m.working = working
	return m
}

// View renders the status bar at the configured width.
func (m Model) View() string {
	if m.width <= 0 {
		return ""
	}

	left := m.leftSection()
	right := m.rightSection()

	// Padding inside StatusBarStyle takes one cell each side.
	innerWidth := m.width - 2
	leftWidth := textwidth.StringWidth(left)
	rightWidth := textwidth.StringWidth(right)

	if leftWidth+rightWidth+1 > innerWidth {
		// Right section wins; clip the left (ANSI-aware)
		avail := max(innerWidth-rightWidth-1, 0)
		left = truncate.StringWithTail(left, uint(avail), "…") //nolint:gosec // G115: avail is clamped non-negative
		leftWidth = textwidth.StringWidth(left)
	}

	gap := max(innerWidth-leftWidth-rightWidth, 1)
	line := left + strings.Repeat(" ", gap) + right

	return styles.StatusBarStyle.Width(m.width).Render(line)
}

func (m Model) leftSection() string {
	var parts []string

	if m.working {
		parts = append(parts, "working")
	} else {
		parts = append(parts, "ready")
	}

	if m.sessionID != "" {
		id := m.sessionID
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, id)
	} else {
		parts = append(parts, "new session")
	}

	if m.modelName != "" {
		parts = append(parts, m.modelName)
	}

	if m.project != "" {
		parts = append(parts, projectBase(m.project))
	}

	return strings.Join(parts, " · ")
}

func (m Model) rightSection() string {
	var parts []string

	if m.contextTokens > 0 {
		parts = append(parts, formatTokens(m.contextTokens)+" ctx")
	}

	if m.costUSD > 0 {
		cost := lipgloss.NewStyle().
			Foreground(styles.StatusBarCostColor).
			Render(fmt.Sprintf("$%.4f", m.costUSD))
		parts = append(parts, cost)
	}

	return strings.Join(parts, "  ")
}

// projectBase returns the final path element of a project path.
func projectBase(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// formatTokens renders a token count compactly, e.g. 45200 as "45.2k".
func formatTokens(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%.1fk", float64(n)/1000)
}

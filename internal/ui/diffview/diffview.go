// Package diffview renders the working tree's git diff as a scrollable
// overlay, with word-level highlighting on changed lines.
package diffview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"claude-alamode/internal/ui/overlay"
	"claude-alamode/internal/ui/styles"
)

const (
	boxMaxWidth       = 160
	boxMinWidth       = 50
	viewportMaxHeight = 35
	viewportMinHeight = 8
)

// CloseMsg is sent when the diff overlay should be closed.
type CloseMsg struct{}

var (
	addStyle     = lipgloss.NewStyle().Foreground(styles.DiffAddColor)
	delStyle     = lipgloss.NewStyle().Foreground(styles.DiffRemoveColor)
	hunkStyle    = lipgloss.NewStyle().Foreground(styles.DiffHunkColor)
	fileStyle    = lipgloss.NewStyle().Bold(true).Foreground(styles.TextPrimaryColor)
	contextStyle = lipgloss.NewStyle().Foreground(styles.TextSecondaryColor)

	addEmphStyle = addStyle.Reverse(true)
	delEmphStyle = delStyle.Reverse(true)
)

// Model is the diff overlay component state.
type Model struct {
	visible  bool
	width    int
	height   int
	viewport viewport.Model
	files    []File
	stat     Stat
	parseErr error
}

// New creates a hidden diff view.
func New() Model {
	return Model{}
}

// SetDiff parses raw `git diff` output and loads it into the viewport.
func (m Model) SetDiff(raw string) Model {
	files, err := Parse(raw)
	m.files = files
	m.parseErr = err
	m.stat = Summarize(files)
	m.refreshViewport()
	return m
}

// SetSize updates the overlay's knowledge of the terminal size.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.refreshViewport()
	return m
}

// Visible reports whether the overlay is showing.
func (m Model) Visible() bool {
	return m.visible
}

// Show makes the overlay visible.
func (m Model) Show() Model {
	m.visible = true
	m.refreshViewport()
	return m
}

// Hide dismisses the overlay.
func (m Model) Hide() Model {
	m.visible = false
	return m
}

// Update handles messages for the diff overlay.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			m.viewport.ScrollDown(1)
		case "k", "up":
			m.viewport.ScrollUp(1)
		case "pgdown":
			m.viewport.HalfPageDown()
		case "pgup":
			m.viewport.HalfPageUp()
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "q", "ctrl+d":
			m.visible = false
			return m, func() tea.Msg { return CloseMsg{} }
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.refreshViewport()
	}

	return m, nil
}

// View renders the overlay box.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	boxWidth := m.boxWidth()

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.OverlayTitleColor).
		PaddingLeft(1)
	dividerStyle := lipgloss.NewStyle().Foreground(styles.OverlayBorderColor)
	divider := dividerStyle.Render(strings.Repeat("─", boxWidth))

	noun := "files"
	if m.stat.Files == 1 {
		noun = "file"
	}
	title := fmt.Sprintf("Diff: %d %s  %s %s",
		m.stat.Files, noun,
		addStyle.Render(fmt.Sprintf("+%d", m.stat.Additions)),
		delStyle.Render(fmt.Sprintf("-%d", m.stat.Deletions)),
	)

	footer := lipgloss.NewStyle().
		Foreground(styles.TextMutedColor).
		Render(" j/k scroll  g/G top/bottom  esc close")

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(divider)
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", boxWidth)))
	b.WriteString("\n")
	b.WriteString(footer)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OverlayBorderColor).
		Width(boxWidth)

	return boxStyle.Render(b.String())
}

// Overlay renders the diff view centered on the given background.
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

func (m *Model) refreshViewport() {
	if m.width == 0 || m.height == 0 {
		return
	}

	contentWidth := m.boxWidth() - 2
	maxAllowed := m.height - 6
	h := min(viewportMaxHeight, maxAllowed)
	h = max(h, viewportMinHeight)

	m.viewport = viewport.New(contentWidth, h)
	m.viewport.SetContent(m.renderContent())
}

// renderContent renders all parsed files for the viewport.
func (m Model) renderContent() string {
	if m.parseErr != nil {
		return styles.ErrorStyle.Render("failed to parse diff: " + m.parseErr.Error())
	}
	if len(m.files) == 0 {
		return lipgloss.NewStyle().
			Foreground(styles.TextMutedColor).
			Italic(true).
			Render("Working tree clean")
	}

	var b strings.Builder
	for fi, f := range m.files {
		if fi > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderFileHeader(f))
		b.WriteString("\n")

		if f.IsBinary {
			b.WriteString(contextStyle.Render("  (binary file)"))
			b.WriteString("\n")
			continue
		}

		for _, h := range f.Hunks {
			wordDiffs := computeHunkWordDiff(h)
			for li, line := range h.Lines {
				b.WriteString(renderLine(line, wordDiffs[li]))
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderFileHeader(f File) string {
	path := f.DisplayPath()
	switch {
	case f.IsRenamed:
		path = f.OldPath + " → " + f.NewPath
	case f.IsNew:
		path += " (new)"
	case f.IsDeleted:
		path += " (deleted)"
	}
	counts := fmt.Sprintf(" %s %s",
		addStyle.Render(fmt.Sprintf("+%d", f.Additions)),
		delStyle.Render(fmt.Sprintf("-%d", f.Deletions)),
	)
	return fileStyle.Render(path) + counts
}

// renderLine renders one diff line, applying word-level emphasis when a
// paired change was computed for it.
func renderLine(line Line, wd wordDiffResult) string {
	switch line.Type {
	case LineHunkHeader:
		return hunkStyle.Render("@@ " + line.Content)
	case LineAddition:
		if len(wd.NewSegments) > 0 {
			return addStyle.Render("+") + renderSegments(wd.NewSegments, addStyle, addEmphStyle, segmentAdded)
		}
		return addStyle.Render("+" + line.Content)
	case LineDeletion:
		if len(wd.OldSegments) > 0 {
			return delStyle.Render("-") + renderSegments(wd.OldSegments, delStyle, delEmphStyle, segmentDeleted)
		}
		return delStyle.Render("-" + line.Content)
	default:
		return contextStyle.Render(" " + line.Content)
	}
}

func renderSegments(segs []segment, base, emph lipgloss.Style, changed segmentType) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Type == changed {
			b.WriteString(emph.Render(s.Text))
		} else {
			b.WriteString(base.Render(s.Text))
		}
	}
	return b.String()
}

// Package chat provides the conversation view: a scrollable message
// history above a prompt input, with a spinner while Claude works.
package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"claude-alamode/internal/keys"
	"claude-alamode/internal/ui/chatrender"
	"claude-alamode/internal/ui/markdown"
	"claude-alamode/internal/ui/styles"
)

// inputHeight is the prompt input content height in lines.
const inputHeight = 3

// spinnerFrames defines the braille spinner animation sequence.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SubmitMsg is emitted when the user submits a prompt.
type SubmitMsg struct {
	Content string
}

// CancelMsg is emitted when the user requests turn cancellation.
type CancelMsg struct{}

// SpinnerTickMsg advances the spinner frame.
type SpinnerTickMsg struct{}

// Config configures the chat component.
type Config struct {
	AgentLabel    string // Label for assistant messages (default "Claude")
	MarkdownStyle string // glamour style name ("dark" or "light")
}

// Model holds the chat component state.
type Model struct {
	config   Config
	keys     keys.KeyMap
	width    int
	height   int
	messages []chatrender.Message
	viewport viewport.Model
	input    textarea.Model
	renderer *markdown.Renderer

	working       bool
	spinnerFrame  int
	hasNewContent bool
}

// New creates a chat model. The markdown renderer is created lazily on
// the first SetSize since it needs a wrap width.
func New(cfg Config) Model {
	input := textarea.New()
	input.Placeholder = "Prompt Claude… (enter to send, ctrl+x to cancel)"
	input.CharLimit = 0
	input.SetHeight(inputHeight)
	input.ShowLineNumbers = false
	input.Focus()

	return Model{
		config:   cfg,
		keys:     keys.DefaultKeyMap(),
		input:    input,
		viewport: viewport.New(0, 0),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// SetSize lays out the viewport and input for the given dimensions.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height

	// Input pane adds 2 border lines; one spacer line between panes.
	viewportHeight := max(height-inputHeight-3, 1)
	m.viewport.Width = width
	m.viewport.Height = viewportHeight
	m.input.SetWidth(width - 4)

	if r, err := markdown.New(max(width-6, 20), m.config.MarkdownStyle); err == nil {
		m.renderer = r
	}

	m.refreshContent()
	return m
}

// Messages returns the current message history.
func (m Model) Messages() []chatrender.Message {
	return m.messages
}

// SetMessages replaces the message history, e.g. after a transcript reload.
func (m Model) SetMessages(messages []chatrender.Message) Model {
	m.messages = messages
	m.refreshContent()
	m.viewport.GotoBottom()
	return m
}

// AddMessage appends a message and scrolls unless the user scrolled up.
func (m Model) AddMessage(msg chatrender.Message) Model {
	m.messages = append(m.messages, msg)
	atBottom := m.viewport.AtBottom()
	m.refreshContent()
	if atBottom {
		m.viewport.GotoBottom()
	} else {
		m.hasNewContent = true
	}
	return m
}

// Working returns whether a turn is in flight.
func (m Model) Working() bool {
	return m.working
}

// SetWorking toggles the in-flight state. Returns a spinner tick command
// when transitioning to working.
func (m Model) SetWorking(working bool) (Model, tea.Cmd) {
	wasWorking := m.working
	m.working = working
	if working && !wasWorking {
		return m, spinnerTick()
	}
	return m, nil
}

// Value returns the current input text.
func (m Model) Value() string {
	return m.input.Value()
}

func spinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return SpinnerTickMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case SpinnerTickMsg:
		if m.working {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
			return m, spinnerTick()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Submit):
			content := strings.TrimSpace(m.input.Value())
			if content == "" || m.working {
				return m, nil
			}
			m.input.Reset()
			return m, func() tea.Msg { return SubmitMsg{Content: content} }

		case key.Matches(msg, m.keys.Cancel):
			if m.working {
				return m, func() tea.Msg { return CancelMsg{} }
			}
			return m, nil

		case key.Matches(msg, m.keys.ScrollUp):
			m.viewport.ScrollUp(1)
			return m, nil

		case key.Matches(msg, m.keys.ScrollDn):
			m.viewport.ScrollDown(1)
			if m.viewport.AtBottom() {
				m.hasNewContent = false
			}
			return m, nil

		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfPageUp()
			return m, nil

		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfPageDown()
			if m.viewport.AtBottom() {
				m.hasNewContent = false
			}
			return m, nil
		}

		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		if inputCmd != nil {
			cmds = append(cmds, inputCmd)
		}

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.viewport.ScrollUp(1)
		case tea.MouseButtonWheelDown:
			m.viewport.ScrollDown(1)
			if m.viewport.AtBottom() {
				m.hasNewContent = false
			}
		}
		return m, nil

	default:
		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		if inputCmd != nil {
			cmds = append(cmds, inputCmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the message pane, spinner line, and input pane.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	borderStyle := styles.FocusedBorderStyle
	if m.working {
		borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.BorderDefaultColor)
	}
	b.WriteString(borderStyle.Width(m.width - 2).Render(m.input.View()))

	return b.String()
}

// statusLine renders the spinner or new-content indicator between panes.
func (m Model) statusLine() string {
	if m.working {
		return lipgloss.NewStyle().
			Foreground(styles.StatusWarningColor).
			Render(" " + spinnerFrames[m.spinnerFrame] + " thinking…")
	}
	if m.hasNewContent {
		return styles.MutedStyle.Render(" ↓ new messages")
	}
	return ""
}

// refreshContent re-renders the message history into the viewport.
func (m *Model) refreshContent() {
	if m.viewport.Width == 0 {
		return
	}

	cfg := chatrender.RenderConfig{AgentLabel: m.config.AgentLabel}
	if m.renderer != nil {
		r := m.renderer
		cfg.RenderMarkdown = func(s string) string {
			out, err := r.Render(s)
			if err != nil {
				return chatrender.WordWrap(s, m.viewport.Width-4)
			}
			return out
		}
	}

	m.viewport.SetContent(chatrender.RenderContent(m.messages, m.viewport.Width, cfg))
}

// Package chatrender provides chat message rendering shared by the live chat
// view and transcript replay.
package chatrender

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Role colors - consistent across the chat view and the status bar.
var (
	AssistantColor = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#179299"}
	UserColor      = lipgloss.AdaptiveColor{Light: "#FB923C", Dark: "#FB923C"}
	SystemColor    = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
)

// Chat rendering styles.
var (
	// RoleStyle applies bold formatting to role labels.
	RoleStyle = lipgloss.NewStyle().Bold(true)

	// UserMessageStyle is for user message content.
	UserMessageStyle = lipgloss.NewStyle().Foreground(UserColor)

	// ToolCallStyle is for tool call display (muted).
	ToolCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})
)

// Message represents a single message in chat history.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	IsToolCall bool       `json:"is_tool_call,omitempty"`
	Timestamp  *time.Time `json:"ts,omitempty"`
}

// RenderConfig configures how chat messages are rendered.
type RenderConfig struct {
	AgentLabel string                 // Label for assistant messages (default: "Claude")
	AgentColor lipgloss.AdaptiveColor // Color for the assistant role label
	UserLabel  string                 // Label for user messages (default: "You")

	// RenderMarkdown, when set, renders assistant message bodies instead
	// of plain word wrapping. Tool calls and user messages are unaffected.
	RenderMarkdown func(string) string
}

// RenderContent renders a slice of Messages with tool call grouping.
// Tool call sequence boundary conditions:
// - Single tool call: both first AND last (gets ╰╴ character)
// - First message is tool call: i == 0 check prevents index out of bounds
// - Last message is tool call: i == len-1 check prevents index out of bounds
// - Non-tool call surrounded by tool calls: correctly breaks sequences
func RenderContent(messages []Message, wrapWidth int, cfg RenderConfig) string {
	var content strings.Builder

	userLabel := cfg.UserLabel
	if userLabel == "" {
		userLabel = "You"
	}
	agentLabel := cfg.AgentLabel
	if agentLabel == "" {
		agentLabel = "Claude"
	}
	agentColor := cfg.AgentColor
	if agentColor == (lipgloss.AdaptiveColor{}) {
		agentColor = AssistantColor
	}

	for i, msg := range messages {
		isFirstToolInSequence := msg.IsToolCall && (i == 0 || !messages[i-1].IsToolCall)
		isLastToolInSequence := msg.IsToolCall && (i == len(messages)-1 || !messages[i+1].IsToolCall)

		switch {
		case msg.Role == "user":
			roleLabel := RoleStyle.Foreground(UserMessageStyle.GetForeground()).Render(userLabel)
			content.WriteString(roleLabel + "\n")
			content.WriteString(WordWrap(msg.Content, wrapWidth-4) + "\n\n")

		case msg.IsToolCall:
			if isFirstToolInSequence {
				roleLabel := RoleStyle.Foreground(agentColor).Render(agentLabel)
				content.WriteString(roleLabel + "\n")
			}

			prefix := "├╴ "
			if isLastToolInSequence {
				prefix = "╰╴ "
			}

			toolName := strings.TrimPrefix(msg.Content, "🔧 ")
			content.WriteString(ToolCallStyle.Render(prefix+toolName) + "\n")

			if isLastToolInSequence {
				content.WriteString("\n")
			}

		default:
			var roleLabel string
			if msg.Role == "system" {
				roleLabel = RoleStyle.Foreground(SystemColor).Render("System")
			} else {
				roleLabel = RoleStyle.Foreground(agentColor).Render(agentLabel)
			}
			content.WriteString(roleLabel + "\n")
			if msg.Role != "system" && cfg.RenderMarkdown != nil {
				content.WriteString(strings.TrimRight(cfg.RenderMarkdown(msg.Content), "\n") + "\n\n")
			} else {
				content.WriteString(WordWrap(msg.Content, wrapWidth-4) + "\n\n")
			}
		}
	}

	return strings.TrimRight(content.String(), "\n")
}

// WordWrap wraps text at the given width, preserving explicit newlines.
func WordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	lines := strings.Split(text, "\n")
	var result strings.Builder

	for lineIdx, line := range lines {
		if lineIdx > 0 {
			result.WriteString("\n")
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		words := strings.Fields(line)
		var currentLine strings.Builder

		for i, word := range words {
			needsNewLine := currentLine.Len()+len(word)+1 > width && currentLine.Len() > 0

			if needsNewLine {
				result.WriteString(currentLine.String())
				result.WriteString("\n")
				currentLine.Reset()
			}

			if currentLine.Len() > 0 {
				currentLine.WriteString(" ")
			}
			currentLine.WriteString(word)

			if i == len(words)-1 && currentLine.Len() > 0 {
				result.WriteString(currentLine.String())
			}
		}
	}

	return result.String()
}

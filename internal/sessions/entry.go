package sessions

import "encoding/json"

// EntryType identifies the type of transcript entry.
type EntryType string

const (
	EntryTypeUser      EntryType = "user"
	EntryTypeAssistant EntryType = "assistant"
	EntryTypeSummary   EntryType = "summary"
	EntryTypeSnapshot  EntryType = "file-history-snapshot"
)

// Entry represents a single line in a Claude Code session file.
type Entry struct {
	Type        EntryType       `json:"type"`
	UUID        string          `json:"uuid,omitempty"`
	ParentUUID  *string         `json:"parentUuid,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	SessionID   string          `json:"sessionId,omitempty"`
	GitBranch   string          `json:"gitBranch,omitempty"`
	CWD         string          `json:"cwd,omitempty"`
	IsSidechain bool            `json:"isSidechain,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
}

// entryMessage is the message envelope shared by user and assistant entries.
type entryMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"` // string or []block
}

// block is a content block within a transcript message.
type block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
}

// PromptText extracts user prompt text from an entry.
// Returns empty string for non-user entries and for tool-result-only turns.
func (e *Entry) PromptText() string {
	if e.Type != EntryTypeUser || len(e.Message) == 0 {
		return ""
	}
	var msg entryMessage
	if err := json.Unmarshal(e.Message, &msg); err != nil {
		return ""
	}
	return parseUserContent(msg.Content)
}

// AssistantBlocks returns the content blocks of an assistant entry.
func (e *Entry) AssistantBlocks() []block {
	if e.Type != EntryTypeAssistant || len(e.Message) == 0 {
		return nil
	}
	var msg struct {
		Content []block `json:"content"`
	}
	if err := json.Unmarshal(e.Message, &msg); err != nil {
		return nil
	}
	return msg.Content
}

// parseUserContent extracts text from a user message whose content can be
// either a plain string or an array of content blocks.
func parseUserContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}

	var blocks []block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var text string
	for _, b := range blocks {
		if b.Type == "tool_result" {
			continue
		}
		if b.Type == "text" && b.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += b.Text
		}
	}
	return text
}

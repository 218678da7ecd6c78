package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"claude-alamode/internal/claude"
)

// TranscriptMessage is a display-ready message replayed from a session file.
type TranscriptMessage struct {
	Role       string // "user" or "assistant"
	Content    string
	IsToolCall bool
}

// ReadTranscript replays a session JSONL into display messages.
// Tool uses become collapsed tool-call lines; tool results and sidechain
// entries are skipped, matching what the live stream renders.
func ReadTranscript(path string) ([]TranscriptMessage, error) {
	f, err := os.Open(path) // #nosec G304 -- caller resolves path via Store
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer func() { _ = f.Close() }()

	var messages []TranscriptMessage

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if entry.IsSidechain {
			continue
		}

		switch entry.Type {
		case EntryTypeUser:
			if text := entry.PromptText(); text != "" {
				messages = append(messages, TranscriptMessage{Role: "user", Content: text})
			}
		case EntryTypeAssistant:
			for _, b := range entry.AssistantBlocks() {
				switch b.Type {
				case "text":
					if b.Text != "" {
						messages = append(messages, TranscriptMessage{Role: "assistant", Content: b.Text})
					}
				case "tool_use":
					display := claude.FormatToolDisplay(&claude.ContentBlock{
						Type:  "tool_use",
						Name:  b.Name,
						Input: b.Input,
					})
					if display != "" {
						messages = append(messages, TranscriptMessage{
							Role:       "assistant",
							Content:    display,
							IsToolCall: true,
						})
					}
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}

	return messages, nil
}

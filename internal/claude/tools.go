package claude

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxCommandDisplay = 50
const maxPatternDisplay = 30

// FormatToolDisplay returns a formatted string for displaying a tool call in
// the TUI. For Bash tools it shows the description (or command if no
// description); for file tools the file name; for search tools the pattern.
func FormatToolDisplay(b *ContentBlock) string {
	if b.Type != "tool_use" || b.Name == "" {
		return ""
	}

	switch strings.ToLower(b.Name) {
	case "bash":
		var input struct {
			Description string `json:"description"`
			Command     string `json:"command"`
		}
		if err := json.Unmarshal(b.Input, &input); err == nil {
			if input.Description != "" {
				return fmt.Sprintf("🔧 %s: %s", b.Name, input.Description)
			}
			if input.Command != "" {
				return fmt.Sprintf("🔧 %s: %s", b.Name, truncate(input.Command, maxCommandDisplay))
			}
		}

	case "read", "view", "edit", "write":
		var input struct {
			FilePath string `json:"file_path"`
		}
		if err := json.Unmarshal(b.Input, &input); err == nil && input.FilePath != "" {
			// Show just the filename for brevity
			path := input.FilePath
			if idx := strings.LastIndex(path, "/"); idx >= 0 {
				path = path[idx+1:]
			}
			return fmt.Sprintf("🔧 %s: %s", b.Name, path)
		}

	case "grep", "glob":
		var input struct {
			Pattern string `json:"pattern"`
		}
		if err := json.Unmarshal(b.Input, &input); err == nil && input.Pattern != "" {
			return fmt.Sprintf("🔧 %s: %s", b.Name, truncate(input.Pattern, maxPatternDisplay))
		}
	}

	return fmt.Sprintf("🔧 %s", b.Name)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"claude-alamode/internal/log"
)

// CompactOptions tunes session compaction.
// Compaction removes entire tool_use/tool_result pairs that are both old
// AND large; Claude's own microcompact merely truncates content. Since the
// CLI re-reads the JSONL on --resume, rewriting the file directly shrinks
// what the next turn sees.
type CompactOptions struct {
	// KeepLastN tool invocations per tool name are kept regardless of size.
	KeepLastN int
	// MinResultSize is the smallest tool result (bytes) eligible for removal.
	MinResultSize int
	// MinInputSize is the smallest tool input (bytes) eligible for removal.
	MinInputSize int
	// Aggressive lowers the size thresholds to 500/1000 bytes.
	Aggressive bool
	// DryRun computes the report without touching the file.
	DryRun bool
}

// DefaultCompactOptions returns the standard thresholds.
func DefaultCompactOptions() CompactOptions {
	return CompactOptions{
		KeepLastN:     5,
		MinResultSize: 1000,
		MinInputSize:  2000,
	}
}

// CompactReport summarizes what compaction did (or would do, for dry runs).
type CompactReport struct {
	MessagesBefore  int
	MessagesAfter   int
	RemovedPairs    int
	EstTokensBefore int
	EstTokensAfter  int
	BackupPath      string
}

type toolUseInfo struct {
	name      string
	inputSize int
}

// Compact rewrites the session file at path, dropping old large tool pairs.
func Compact(path string, opts CompactOptions) (CompactReport, error) {
	if opts.KeepLastN <= 0 {
		opts.KeepLastN = DefaultCompactOptions().KeepLastN
	}
	if opts.MinResultSize <= 0 {
		opts.MinResultSize = DefaultCompactOptions().MinResultSize
	}
	if opts.MinInputSize <= 0 {
		opts.MinInputSize = DefaultCompactOptions().MinInputSize
	}
	if opts.Aggressive {
		opts.MinResultSize = min(opts.MinResultSize, 500)
		opts.MinInputSize = min(opts.MinInputSize, 1000)
	}

	messages, err := readRawMessages(path)
	if err != nil {
		return CompactReport{}, err
	}

	removeIDs := selectRemovals(messages, opts)
	compacted := applyRemovals(messages, removeIDs)

	report := CompactReport{
		MessagesBefore:  len(messages),
		MessagesAfter:   len(compacted),
		RemovedPairs:    len(removeIDs),
		EstTokensBefore: estimateTokens(messages),
		EstTokensAfter:  estimateTokens(compacted),
	}

	if opts.DryRun {
		return report, nil
	}

	backup := path + ".bak"
	if err := copyFile(path, backup); err != nil {
		return CompactReport{}, fmt.Errorf("writing backup: %w", err)
	}
	report.BackupPath = backup

	if err := writeRawMessages(path, compacted); err != nil {
		return CompactReport{}, err
	}

	log.Info(log.CatSessions, "Compacted session",
		"path", path,
		"removedPairs", report.RemovedPairs,
		"messagesBefore", report.MessagesBefore,
		"messagesAfter", report.MessagesAfter)
	return report, nil
}

// selectRemovals picks the tool ids whose use/result pairs should go.
// Only items that are both old (outside the last KeepLastN per tool name)
// and large (over the size thresholds) are removed.
func selectRemovals(messages []map[string]any, opts CompactOptions) map[string]bool {
	toolUses := map[string]toolUseInfo{}
	var toolOrder []string
	toolResults := map[string]int{}

	for _, m := range messages {
		switch m["type"] {
		case "assistant":
			for _, b := range contentBlocks(m) {
				if blockType(b) != "tool_use" {
					continue
				}
				id, _ := b["id"].(string)
				if id == "" {
					continue
				}
				name, _ := b["name"].(string)
				inputJSON, _ := json.Marshal(b["input"])
				toolUses[id] = toolUseInfo{name: name, inputSize: len(inputJSON)}
				toolOrder = append(toolOrder, id)
			}
		case "user":
			for _, b := range contentBlocks(m) {
				if blockType(b) != "tool_result" {
					continue
				}
				id, _ := b["tool_use_id"].(string)
				if id == "" {
					continue
				}
				toolResults[id] = len(fmt.Sprint(b["content"]))
			}
		}
	}

	// Keep the last N of each tool type regardless of size.
	recent := map[string]bool{}
	counts := map[string]int{}
	for i := len(toolOrder) - 1; i >= 0; i-- {
		id := toolOrder[i]
		name := toolUses[id].name
		if counts[name] < opts.KeepLastN {
			recent[id] = true
			counts[name]++
		}
	}

	removeIDs := map[string]bool{}
	for id, size := range toolResults {
		if !recent[id] && size >= opts.MinResultSize {
			removeIDs[id] = true
		}
	}
	for id, info := range toolUses {
		if !recent[id] && info.inputSize >= opts.MinInputSize {
			removeIDs[id] = true
		}
	}
	return removeIDs
}

// applyRemovals strips the selected tool blocks, dropping messages that end
// up with no content at all.
func applyRemovals(messages []map[string]any, removeIDs map[string]bool) []map[string]any {
	var out []map[string]any

	for _, m := range messages {
		msgType, _ := m["type"].(string)
		if msgType != "assistant" && msgType != "user" {
			out = append(out, m)
			continue
		}

		blocks := contentBlocks(m)
		if blocks == nil {
			out = append(out, m)
			continue
		}

		var kept []any
		removed := false
		for _, b := range blocks {
			id := ""
			switch blockType(b) {
			case "tool_use":
				id, _ = b["id"].(string)
			case "tool_result":
				id, _ = b["tool_use_id"].(string)
			}
			if id != "" && removeIDs[id] {
				removed = true
				continue
			}
			kept = append(kept, b)
		}

		if !removed {
			out = append(out, m)
			continue
		}
		if len(kept) == 0 {
			continue // drop the entire message
		}

		msg, _ := m["message"].(map[string]any)
		newInner := make(map[string]any, len(msg))
		for k, v := range msg {
			newInner[k] = v
		}
		newInner["content"] = kept

		newMsg := make(map[string]any, len(m))
		for k, v := range m {
			newMsg[k] = v
		}
		newMsg["message"] = newInner
		// The cached result duplicate is meaningless once the block is gone.
		delete(newMsg, "toolUseResult")
		out = append(out, newMsg)
	}

	return out
}

// estimateTokens approximates token usage as chars/4 over prompt-relevant
// content.
func estimateTokens(messages []map[string]any) int {
	chars := 0
	for _, m := range messages {
		msg, ok := m["message"].(map[string]any)
		if !ok {
			continue
		}
		if s, ok := msg["content"].(string); ok {
			chars += len(s)
			continue
		}
		for _, b := range contentBlocks(m) {
			switch blockType(b) {
			case "text":
				s, _ := b["text"].(string)
				chars += len(s)
			case "tool_use":
				inputJSON, _ := json.Marshal(b["input"])
				chars += len(inputJSON)
			case "tool_result":
				chars += len(fmt.Sprint(b["content"]))
			}
		}
	}
	return chars / 4
}

// contentBlocks returns message.content as block maps, or nil if content is
// a plain string or missing.
func contentBlocks(m map[string]any) []map[string]any {
	msg, ok := m["message"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := msg["content"].([]any)
	if !ok {
		return nil
	}
	var blocks []map[string]any
	for _, b := range raw {
		if bm, ok := b.(map[string]any); ok {
			blocks = append(blocks, bm)
		}
	}
	return blocks
}

func blockType(b map[string]any) string {
	t, _ := b["type"].(string)
	return t
}

func readRawMessages(path string) ([]map[string]any, error) {
	f, err := os.Open(path) // #nosec G304 -- caller resolves path via Store
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var messages []map[string]any
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("parsing session line: %w", err)
		}
		messages = append(messages, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning session file: %w", err)
	}
	return messages, nil
}

func writeRawMessages(path string, messages []map[string]any) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("opening session file for write: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, m := range messages {
		if err := enc.Encode(m); err != nil {
			_ = f.Close()
			return fmt.Errorf("encoding session line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flushing session file: %w", err)
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src) // #nosec G304
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}

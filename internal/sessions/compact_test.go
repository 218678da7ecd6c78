package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// toolPairLines builds an assistant tool_use line and the matching user
// tool_result line.
func toolPairLines(id, name string, inputSize, resultSize int) []string {
	input := map[string]string{"data": strings.Repeat("x", inputSize)}
	inputJSON, _ := json.Marshal(input)
	use := fmt.Sprintf(
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":%q,"name":%q,"input":%s}]}}`,
		id, name, inputJSON)
	result := fmt.Sprintf(
		`{"type":"user","toolUseResult":{},"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":%q,"content":%q}]}}`,
		id, strings.Repeat("y", resultSize))
	return []string{use, result}
}

func writeCompactFixture(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sess.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

func countMessages(t *testing.T, path string) int {
	t.Helper()
	msgs, err := readRawMessages(path)
	require.NoError(t, err)
	return len(msgs)
}

func TestCompact_KeepsSmallAndRecent(t *testing.T) {
	var lines []string
	lines = append(lines, `{"type":"user","message":{"role":"user","content":"prompt"}}`)
	// Small results stay regardless of age.
	lines = append(lines, toolPairLines("t1", "Bash", 10, 50)...)
	lines = append(lines, toolPairLines("t2", "Bash", 10, 50)...)

	path := writeCompactFixture(t, lines)
	report, err := Compact(path, DefaultCompactOptions())
	require.NoError(t, err)

	require.Equal(t, 0, report.RemovedPairs)
	require.Equal(t, report.MessagesBefore, report.MessagesAfter)
	require.Equal(t, 5, countMessages(t, path))
}

func TestCompact_RemovesOldLargePairs(t *testing.T) {
	var lines []string
	lines = append(lines, `{"type":"user","message":{"role":"user","content":"prompt"}}`)
	// Seven large-result Bash calls with KeepLastN=5: the two oldest go.
	for i := 0; i < 7; i++ {
		lines = append(lines, toolPairLines(fmt.Sprintf("t%d", i), "Bash", 10, 5000)...)
	}

	path := writeCompactFixture(t, lines)
	report, err := Compact(path, DefaultCompactOptions())
	require.NoError(t, err)

	require.Equal(t, 2, report.RemovedPairs)
	// Each removed pair drops both its messages (single-block content).
	require.Equal(t, report.MessagesBefore-4, report.MessagesAfter)
	require.Less(t, report.EstTokensAfter, report.EstTokensBefore)

	// The removed ids are the oldest ones.
	msgs, err := readRawMessages(path)
	require.NoError(t, err)
	remaining := strings.Builder{}
	for _, m := range msgs {
		raw, _ := json.Marshal(m)
		remaining.Write(raw)
	}
	require.NotContains(t, remaining.String(), `"t0"`)
	require.NotContains(t, remaining.String(), `"t1"`)
	require.Contains(t, remaining.String(), `"t6"`)
}

func TestCompact_LargeInputsRemoved(t *testing.T) {
	var lines []string
	for i := 0; i < 7; i++ {
		lines = append(lines, toolPairLines(fmt.Sprintf("t%d", i), "Write", 10000, 10)...)
	}

	path := writeCompactFixture(t, lines)
	report, err := Compact(path, DefaultCompactOptions())
	require.NoError(t, err)
	require.Equal(t, 2, report.RemovedPairs)
}

func TestCompact_KeepLastNIsPerToolName(t *testing.T) {
	var lines []string
	// Six large Bash calls and one large Read call; the Read call is the
	// oldest but is the most recent of its own tool, so it stays.
	lines = append(lines, toolPairLines("r1", "Read", 10, 5000)...)
	for i := 0; i < 6; i++ {
		lines = append(lines, toolPairLines(fmt.Sprintf("b%d", i), "Bash", 10, 5000)...)
	}

	path := writeCompactFixture(t, lines)
	report, err := Compact(path, DefaultCompactOptions())
	require.NoError(t, err)
	require.Equal(t, 1, report.RemovedPairs)

	msgs, err := readRawMessages(path)
	require.NoError(t, err)
	raw, _ := json.Marshal(msgs)
	require.Contains(t, string(raw), `"r1"`)
	require.NotContains(t, string(raw), `"b0"`)
}

func TestCompact_AggressiveLowersThresholds(t *testing.T) {
	var lines []string
	// 600-byte results: under the default 1000 threshold, over aggressive 500.
	for i := 0; i < 7; i++ {
		lines = append(lines, toolPairLines(fmt.Sprintf("t%d", i), "Bash", 10, 600)...)
	}

	path := writeCompactFixture(t, lines)
	report, err := Compact(path, CompactOptions{Aggressive: true})
	require.NoError(t, err)
	require.Equal(t, 2, report.RemovedPairs)
}

func TestCompact_DryRunLeavesFileUntouched(t *testing.T) {
	var lines []string
	for i := 0; i < 7; i++ {
		lines = append(lines, toolPairLines(fmt.Sprintf("t%d", i), "Bash", 10, 5000)...)
	}
	path := writeCompactFixture(t, lines)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	opts := DefaultCompactOptions()
	opts.DryRun = true
	report, err := Compact(path, opts)
	require.NoError(t, err)
	require.Equal(t, 2, report.RemovedPairs)
	require.Empty(t, report.BackupPath)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestCompact_WritesBackup(t *testing.T) {
	var lines []string
	for i := 0; i < 7; i++ {
		lines = append(lines, toolPairLines(fmt.Sprintf("t%d", i), "Bash", 10, 5000)...)
	}
	path := writeCompactFixture(t, lines)
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	report, err := Compact(path, DefaultCompactOptions())
	require.NoError(t, err)
	require.Equal(t, path+".bak", report.BackupPath)

	backup, err := os.ReadFile(report.BackupPath)
	require.NoError(t, err)
	require.Equal(t, original, backup)
}

func TestCompact_MixedContentMessageSurvives(t *testing.T) {
	// A message holding text plus a removable tool_use keeps its text.
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"explanation"},{"type":"tool_use","id":"t0","name":"Bash","input":{"data":"` + strings.Repeat("x", 3000) + `"}}]}}`
	var lines []string
	lines = append(lines, line)
	for i := 1; i < 7; i++ {
		lines = append(lines, toolPairLines(fmt.Sprintf("t%d", i), "Bash", 10, 10)...)
	}

	path := writeCompactFixture(t, lines)
	_, err := Compact(path, DefaultCompactOptions())
	require.NoError(t, err)

	msgs, err := readRawMessages(path)
	require.NoError(t, err)
	raw, _ := json.Marshal(msgs)
	require.Contains(t, string(raw), "explanation")
	require.NotContains(t, string(raw), `"t0"`)
}

// Compaction never grows a session and always keeps the most recent
// invocation of every tool, whatever the shape of the history.
func TestCompact_Invariants(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(r, "pairs")
		var lines []string
		var lastIDPerTool = map[string]string{}

		for i := 0; i < n; i++ {
			name := rapid.SampledFrom([]string{"Bash", "Read", "Write"}).Draw(r, fmt.Sprintf("name%d", i))
			inputSize := rapid.IntRange(0, 4000).Draw(r, fmt.Sprintf("in%d", i))
			resultSize := rapid.IntRange(0, 4000).Draw(r, fmt.Sprintf("out%d", i))
			id := fmt.Sprintf("t%d", i)
			lines = append(lines, toolPairLines(id, name, inputSize, resultSize)...)
			lastIDPerTool[name] = id
		}

		dir := os.TempDir()
		f, err := os.CreateTemp(dir, "compact-*.jsonl")
		require.NoError(t, err)
		path := f.Name()
		defer func() {
			_ = os.Remove(path)
			_ = os.Remove(path + ".bak")
		}()
		_, err = f.WriteString(strings.Join(lines, "\n") + "\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		report, err := Compact(path, DefaultCompactOptions())
		require.NoError(t, err)

		require.LessOrEqual(t, report.MessagesAfter, report.MessagesBefore)
		require.LessOrEqual(t, report.EstTokensAfter, report.EstTokensBefore)

		msgs, err := readRawMessages(path)
		require.NoError(t, err)
		raw, _ := json.Marshal(msgs)
		for _, id := range lastIDPerTool {
			require.Contains(t, string(raw), fmt.Sprintf("%q", id),
				"most recent invocation per tool must survive")
		}
	})
}

package claude

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeStubClaude installs an executable shell script named claude on PATH
// so Spawn runs it instead of the real CLI.
func writeStubClaude(t *testing.T, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected []string
	}{
		{
			name: "minimal config",
			cfg: Config{
				WorkDir: "/project",
				Prompt:  "Hello",
			},
			expected: []string{
				"--print",
				"--output-format", "stream-json",
				"--verbose",
				"--", "Hello",
			},
		},
		{
			name: "no prompt",
			cfg: Config{
				WorkDir: "/project",
			},
			expected: []string{
				"--print",
				"--output-format", "stream-json",
				"--verbose",
			},
		},
		{
			name: "with session resume",
			cfg: Config{
				WorkDir:   "/project",
				Prompt:    "Continue",
				SessionID: "sess-123",
			},
			expected: []string{
				"--print",
				"--output-format", "stream-json",
				"--verbose",
				"--resume", "sess-123",
				"--", "Continue",
			},
		},
		{
			name: "with model",
			cfg: Config{
				WorkDir: "/project",
				Prompt:  "Hello",
				Model:   "opus",
			},
			expected: []string{
				"--print",
				"--output-format", "stream-json",
				"--verbose",
				"--model", "opus",
				"--", "Hello",
			},
		},
		{
			name: "with skip permissions",
			cfg: Config{
				WorkDir:         "/project",
				Prompt:          "Hello",
				SkipPermissions: true,
			},
			expected: []string{
				"--print",
				"--output-format", "stream-json",
				"--verbose",
				"--dangerously-skip-permissions",
				"--", "Hello",
			},
		},
		{
			name: "with system prompt",
			cfg: Config{
				WorkDir:            "/project",
				Prompt:             "Hello",
				AppendSystemPrompt: "Be concise",
			},
			expected: []string{
				"--print",
				"--output-format", "stream-json",
				"--verbose",
				"--append-system-prompt", "Be concise",
				"--", "Hello",
			},
		},
		{
			name: "with allowed and disallowed tools",
			cfg: Config{
				WorkDir:         "/project",
				Prompt:          "Hello",
				AllowedTools:    []string{"Read", "Write"},
				DisallowedTools: []string{"Bash"},
			},
			expected: []string{
				"--print",
				"--output-format", "stream-json",
				"--verbose",
				"--allowed-tools", "Read",
				"--allowed-tools", "Write",
				"--disallowed-tools", "Bash",
				"--", "Hello",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, buildArgs(tt.cfg))
		})
	}
}

func TestBuildArgs_PromptIsLast(t *testing.T) {
	// Prompts starting with "-" must follow the -- separator so claude
	// never parses them as flags.
	args := buildArgs(Config{Prompt: "--resume is a flag I want to ask about"})
	require.Equal(t, "--", args[len(args)-2])
	require.Equal(t, "--resume is a flag I want to ask about", args[len(args)-1])
}

func TestSpawn_MissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := Spawn(context.Background(), Config{
		WorkDir: t.TempDir(),
		Prompt:  "hello",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "claude CLI not found")
}

func TestResume_FillsSessionID(t *testing.T) {
	cfg := Config{WorkDir: "/project", Prompt: "continue"}
	if cfg.SessionID == "" {
		cfg.SessionID = "sess-9"
	}
	args := buildArgs(cfg)
	require.Contains(t, args, "--resume")
	require.Contains(t, args, "sess-9")
}

func TestProcess_StatusTransitions(t *testing.T) {
	p := &Process{status: StatusPending}
	require.False(t, p.IsRunning())

	p.setStatus(StatusRunning)
	require.True(t, p.IsRunning())
	require.Equal(t, StatusRunning, p.Status())

	p.setStatus(StatusCompleted)
	require.False(t, p.IsRunning())
}

func TestProcess_CancelSetsStatusBeforeContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Process{
		status:     StatusRunning,
		cancelFunc: cancel,
		ctx:        ctx,
	}

	require.NoError(t, p.Cancel())
	require.Equal(t, StatusCancelled, p.Status())

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should be cancelled")
	}
}

func TestSpawn_ParsesEventStream(t *testing.T) {
	// One oversized assistant event, well under the 1MB scanner cap, plus a
	// malformed line the parser must skip without dying.
	bigText := strings.Repeat("a", 900*1024)
	stream := `{"type":"system","subtype":"init","session_id":"sess-stream","model":"sonnet"}` + "\n" +
		"not json at all {{{\n" +
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"` + bigText + `"}]}}` + "\n" +
		`{"type":"result","subtype":"success","total_cost_usd":0.01,"result":"ok"}` + "\n"

	streamFile := filepath.Join(t.TempDir(), "stream.jsonl")
	require.NoError(t, os.WriteFile(streamFile, []byte(stream), 0o644))
	t.Setenv("CLAUDE_STUB_STREAM", streamFile)
	writeStubClaude(t, `cat "$CLAUDE_STUB_STREAM"`)

	p, err := Spawn(context.Background(), Config{WorkDir: t.TempDir(), Prompt: "hello"})
	require.NoError(t, err)

	// The events channel closes when stdout drains, so range terminates.
	var events []OutputEvent
	for ev := range p.Events() {
		events = append(events, ev)
	}
	require.NoError(t, p.Wait())

	require.Len(t, events, 3, "malformed line must be skipped, not surfaced")
	require.True(t, events[0].IsInit())
	require.True(t, events[1].IsAssistant())
	require.True(t, events[2].IsResult())

	require.Equal(t, "sess-stream", p.SessionID(), "session id captured from init event")
	require.Len(t, events[1].Message.GetText(), 900*1024)
	require.Equal(t, StatusCompleted, p.Status())
}

func TestSpawn_TimeoutSurfacesErrTimeout(t *testing.T) {
	writeStubClaude(t, "sleep 5")

	p, err := Spawn(context.Background(), Config{
		WorkDir: t.TempDir(),
		Prompt:  "hello",
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	for range p.Events() {
	}
	require.NoError(t, p.Wait())
	require.Equal(t, StatusFailed, p.Status())

	// Pipe teardown may queue a scanner error ahead of the timeout, so
	// check every buffered error rather than only the first.
	var sawTimeout bool
	for {
		select {
		case err := <-p.Errors():
			if errors.Is(err, ErrTimeout) {
				sawTimeout = true
			}
			continue
		default:
		}
		break
	}
	require.True(t, sawTimeout, "timeout must surface ErrTimeout on the errors channel")
}

func TestSpawn_NonZeroExitFails(t *testing.T) {
	writeStubClaude(t, "exit 3")

	p, err := Spawn(context.Background(), Config{WorkDir: t.TempDir(), Prompt: "hello"})
	require.NoError(t, err)

	for range p.Events() {
	}
	require.NoError(t, p.Wait())
	require.Equal(t, StatusFailed, p.Status())

	select {
	case err := <-p.Errors():
		require.Contains(t, err.Error(), "claude process exited")
	default:
		t.Fatal("expected an exit error on the errors channel")
	}
}

func TestProcess_SendErrorDropsWhenFull(t *testing.T) {
	p := &Process{errors: make(chan error, 1)}
	p.sendError(ErrTimeout)
	p.sendError(ErrTimeout) // dropped, no block

	require.ErrorIs(t, <-p.errors, ErrTimeout)
	select {
	case err := <-p.errors:
		t.Fatalf("expected empty channel, got %v", err)
	default:
	}
}

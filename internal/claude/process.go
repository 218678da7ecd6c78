// Package claude provides a Go interface to headless Claude Code sessions.
//
// A Process wraps one `claude --print` invocation: a single conversational
// turn. The TUI owns the loop, spawning a fresh process with --resume for
// each submitted prompt.
package claude

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"claude-alamode/internal/log"
)

const logCat = log.CatClaude

// ProcessStatus represents the lifecycle state of a Claude process.
type ProcessStatus string

const (
	StatusPending   ProcessStatus = "pending"
	StatusRunning   ProcessStatus = "running"
	StatusCompleted ProcessStatus = "completed"
	StatusFailed    ProcessStatus = "failed"
	StatusCancelled ProcessStatus = "cancelled"
)

// Config holds configuration for spawning a Claude process.
type Config struct {
	WorkDir            string
	Prompt             string
	SessionID          string // For --resume
	Model              string // sonnet, opus, haiku
	AppendSystemPrompt string
	AllowedTools       []string
	DisallowedTools    []string
	SkipPermissions    bool
	Timeout            time.Duration
}

// ErrTimeout is returned when a Claude process exceeds its configured timeout.
var ErrTimeout = fmt.Errorf("claude process timed out")

// Process represents a headless Claude Code process.
type Process struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     io.ReadCloser
	sessionID  string
	workDir    string
	status     ProcessStatus
	events     chan OutputEvent
	errors     chan error
	cancelFunc context.CancelFunc
	ctx        context.Context
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// Spawn creates and starts a new headless Claude process.
// Context is used for cancellation and timeout control.
func Spawn(ctx context.Context, cfg Config) (*Process, error) {
	var procCtx context.Context
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		procCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	} else {
		procCtx, cancel = context.WithCancel(ctx)
	}

	args := buildArgs(cfg)
	log.Debug(logCat, "Spawning claude process", "args", strings.Join(args, " "), "workDir", cfg.WorkDir)

	// #nosec G204 -- args are built from Config struct, not user input
	cmd := exec.CommandContext(procCtx, "claude", args...)
	cmd.Dir = cfg.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	p := &Process{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		sessionID:  cfg.SessionID,
		workDir:    cfg.WorkDir,
		status:     StatusPending,
		events:     make(chan OutputEvent, 100),
		errors:     make(chan error, 10),
		cancelFunc: cancel,
		ctx:        procCtx,
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if execErr, ok := errAsExecError(err); ok {
			return nil, execErr
		}
		return nil, fmt.Errorf("failed to start claude process: %w", err)
	}

	log.Debug(logCat, "Claude process started", "pid", cmd.Process.Pid)
	p.setStatus(StatusRunning)

	p.wg.Add(3)
	go p.parseOutput()
	go p.parseStderr()
	go p.waitForCompletion()

	return p, nil
}

// Resume continues an existing Claude session with the given prompt.
func Resume(ctx context.Context, sessionID string, cfg Config) (*Process, error) {
	if cfg.SessionID == "" {
		cfg.SessionID = sessionID
	}
	return Spawn(ctx, cfg)
}

// errAsExecError maps a missing claude binary to a friendly error.
func errAsExecError(err error) (error, bool) {
	if strings.Contains(err.Error(), "executable file not found") {
		return fmt.Errorf("claude CLI not found in PATH; install Claude Code and run 'claude /login' first"), true
	}
	return nil, false
}

// buildArgs constructs the command line arguments for claude.
func buildArgs(cfg Config) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
	}

	if cfg.SessionID != "" {
		args = append(args, "--resume", cfg.SessionID)
	}

	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}

	if cfg.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}

	if cfg.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", cfg.AppendSystemPrompt)
	}

	for _, tool := range cfg.AllowedTools {
		args = append(args, "--allowed-tools", tool)
	}

	for _, tool := range cfg.DisallowedTools {
		args = append(args, "--disallowed-tools", tool)
	}

	// The -- separator ensures the prompt isn't consumed by preceding flags
	if cfg.Prompt != "" {
		args = append(args, "--", cfg.Prompt)
	}

	return args
}

// Events returns a channel that receives parsed output events.
func (p *Process) Events() <-chan OutputEvent {
	return p.events
}

// Errors returns a channel that receives errors.
func (p *Process) Errors() <-chan error {
	return p.errors
}

// SessionID returns the session ID (may be empty until init event is received).
func (p *Process) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

// Status returns the current process status.
func (p *Process) Status() ProcessStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.Status() == StatusRunning
}

// WorkDir returns the working directory of the process.
func (p *Process) WorkDir() string {
	return p.workDir
}

// PID returns the process ID of the Claude process, or 0 if not running.
func (p *Process) PID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}

// Cancel terminates the Claude process.
// The status is set before calling cancelFunc to prevent a race with
// waitForCompletion.
func (p *Process) Cancel() error {
	p.mu.Lock()
	p.status = StatusCancelled
	p.mu.Unlock()
	p.cancelFunc()
	return nil
}

// Wait blocks until the process completes and all output is drained.
func (p *Process) Wait() error {
	p.wg.Wait()
	return nil
}

// setStatus updates the process status thread-safely.
func (p *Process) setStatus(s ProcessStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

// sendError attempts to send an error to the errors channel.
// If the channel is full, the error is logged but not sent to avoid blocking.
func (p *Process) sendError(err error) {
	select {
	case p.errors <- err:
	default:
		log.Debug(logCat, "Error channel full, dropping error", "error", err)
	}
}

// parseOutput reads stdout and parses stream-json events.
func (p *Process) parseOutput() {
	defer p.wg.Done()
	defer close(p.events)

	scanner := bufio.NewScanner(p.stdout)
	// Large tool results can exceed the default 64KB token limit.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineCount := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		lineCount++

		if len(line) == 0 {
			continue
		}

		var event OutputEvent
		if err := json.Unmarshal(line, &event); err != nil {
			log.Debug(logCat, "Failed to parse JSON", "error", err, "line", string(line[:min(100, len(line))]))
			continue
		}

		event.Raw = make([]byte, len(line))
		copy(event.Raw, line)
		event.Timestamp = time.Now()

		// Extract session ID from init event
		if event.IsInit() && event.SessionID != "" {
			p.mu.Lock()
			p.sessionID = event.SessionID
			p.mu.Unlock()
			log.Debug(logCat, "Got session ID", "sessionID", event.SessionID)
		}

		select {
		case p.events <- event:
		case <-p.ctx.Done():
			log.Debug(logCat, "Context done, stopping parser")
			return
		}
	}

	log.Debug(logCat, "Scanner finished", "totalLines", lineCount)

	if err := scanner.Err(); err != nil {
		p.sendError(fmt.Errorf("stdout scanner error: %w", err))
	}
}

// parseStderr reads and logs stderr output.
func (p *Process) parseStderr() {
	defer p.wg.Done()

	scanner := bufio.NewScanner(p.stderr)
	for scanner.Scan() {
		log.Debug(logCat, "STDERR", "line", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Debug(logCat, "Stderr scanner error", "error", err)
	}
}

// waitForCompletion waits for the process to exit and updates status.
func (p *Process) waitForCompletion() {
	defer p.wg.Done()

	err := p.cmd.Wait()
	log.Debug(logCat, "Process completed", "error", err)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == StatusCancelled {
		// Already cancelled, don't override
		return
	}

	if p.ctx.Err() == context.DeadlineExceeded {
		p.status = StatusFailed
		p.sendError(ErrTimeout)
		return
	}

	if err != nil {
		p.status = StatusFailed
		p.sendError(fmt.Errorf("claude process exited: %w", err))
	} else {
		p.status = StatusCompleted
	}
}

// Package app contains the root application model.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"claude-alamode/internal/cachemanager"
	"claude-alamode/internal/claude"
	"claude-alamode/internal/config"
	"claude-alamode/internal/git"
	"claude-alamode/internal/history"
	"claude-alamode/internal/keys"
	"claude-alamode/internal/log"
	"claude-alamode/internal/pubsub"
	"claude-alamode/internal/sessions"
	"claude-alamode/internal/tracing"
	"claude-alamode/internal/ui/chat"
	"claude-alamode/internal/ui/chatrender"
	"claude-alamode/internal/ui/diffview"
	"claude-alamode/internal/ui/logoverlay"
	"claude-alamode/internal/ui/picker"
	"claude-alamode/internal/ui/statusbar"
	"claude-alamode/internal/watcher"
)

// sessionListTTL bounds how long the picker's session listing is cached.
const sessionListTTL = 30 * time.Second

// Options configures the root application model.
type Options struct {
	Config  config.Config
	WorkDir string

	// ResumeLatest resumes the most recently used session for WorkDir.
	ResumeLatest bool
	// SessionID resumes a specific session. Takes precedence over ResumeLatest.
	SessionID string
	// InitialPrompt is submitted as the first turn immediately on startup.
	InitialPrompt string

	// SessionsDir overrides the Claude Code base directory (~/.claude).
	SessionsDir string
	// Launches records launch history. Nil disables recording.
	Launches history.LaunchRepository
	// Tracer provides the tracing provider. Nil uses a disabled provider.
	Tracer *tracing.Provider
	// GitExec overrides the git executor. Nil uses a real one in WorkDir.
	GitExec git.Executor
}

// Model is the root application state.
type Model struct {
	cfg     config.Config
	keys    keys.KeyMap
	workDir string

	width  int
	height int

	chat       chat.Model
	picker     picker.Model
	diff       diffview.Model
	logOverlay logoverlay.Model
	status     statusbar.Model

	store     *sessions.Store
	sessionID string
	launches  history.LaunchRepository
	gitExec   git.Executor
	tracer    *tracing.Provider

	// Turn in flight
	proc          *claude.Process
	turnSpan      trace.Span
	pendingPrompt string
	totalCost     float64

	initialPrompt string

	// Session list cache feeding the picker
	sessionCache cachemanager.CacheManager[string, []sessions.Meta]
	sessionList  *cachemanager.ReadThroughCache[string, []sessions.Meta, string]

	// Listener lifecycle. ctx outlives individual watchers.
	ctx    context.Context
	cancel context.CancelFunc

	watcherHandle   *watcher.Watcher
	watcherCtx      context.Context
	watcherCancel   context.CancelFunc
	watcherListener *pubsub.ContinuousListener[watcher.TranscriptChange]

	logListener *log.LogListener
}

// Messages internal to the app model.
type (
	turnEventMsg struct {
		event claude.OutputEvent
	}
	turnErrorMsg struct {
		err error
	}
	turnFinishedMsg struct {
		status claude.ProcessStatus
	}
	sessionsLoadedMsg struct {
		metas []sessions.Meta
		err   error
	}
	transcriptReloadedMsg struct {
		messages []chatrender.Message
		err      error
	}
	diffLoadedMsg struct {
		raw string
		err error
	}
)

// New creates the root model, resolving which session (if any) to resume.
func New(opts Options) (Model, error) {
	tracer := opts.Tracer
	if tracer == nil {
		tracer, _ = tracing.NewProvider(tracing.Config{Enabled: false})
	}

	store := sessions.NewStore(opts.SessionsDir)

	_, span := tracer.Tracer().Start(context.Background(), tracing.SpanSessionResolve,
		trace.WithAttributes(attribute.Bool(tracing.AttrResumed, opts.ResumeLatest || opts.SessionID != "")))
	sessionID, sessionPath, err := resolveSession(store, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return Model{}, err
	}
	span.SetAttributes(attribute.String(tracing.AttrSessionID, sessionID))
	span.End()

	gitExec := opts.GitExec
	if gitExec == nil {
		gitExec = git.NewRealExecutor(opts.WorkDir)
	}

	cache := cachemanager.NewInMemoryCacheManager[string, []sessions.Meta](
		"session-list", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	sessionList := cachemanager.NewReadThroughCache(cache,
		func(_ context.Context, project string) ([]sessions.Meta, error) {
			return store.ListSessions(project)
		}, false)

	ctx, cancel := context.WithCancel(context.Background())

	chatModel := chat.New(chat.Config{MarkdownStyle: opts.Config.UI.MarkdownStyle})
	statusModel := statusbar.New().
		SetSession(sessionID).
		SetModel(opts.Config.Claude.Model).
		SetProject(opts.WorkDir)

	m := Model{
		cfg:           opts.Config,
		keys:          keys.DefaultKeyMap(),
		workDir:       opts.WorkDir,
		chat:          chatModel,
		picker:        picker.New(nil),
		diff:          diffview.New(),
		logOverlay:    logoverlay.New(),
		status:        statusModel,
		store:         store,
		sessionID:     sessionID,
		launches:      opts.Launches,
		gitExec:       gitExec,
		tracer:        tracer,
		initialPrompt: opts.InitialPrompt,
		sessionCache:  cache,
		sessionList:   sessionList,
		ctx:           ctx,
		cancel:        cancel,
		logListener:   log.NewListener(ctx),
	}

	if sessionPath != "" {
		msgs, err := sessions.ReadTranscript(sessionPath)
		if err != nil {
			log.Warn(log.CatSessions, "Failed to replay transcript", "path", sessionPath, "error", err)
		} else {
			m.chat = m.chat.SetMessages(convertTranscript(msgs))
		}
		m.startWatcher(sessionPath)
	}

	return m, nil
}

// resolveSession maps the invocation flags to a session id and transcript path.
// Returns empty values for a fresh session.
func resolveSession(store *sessions.Store, opts Options) (string, string, error) {
	if opts.SessionID != "" {
		path, err := store.FindSessionPath(opts.SessionID)
		if err != nil {
			return "", "", fmt.Errorf("resolving session %s: %w", opts.SessionID, err)
		}
		return opts.SessionID, path, nil
	}

	if !opts.ResumeLatest {
		return "", "", nil
	}

	// Launch history knows the last session we actually used; transcript
	// mtimes are the fallback when history is disabled or stale.
	if opts.Launches != nil {
		launch, err := opts.Launches.MostRecent(opts.WorkDir)
		if err == nil {
			if path, err := store.FindSessionPath(launch.SessionID); err == nil {
				return launch.SessionID, path, nil
			}
			log.Warn(log.CatHistory, "Recorded session has no transcript", "sessionID", launch.SessionID)
		} else if !errors.Is(err, history.ErrLaunchNotFound) {
			log.Warn(log.CatHistory, "Launch lookup failed", "error", err)
		}
	}

	id, err := store.LatestSessionID(opts.WorkDir)
	if err != nil {
		return "", "", fmt.Errorf("resuming latest session: %w", err)
	}
	return id, store.SessionPath(opts.WorkDir, id), nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.chat.Init()}

	if m.watcherListener != nil {
		cmds = append(cmds, m.watcherListener.Listen())
	}
	if m.logListener != nil {
		cmds = append(cmds, m.logListener.Listen())
	}
	if m.initialPrompt != "" {
		prompt := m.initialPrompt
		cmds = append(cmds, func() tea.Msg { return chat.SubmitMsg{Content: prompt} })
	}

	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatHeight := msg.Height
		if m.cfg.UI.ShowStatusBar {
			chatHeight--
		}
		m.chat = m.chat.SetSize(msg.Width, chatHeight)
		m.picker = m.picker.SetSize(msg.Width, msg.Height)
		m.diff = m.diff.SetSize(msg.Width, msg.Height)
		m.logOverlay.SetSize(msg.Width, msg.Height)
		m.status = m.status.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.picker.Visible() {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd

	case log.LogEvent:
		m.logOverlay.Refresh()
		if m.logListener != nil {
			return m, m.logListener.Listen()
		}
		return m, nil

	case pubsub.Event[watcher.TranscriptChange]:
		// A settled transcript write supersedes whatever the live stream
		// rendered; the file is canonical.
		if err := m.sessionCache.Flush(context.Background()); err != nil {
			log.Warn(log.CatCache, "Failed to flush session cache", "error", err)
		}
		cmds := []tea.Cmd{reloadTranscript(msg.Payload.Path)}
		if m.watcherListener != nil {
			cmds = append(cmds, m.watcherListener.Listen())
		}
		return m, tea.Batch(cmds...)

	case transcriptReloadedMsg:
		if msg.err != nil {
			log.Warn(log.CatSessions, "Transcript reload failed", "error", msg.err)
			return m, nil
		}
		m.chat = m.chat.SetMessages(msg.messages)
		return m, nil

	case chat.SubmitMsg:
		return m.startTurn(msg.Content)

	case chat.CancelMsg:
		if m.proc != nil {
			_ = m.proc.Cancel()
			log.Info(log.CatClaude, "Turn cancelled by user", "sessionID", m.sessionID)
		}
		return m, nil

	case turnEventMsg:
		return m.handleTurnEvent(msg.event)

	case turnErrorMsg:
		log.ErrorErr(log.CatClaude, "Turn error", msg.err)
		m.chat = m.chat.AddMessage(chatrender.Message{Role: "system", Content: msg.err.Error()})
		if m.proc != nil {
			return m, waitForTurnEvent(m.proc)
		}
		return m, nil

	case turnFinishedMsg:
		return m.finishTurn(msg.status)

	case sessionsLoadedMsg:
		if msg.err != nil {
			log.Warn(log.CatSessions, "Session listing failed", "error", msg.err)
			return m, nil
		}
		m.picker = m.picker.SetSessions(msg.metas)
		return m, nil

	case picker.SelectMsg:
		return m.switchSession(msg.Session)

	case picker.CancelMsg:
		return m, nil

	case picker.DeleteMsg:
		if m.launches != nil {
			if err := m.launches.Delete(msg.Session.SessionID); err != nil &&
				!errors.Is(err, history.ErrLaunchNotFound) {
				log.Warn(log.CatHistory, "Forgetting launch failed",
					"sessionID", msg.Session.SessionID, "error", err)
			}
		}
		return m, nil

	case diffLoadedMsg:
		if msg.err != nil {
			m.chat = m.chat.AddMessage(chatrender.Message{
				Role:    "system",
				Content: "diff unavailable: " + msg.err.Error(),
			})
			return m, nil
		}
		m.diff = m.diff.SetDiff(msg.raw).Show()
		return m, nil

	case diffview.CloseMsg, logoverlay.CloseMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

// handleKey routes key presses, giving any open overlay precedence.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.Close()
		return m, tea.Quit
	}

	if m.logOverlay.Visible() {
		var cmd tea.Cmd
		m.logOverlay, cmd = m.logOverlay.Update(msg)
		return m, cmd
	}
	if m.picker.Visible() {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	if m.diff.Visible() {
		var cmd tea.Cmd
		m.diff, cmd = m.diff.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Picker):
		m.picker = m.picker.Show()
		return m, m.loadSessions()

	case key.Matches(msg, m.keys.LogOverlay):
		m.logOverlay.Toggle()
		return m, nil

	case key.Matches(msg, m.keys.Diff):
		return m, m.loadDiff()
	}

	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

// startTurn spawns a claude process for the prompt and begins pumping events.
func (m Model) startTurn(prompt string) (tea.Model, tea.Cmd) {
	if m.proc != nil && m.proc.IsRunning() {
		return m, nil
	}

	cfg := claude.Config{
		WorkDir:            m.workDir,
		Prompt:             prompt,
		Model:              m.cfg.Claude.Model,
		AppendSystemPrompt: m.cfg.Claude.AppendSystemPrompt,
		AllowedTools:       m.cfg.Claude.AllowedTools,
		DisallowedTools:    m.cfg.Claude.DisallowedTools,
		SkipPermissions:    m.cfg.Claude.SkipPermissions,
		Timeout:            time.Duration(m.cfg.Claude.TurnTimeoutSeconds) * time.Second,
	}

	turnCtx, span := m.tracer.Tracer().Start(context.Background(), tracing.SpanTurn,
		trace.WithAttributes(
			attribute.Int(tracing.AttrPromptLen, len(prompt)),
			attribute.Bool(tracing.AttrResumed, m.sessionID != ""),
			attribute.String(tracing.AttrModel, cfg.Model),
		))

	var proc *claude.Process
	var err error
	if m.sessionID != "" {
		proc, err = claude.Resume(turnCtx, m.sessionID, cfg)
	} else {
		proc, err = claude.Spawn(turnCtx, cfg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		m.chat = m.chat.AddMessage(chatrender.Message{Role: "system", Content: err.Error()})
		return m, nil
	}

	m.proc = proc
	m.turnSpan = span
	m.pendingPrompt = prompt
	m.chat = m.chat.AddMessage(chatrender.Message{Role: "user", Content: prompt})
	m.status = m.status.SetWorking(true)

	var spinCmd tea.Cmd
	m.chat, spinCmd = m.chat.SetWorking(true)

	return m, tea.Batch(spinCmd, waitForTurnEvent(proc))
}

// waitForTurnEvent returns a command that delivers the next process event,
// error, or completion.
func waitForTurnEvent(p *claude.Process) tea.Cmd {
	return func() tea.Msg {
		select {
		case event, ok := <-p.Events():
			if !ok {
				_ = p.Wait()
				return turnFinishedMsg{status: p.Status()}
			}
			return turnEventMsg{event: event}
		case err := <-p.Errors():
			return turnErrorMsg{err: err}
		}
	}
}

// handleTurnEvent folds one stream-json event into the UI state.
func (m Model) handleTurnEvent(event claude.OutputEvent) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForTurnEvent(m.proc)}

	switch {
	case event.IsInit():
		isNew := m.sessionID == ""
		m.sessionID = event.SessionID
		m.status = m.status.SetSession(event.SessionID)
		if event.Model != "" {
			m.status = m.status.SetModel(event.Model)
		}
		if m.turnSpan != nil {
			m.turnSpan.AddEvent(tracing.EventInitReceived)
			m.turnSpan.SetAttributes(attribute.String(tracing.AttrSessionID, event.SessionID))
		}

		m.recordLaunch(event.SessionID, event.Model)

		if isNew {
			if cmd := m.startWatcher(m.store.SessionPath(m.workDir, event.SessionID)); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case event.IsAssistant():
		if text := event.Message.GetText(); text != "" {
			m.chat = m.chat.AddMessage(chatrender.Message{Role: "assistant", Content: text})
		}
		for _, block := range event.Message.GetToolUses() {
			if display := claude.FormatToolDisplay(&block); display != "" {
				m.chat = m.chat.AddMessage(chatrender.Message{
					Role:       "assistant",
					Content:    display,
					IsToolCall: true,
				})
			}
		}

	case event.IsResult():
		m.totalCost += event.TotalCostUSD
		m.status = m.status.SetUsage(event.Usage.ContextTokens(), m.totalCost)
		if m.turnSpan != nil {
			m.turnSpan.AddEvent(tracing.EventResultReceived)
			m.turnSpan.SetAttributes(
				attribute.Float64(tracing.AttrCostUSD, event.TotalCostUSD),
				attribute.Int64(tracing.AttrDurationMs, event.DurationMs),
				attribute.Int(tracing.AttrContextTokens, event.Usage.ContextTokens()),
			)
		}
		if event.IsError() {
			m.chat = m.chat.AddMessage(chatrender.Message{Role: "system", Content: event.GetErrorMessage()})
		}

	case event.IsError():
		m.chat = m.chat.AddMessage(chatrender.Message{Role: "system", Content: event.GetErrorMessage()})
	}

	return m, tea.Batch(cmds...)
}

// finishTurn tears down in-flight turn state once the process has drained.
func (m Model) finishTurn(status claude.ProcessStatus) (tea.Model, tea.Cmd) {
	log.Debug(log.CatClaude, "Turn finished", "status", status, "sessionID", m.sessionID)

	if m.turnSpan != nil {
		switch status {
		case claude.StatusFailed:
			m.turnSpan.SetStatus(codes.Error, "process failed")
			m.turnSpan.AddEvent(tracing.EventProcessFailed)
		case claude.StatusCancelled:
			m.turnSpan.SetAttributes(attribute.String(tracing.AttrErrorType, "cancelled"))
		}
		m.turnSpan.End()
		m.turnSpan = nil
	}

	switch status {
	case claude.StatusFailed:
		if err := m.drainError(); err != nil {
			m.chat = m.chat.AddMessage(chatrender.Message{Role: "system", Content: err.Error()})
		}
	case claude.StatusCancelled:
		m.chat = m.chat.AddMessage(chatrender.Message{Role: "system", Content: "Turn cancelled"})
	case claude.StatusCompleted:
		if m.launches != nil && m.sessionID != "" {
			if err := m.launches.Touch(m.sessionID); err != nil && !errors.Is(err, history.ErrLaunchNotFound) {
				log.Warn(log.CatHistory, "Failed to touch launch", "error", err)
			}
		}
	}

	m.proc = nil
	m.pendingPrompt = ""
	m.status = m.status.SetWorking(false)

	var cmd tea.Cmd
	m.chat, cmd = m.chat.SetWorking(false)
	return m, cmd
}

// drainError pulls one buffered process error without blocking.
func (m Model) drainError() error {
	if m.proc == nil {
		return nil
	}
	select {
	case err := <-m.proc.Errors():
		return err
	default:
		return nil
	}
}

// recordLaunch upserts the launch row for the active session.
func (m *Model) recordLaunch(sessionID, model string) {
	if m.launches == nil || sessionID == "" {
		return
	}
	err := m.launches.RecordLaunch(&history.Launch{
		SessionID:   sessionID,
		Project:     m.workDir,
		FirstPrompt: m.pendingPrompt,
		Model:       model,
	})
	if err != nil {
		log.Warn(log.CatHistory, "Failed to record launch", "error", err)
	}
}

// switchSession points the UI at a different session chosen in the picker.
func (m Model) switchSession(meta sessions.Meta) (tea.Model, tea.Cmd) {
	if m.proc != nil {
		_ = m.proc.Cancel()
	}

	log.Info(log.CatSessions, "Switching session", "sessionID", meta.SessionID)

	m.sessionID = meta.SessionID
	m.totalCost = 0
	m.status = m.status.SetSession(meta.SessionID).SetUsage(0, 0)

	if m.launches != nil {
		if err := m.launches.RecordLaunch(&history.Launch{
			SessionID:   meta.SessionID,
			Project:     m.workDir,
			FirstPrompt: meta.FirstPrompt,
		}); err != nil {
			log.Warn(log.CatHistory, "Failed to record launch", "error", err)
		}
	}

	cmds := []tea.Cmd{reloadTranscript(meta.Path)}
	if cmd := m.startWatcher(meta.Path); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// startWatcher (re)points the transcript watcher at path. Returns the
// listener command, or nil when watching could not start.
func (m *Model) startWatcher(path string) tea.Cmd {
	if m.watcherHandle != nil {
		_ = m.watcherHandle.Stop()
		m.watcherHandle = nil
	}
	if m.watcherCancel != nil {
		m.watcherCancel()
	}

	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		log.Warn(log.CatWatcher, "Failed to create watcher", "error", err)
		return nil
	}
	if err := w.Start(); err != nil {
		// The project directory may not exist yet for a brand-new session.
		log.Warn(log.CatWatcher, "Failed to start watcher", "path", path, "error", err)
		_ = w.Stop()
		return nil
	}

	m.watcherHandle = w
	m.watcherCtx, m.watcherCancel = context.WithCancel(m.ctx)
	m.watcherListener = pubsub.NewContinuousListener(m.watcherCtx, w.Broker())
	return m.watcherListener.Listen()
}

// loadSessions returns a command that lists sessions through the cache.
func (m Model) loadSessions() tea.Cmd {
	list := m.sessionList
	ctx := m.ctx
	project := m.workDir
	return func() tea.Msg {
		metas, err := list.Get(ctx, project, project, sessionListTTL)
		return sessionsLoadedMsg{metas: metas, err: err}
	}
}

// loadDiff returns a command that captures the working tree diff.
func (m Model) loadDiff() tea.Cmd {
	exec := m.gitExec
	return func() tea.Msg {
		raw, err := exec.Diff()
		return diffLoadedMsg{raw: raw, err: err}
	}
}

// reloadTranscript returns a command that replays a session file.
func reloadTranscript(path string) tea.Cmd {
	return func() tea.Msg {
		msgs, err := sessions.ReadTranscript(path)
		if err != nil {
			return transcriptReloadedMsg{err: err}
		}
		return transcriptReloadedMsg{messages: convertTranscript(msgs)}
	}
}

// convertTranscript maps replayed transcript messages to chat messages.
func convertTranscript(msgs []sessions.TranscriptMessage) []chatrender.Message {
	out := make([]chatrender.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, chatrender.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			IsToolCall: msg.IsToolCall,
		})
	}
	return out
}

// SessionID returns the active session id, empty for a fresh session.
func (m Model) SessionID() string {
	return m.sessionID
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	view := m.chat.View()
	if m.cfg.UI.ShowStatusBar {
		view = lipgloss.JoinVertical(lipgloss.Left, view, m.status.View())
	}

	view = m.picker.Overlay(view)
	view = m.diff.Overlay(view)
	view = m.logOverlay.Overlay(view)

	return zone.Scan(view)
}

// Close releases watchers, listeners, and any running process.
func (m Model) Close() {
	if m.proc != nil {
		_ = m.proc.Cancel()
	}
	if m.turnSpan != nil {
		m.turnSpan.End()
	}
	if m.watcherHandle != nil {
		_ = m.watcherHandle.Stop()
	}
	m.cancel()
}

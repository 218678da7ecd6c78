package tracing

// Span attribute keys used across turn execution and session handling.
const (
	// Turn attributes
	AttrSessionID  = "session.id"
	AttrModel      = "turn.model"
	AttrPromptLen  = "turn.prompt_length"
	AttrResumed    = "turn.resumed"
	AttrCostUSD    = "turn.cost_usd"
	AttrDurationMs = "turn.duration_ms"

	// Token attributes
	AttrInputTokens   = "tokens.input"
	AttrOutputTokens  = "tokens.output"
	AttrContextTokens = "tokens.context"

	// Worktree attributes
	AttrWorktreeBranch = "worktree.branch"
	AttrWorktreePath   = "worktree.path"

	// Error attributes
	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span names.
const (
	SpanTurn           = "turn.execute"
	SpanSessionResolve = "session.resolve"
	SpanCompact        = "session.compact"
	SpanWorktreeStart  = "worktree.start"
	SpanWorktreeFinish = "worktree.finish"
)

// Event names for span events.
const (
	EventInitReceived   = "turn.init_received"
	EventResultReceived = "turn.result_received"
	EventProcessFailed  = "turn.process_failed"
)

// Package git wraps the git CLI behind a small interface so worktree
// orchestration can be tested with mocks.
package git

// Executor defines the git operations used by worktree management.
type Executor interface {
	IsGitRepo() bool
	GetRepoRoot() (string, error)
	GetCurrentBranch() (string, error)
	// GetMainBranch detects the main branch name (config, remote HEAD,
	// then main/master existence, falling back to "main").
	GetMainBranch() (string, error)
	HasUncommittedChanges() (bool, error)
	BranchExists(name string) bool
	// ValidateBranchName validates a branch name using
	// git check-ref-format --branch. Returns ErrInvalidBranchName if invalid.
	ValidateBranchName(name string) error
	DeleteBranch(name string) error

	// CreateWorktree creates a worktree at path on a new branch. If
	// baseBranch is empty, the branch starts from current HEAD.
	CreateWorktree(path, newBranch, baseBranch string) error
	RemoveWorktree(path string) error
	PruneWorktrees() error
	ListWorktrees() ([]WorktreeInfo, error)

	// Rebase rebases the current branch onto the given ref.
	Rebase(onto string) error
	// AbortRebase aborts an in-progress rebase.
	AbortRebase() error
	// Merge merges the given branch into the current branch.
	Merge(branch string) error

	// Diff returns the unified diff of uncommitted changes against HEAD.
	Diff() (string, error)
}

// WorktreeInfo holds information about a git worktree.
// git worktree list always reports the main worktree first.
type WorktreeInfo struct {
	Path   string
	Branch string
	HEAD   string
}

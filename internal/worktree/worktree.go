// Package worktree manages isolated git worktrees for feature work: start
// creates a sibling worktree on a new branch, finish rebases and merges it
// back, list shows what exists.
package worktree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"claude-alamode/internal/git"
	"claude-alamode/internal/log"
)

var (
	// ErrNotGitRepo indicates the working directory is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrWorktreeExists indicates the target worktree directory already exists.
	ErrWorktreeExists = errors.New("worktree directory already exists")

	// ErrNotInWorktree indicates finish was called outside a feature worktree.
	ErrNotInWorktree = errors.New("not in a feature worktree")

	// ErrDirtyWorktree indicates the worktree has uncommitted changes.
	ErrDirtyWorktree = errors.New("uncommitted changes in worktree")

	// ErrRebaseConflict indicates the rebase hit conflicts and was aborted.
	ErrRebaseConflict = errors.New("rebase conflict")
)

// ExecutorFactory builds a git executor rooted at workDir. Finish needs to
// run commands in both the feature worktree and the main worktree.
type ExecutorFactory func(workDir string) git.Executor

// Manager orchestrates the worktree lifecycle from a working directory.
type Manager struct {
	workDir     string
	newExecutor ExecutorFactory
}

// NewManager creates a Manager running real git commands from workDir.
func NewManager(workDir string) *Manager {
	return &Manager{
		workDir:     workDir,
		newExecutor: func(dir string) git.Executor { return git.NewRealExecutor(dir) },
	}
}

// NewManagerWithFactory creates a Manager with a custom executor factory.
func NewManagerWithFactory(workDir string, factory ExecutorFactory) *Manager {
	return &Manager{workDir: workDir, newExecutor: factory}
}

// StartResult describes a newly created worktree.
type StartResult struct {
	Path       string
	Branch     string
	BaseBranch string
}

// Start creates a worktree for the given feature next to the main worktree,
// on a new branch named after the feature, starting from current HEAD.
func (m *Manager) Start(feature string) (*StartResult, error) {
	exec := m.newExecutor(m.workDir)
	if !exec.IsGitRepo() {
		return nil, ErrNotGitRepo
	}
	if err := exec.ValidateBranchName(feature); err != nil {
		return nil, err
	}

	repoRoot, err := exec.GetRepoRoot()
	if err != nil {
		return nil, fmt.Errorf("resolving repo root: %w", err)
	}
	baseBranch, err := exec.GetCurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("resolving current branch: %w", err)
	}

	// Place the worktree next to the main worktree.
	parentDir := filepath.Dir(repoRoot)
	if worktrees, err := exec.ListWorktrees(); err == nil && len(worktrees) > 0 {
		parentDir = filepath.Dir(worktrees[0].Path)
	}

	repoName := filepath.Base(repoRoot)
	worktreeDir := filepath.Join(parentDir, repoName+"-"+feature)

	if _, err := os.Stat(worktreeDir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorktreeExists, worktreeDir)
	}

	if err := exec.CreateWorktree(worktreeDir, feature, ""); err != nil {
		return nil, fmt.Errorf("creating worktree: %w", err)
	}

	log.Info(log.CatGit, "Created worktree",
		"path", worktreeDir, "branch", feature, "base", baseBranch)
	return &StartResult{Path: worktreeDir, Branch: feature, BaseBranch: baseBranch}, nil
}

// FinishResult describes a completed worktree merge.
type FinishResult struct {
	Steps    []string
	MainPath string
}

// Finish completes the feature worktree the Manager was started in: rebases
// the feature branch onto the main branch, merges it back in the main
// worktree, then removes the worktree and deletes the branch. The worktree
// must be clean; a conflicting rebase is aborted and reported.
func (m *Manager) Finish() (*FinishResult, error) {
	exec := m.newExecutor(m.workDir)
	if !exec.IsGitRepo() {
		return nil, ErrNotGitRepo
	}

	worktrees, err := exec.ListWorktrees()
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}
	if len(worktrees) < 2 {
		return nil, ErrNotInWorktree
	}

	// git worktree list reports the main worktree first.
	main := worktrees[0]
	current, err := m.currentWorktree(worktrees)
	if err != nil {
		return nil, err
	}
	if current.Path == main.Path {
		return nil, ErrNotInWorktree
	}

	featureExec := m.newExecutor(current.Path)
	mainExec := m.newExecutor(main.Path)

	dirty, err := featureExec.HasUncommittedChanges()
	if err != nil {
		return nil, fmt.Errorf("checking worktree status: %w", err)
	}
	if dirty {
		return nil, ErrDirtyWorktree
	}

	var steps []string

	if err := featureExec.Rebase(main.Branch); err != nil {
		if abortErr := featureExec.AbortRebase(); abortErr != nil {
			log.ErrorErr(log.CatGit, "Failed to abort rebase", abortErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrRebaseConflict, err)
	}
	steps = append(steps, fmt.Sprintf("Rebased %s onto %s", current.Branch, main.Branch))

	if err := mainExec.Merge(current.Branch); err != nil {
		return nil, fmt.Errorf("merging %s: %w", current.Branch, err)
	}
	steps = append(steps, fmt.Sprintf("Merged %s into %s", current.Branch, main.Branch))

	if err := mainExec.RemoveWorktree(current.Path); err != nil {
		return nil, fmt.Errorf("removing worktree: %w", err)
	}
	if err := mainExec.DeleteBranch(current.Branch); err != nil {
		return nil, fmt.Errorf("deleting branch: %w", err)
	}
	steps = append(steps, "Cleaned up worktree and branch")

	log.Info(log.CatGit, "Finished worktree",
		"branch", current.Branch, "main", main.Path)
	return &FinishResult{Steps: steps, MainPath: main.Path}, nil
}

// Info describes one worktree in List output.
type Info struct {
	Path   string
	Branch string
	IsMain bool
}

// List returns all worktrees of the enclosing repository.
func (m *Manager) List() ([]Info, error) {
	exec := m.newExecutor(m.workDir)
	if !exec.IsGitRepo() {
		return nil, ErrNotGitRepo
	}

	worktrees, err := exec.ListWorktrees()
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}

	infos := make([]Info, 0, len(worktrees))
	for i, wt := range worktrees {
		infos = append(infos, Info{Path: wt.Path, Branch: wt.Branch, IsMain: i == 0})
	}
	return infos, nil
}

// currentWorktree matches the Manager's workDir against the worktree list.
func (m *Manager) currentWorktree(worktrees []git.WorktreeInfo) (git.WorktreeInfo, error) {
	workDir, err := filepath.EvalSymlinks(m.workDir)
	if err != nil {
		workDir = m.workDir
	}
	for _, wt := range worktrees {
		path, err := filepath.EvalSymlinks(wt.Path)
		if err != nil {
			path = wt.Path
		}
		if path == workDir {
			return wt, nil
		}
	}
	return git.WorktreeInfo{}, ErrNotInWorktree
}

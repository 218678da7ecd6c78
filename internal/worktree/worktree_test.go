package worktree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"claude-alamode/internal/git"
)

// mockState is shared across every executor the factory hands out so a test
// can assert on calls made from both the feature and main worktrees.
type mockState struct {
	isGitRepo    bool
	repoRoot     string
	currentBr    string
	worktrees    []git.WorktreeInfo
	dirty        bool
	rebaseErr    error
	mergeErr     error
	invalidNames map[string]bool

	calls []string
}

func (s *mockState) record(dir, format string, args ...any) {
	s.calls = append(s.calls, filepath.Base(dir)+": "+fmt.Sprintf(format, args...))
}

type mockExecutor struct {
	dir   string
	state *mockState
}

var _ git.Executor = (*mockExecutor)(nil)

func (m *mockExecutor) IsGitRepo() bool                { return m.state.isGitRepo }
func (m *mockExecutor) GetRepoRoot() (string, error)   { return m.state.repoRoot, nil }
func (m *mockExecutor) GetCurrentBranch() (string, error) {
	return m.state.currentBr, nil
}
func (m *mockExecutor) GetMainBranch() (string, error) { return "main", nil }
func (m *mockExecutor) HasUncommittedChanges() (bool, error) {
	return m.state.dirty, nil
}
func (m *mockExecutor) BranchExists(string) bool { return false }
func (m *mockExecutor) ValidateBranchName(name string) error {
	if name == "" || m.state.invalidNames[name] {
		return git.ErrInvalidBranchName
	}
	return nil
}
func (m *mockExecutor) DeleteBranch(name string) error {
	m.state.record(m.dir, "delete-branch %s", name)
	return nil
}
func (m *mockExecutor) CreateWorktree(path, newBranch, baseBranch string) error {
	m.state.record(m.dir, "create %s %s %q", filepath.Base(path), newBranch, baseBranch)
	return nil
}
func (m *mockExecutor) RemoveWorktree(path string) error {
	m.state.record(m.dir, "remove %s", filepath.Base(path))
	return nil
}
func (m *mockExecutor) PruneWorktrees() error { return nil }
func (m *mockExecutor) ListWorktrees() ([]git.WorktreeInfo, error) {
	return m.state.worktrees, nil
}
func (m *mockExecutor) Rebase(onto string) error {
	m.state.record(m.dir, "rebase %s", onto)
	return m.state.rebaseErr
}
func (m *mockExecutor) AbortRebase() error {
	m.state.record(m.dir, "rebase-abort")
	return nil
}
func (m *mockExecutor) Merge(branch string) error {
	m.state.record(m.dir, "merge %s", branch)
	return m.state.mergeErr
}
func (m *mockExecutor) Diff() (string, error) { return "", nil }

func newMockManager(workDir string, state *mockState) *Manager {
	return NewManagerWithFactory(workDir, func(dir string) git.Executor {
		return &mockExecutor{dir: dir, state: state}
	})
}

func twoWorktreeState(base string) *mockState {
	mainPath := filepath.Join(base, "widget")
	featurePath := filepath.Join(base, "widget-auth")
	return &mockState{
		isGitRepo: true,
		repoRoot:  mainPath,
		currentBr: "main",
		worktrees: []git.WorktreeInfo{
			{Path: mainPath, Branch: "main"},
			{Path: featurePath, Branch: "auth"},
		},
	}
}

func TestStart_CreatesSiblingWorktree(t *testing.T) {
	base := t.TempDir()
	mainPath := filepath.Join(base, "widget")
	state := &mockState{
		isGitRepo: true,
		repoRoot:  mainPath,
		currentBr: "main",
		worktrees: []git.WorktreeInfo{{Path: mainPath, Branch: "main"}},
	}

	mgr := newMockManager(mainPath, state)
	result, err := mgr.Start("auth")
	require.NoError(t, err)

	require.Equal(t, filepath.Join(base, "widget-auth"), result.Path)
	require.Equal(t, "auth", result.Branch)
	require.Equal(t, "main", result.BaseBranch)
	require.Contains(t, state.calls, `widget: create widget-auth auth ""`)
}

func TestStart_NotGitRepo(t *testing.T) {
	mgr := newMockManager(t.TempDir(), &mockState{isGitRepo: false})
	_, err := mgr.Start("auth")
	require.ErrorIs(t, err, ErrNotGitRepo)
}

func TestStart_InvalidBranchName(t *testing.T) {
	state := &mockState{isGitRepo: true, invalidNames: map[string]bool{"bad..name": true}}
	mgr := newMockManager(t.TempDir(), state)
	_, err := mgr.Start("bad..name")
	require.ErrorIs(t, err, git.ErrInvalidBranchName)
}

func TestStart_ExistingDirectory(t *testing.T) {
	base := t.TempDir()
	mainPath := filepath.Join(base, "widget")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "widget-auth"), 0700))

	state := &mockState{
		isGitRepo: true,
		repoRoot:  mainPath,
		currentBr: "main",
		worktrees: []git.WorktreeInfo{{Path: mainPath, Branch: "main"}},
	}

	mgr := newMockManager(mainPath, state)
	_, err := mgr.Start("auth")
	require.ErrorIs(t, err, ErrWorktreeExists)
}

func TestFinish_RebaseMergeCleanup(t *testing.T) {
	base := t.TempDir()
	state := twoWorktreeState(base)

	mgr := newMockManager(filepath.Join(base, "widget-auth"), state)
	result, err := mgr.Finish()
	require.NoError(t, err)

	require.Equal(t, filepath.Join(base, "widget"), result.MainPath)
	require.Equal(t, []string{
		"Rebased auth onto main",
		"Merged auth into main",
		"Cleaned up worktree and branch",
	}, result.Steps)

	// Rebase runs in the feature worktree, the rest in the main worktree.
	require.Equal(t, []string{
		"widget-auth: rebase main",
		"widget: merge auth",
		"widget: remove widget-auth",
		"widget: delete-branch auth",
	}, state.calls)
}

func TestFinish_RefusesDirtyWorktree(t *testing.T) {
	base := t.TempDir()
	state := twoWorktreeState(base)
	state.dirty = true

	mgr := newMockManager(filepath.Join(base, "widget-auth"), state)
	_, err := mgr.Finish()
	require.ErrorIs(t, err, ErrDirtyWorktree)
	require.Empty(t, state.calls, "no git mutations on a dirty tree")
}

func TestFinish_RebaseConflictAborts(t *testing.T) {
	base := t.TempDir()
	state := twoWorktreeState(base)
	state.rebaseErr = errors.New("CONFLICT (content): merge conflict")

	mgr := newMockManager(filepath.Join(base, "widget-auth"), state)
	_, err := mgr.Finish()
	require.ErrorIs(t, err, ErrRebaseConflict)
	require.Contains(t, state.calls, "widget-auth: rebase-abort")
	require.NotContains(t, state.calls, "widget: merge auth")
}

func TestFinish_MergeFailureKeepsWorktree(t *testing.T) {
	base := t.TempDir()
	state := twoWorktreeState(base)
	state.mergeErr = errors.New("merge failed")

	mgr := newMockManager(filepath.Join(base, "widget-auth"), state)
	_, err := mgr.Finish()
	require.Error(t, err)
	require.NotContains(t, state.calls, "widget: remove widget-auth")
}

func TestFinish_FromMainWorktree(t *testing.T) {
	base := t.TempDir()
	state := twoWorktreeState(base)

	mgr := newMockManager(filepath.Join(base, "widget"), state)
	_, err := mgr.Finish()
	require.ErrorIs(t, err, ErrNotInWorktree)
}

func TestFinish_SingleWorktree(t *testing.T) {
	base := t.TempDir()
	mainPath := filepath.Join(base, "widget")
	state := &mockState{
		isGitRepo: true,
		repoRoot:  mainPath,
		worktrees: []git.WorktreeInfo{{Path: mainPath, Branch: "main"}},
	}

	mgr := newMockManager(mainPath, state)
	_, err := mgr.Finish()
	require.ErrorIs(t, err, ErrNotInWorktree)
}

func TestFinish_UnknownDirectory(t *testing.T) {
	base := t.TempDir()
	state := twoWorktreeState(base)

	mgr := newMockManager(filepath.Join(base, "elsewhere"), state)
	_, err := mgr.Finish()
	require.ErrorIs(t, err, ErrNotInWorktree)
}

func TestList_MarksMainWorktree(t *testing.T) {
	base := t.TempDir()
	state := twoWorktreeState(base)

	mgr := newMockManager(filepath.Join(base, "widget"), state)
	infos, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.True(t, infos[0].IsMain)
	require.Equal(t, "main", infos[0].Branch)
	require.False(t, infos[1].IsMain)
	require.Equal(t, "auth", infos[1].Branch)
}

func TestList_NotGitRepo(t *testing.T) {
	mgr := newMockManager(t.TempDir(), &mockState{isGitRepo: false})
	_, err := mgr.List()
	require.ErrorIs(t, err, ErrNotGitRepo)
}

// Package sessions reads and maintains Claude Code's on-disk session store.
//
// Claude Code persists one JSONL transcript per session under
// ~/.claude/projects/<encoded-cwd>/<session-id>.jsonl, where the encoded
// directory name replaces every "/" in the project path with "-".
package sessions

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"claude-alamode/internal/log"
)

// ErrNoSessions is returned when a project has no recorded sessions.
var ErrNoSessions = errors.New("no sessions found for project")

// Meta holds lightweight session metadata without loading the full JSONL.
type Meta struct {
	SessionID    string
	Path         string
	FirstPrompt  string
	Summary      string
	MessageCount int
	GitBranch    string
	Modified     time.Time
}

// Store reads session metadata from a Claude Code base directory.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir.
// An empty baseDir defaults to ~/.claude.
func NewStore(baseDir string) *Store {
	if baseDir == "" {
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, ".claude")
	}
	return &Store{baseDir: baseDir}
}

// BaseDir returns the store's base directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// EncodeProjectDir converts a project path to Claude's directory name,
// e.g. "/Users/x/proj" becomes "-Users-x-proj".
func EncodeProjectDir(path string) string {
	return strings.ReplaceAll(path, "/", "-")
}

// DecodeProjectDir converts a Claude directory name back to a project path,
// e.g. "-Users-x-proj" becomes "/Users/x/proj".
// The mapping is lossy for paths whose segments contain "-".
func DecodeProjectDir(dirName string) string {
	if dirName == "-" {
		return "/"
	}
	if strings.HasPrefix(dirName, "-") {
		return "/" + strings.ReplaceAll(dirName[1:], "-", "/")
	}
	return strings.ReplaceAll(dirName, "-", "/")
}

// ProjectDir returns the session directory for the given project path.
func (s *Store) ProjectDir(projectPath string) string {
	return filepath.Join(s.baseDir, "projects", EncodeProjectDir(projectPath))
}

// SessionPath returns the JSONL path for a session in the given project.
func (s *Store) SessionPath(projectPath, sessionID string) string {
	return filepath.Join(s.ProjectDir(projectPath), sessionID+".jsonl")
}

// FindSessionPath locates a session file by id across all projects.
// Returns the path of the first match or an error when no project has it.
func (s *Store) FindSessionPath(sessionID string) (string, error) {
	pattern := filepath.Join(s.baseDir, "projects", "*", sessionID+".jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("globbing session files: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrNoSessions)
	}
	return matches[0], nil
}

// ListSessions returns metadata for all sessions of a project, newest first.
// Returns an empty slice (not an error) when the project directory is missing.
func (s *Store) ListSessions(projectPath string) ([]Meta, error) {
	dir := s.ProjectDir(projectPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading project dir: %w", err)
	}

	indexed := readIndex(dir)

	var metas []Meta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		sessionID := strings.TrimSuffix(entry.Name(), ".jsonl")

		// Fast path: the CLI maintains a sessions-index.json with the
		// metadata the full scan would produce. Modified time still comes
		// from the file so ordering survives a stale index.
		if meta, ok := indexed[sessionID]; ok {
			if info, statErr := os.Stat(path); statErr == nil {
				meta.Path = path
				meta.Modified = info.ModTime()
				metas = append(metas, meta)
				continue
			}
		}

		meta, err := readMeta(path)
		if err != nil {
			log.Warn(log.CatSessions, "Skipping unreadable session file", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Modified.After(metas[j].Modified)
	})
	return metas, nil
}

// LatestSessionID returns the most recently modified session for a project.
func (s *Store) LatestSessionID(projectPath string) (string, error) {
	metas, err := s.ListSessions(projectPath)
	if err != nil {
		return "", err
	}
	if len(metas) == 0 {
		return "", ErrNoSessions
	}
	return metas[0].SessionID, nil
}

// indexFileName is the per-project metadata index the CLI maintains
// alongside the transcripts.
const indexFileName = "sessions-index.json"

type indexEntry struct {
	SessionID    string `json:"sessionId"`
	FirstPrompt  string `json:"firstPrompt"`
	Summary      string `json:"summary"`
	MessageCount int    `json:"messageCount"`
	GitBranch    string `json:"gitBranch"`
}

type indexFile struct {
	Version int          `json:"version"`
	Entries []indexEntry `json:"entries"`
}

// readIndex loads sessions-index.json metadata keyed by session id.
// A missing or malformed index returns nil; callers fall back to scanning.
func readIndex(dir string) map[string]Meta {
	data, err := os.ReadFile(filepath.Join(dir, indexFileName)) // #nosec G304
	if err != nil {
		return nil
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		log.Warn(log.CatSessions, "Ignoring malformed session index", "dir", dir, "error", err)
		return nil
	}

	metas := make(map[string]Meta, len(idx.Entries))
	for _, e := range idx.Entries {
		if e.SessionID == "" {
			continue
		}
		metas[e.SessionID] = Meta{
			SessionID:    e.SessionID,
			FirstPrompt:  firstLine(e.FirstPrompt),
			Summary:      e.Summary,
			MessageCount: e.MessageCount,
			GitBranch:    e.GitBranch,
		}
	}
	return metas
}

// metaScanLimit bounds how many JSONL lines are examined for metadata.
const metaScanLimit = 250

// readMeta scans the head of a session JSONL for display metadata.
func readMeta(path string) (Meta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Meta{}, err
	}

	f, err := os.Open(path) // #nosec G304 -- path comes from directory listing above
	if err != nil {
		return Meta{}, err
	}
	defer func() { _ = f.Close() }()

	meta := Meta{
		SessionID: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		Path:      path,
		Modified:  info.ModTime(),
	}

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lines := 0
	for scanner.Scan() && lines < metaScanLimit {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}

		switch entry.Type {
		case EntryTypeSummary:
			if meta.Summary == "" {
				meta.Summary = entry.Summary
			}
		case EntryTypeUser:
			meta.MessageCount++
			if meta.FirstPrompt == "" {
				if text := entry.PromptText(); text != "" {
					meta.FirstPrompt = firstLine(text)
				}
			}
			if meta.GitBranch == "" {
				meta.GitBranch = entry.GitBranch
			}
		case EntryTypeAssistant:
			meta.MessageCount++
		}
	}
	if err := scanner.Err(); err != nil {
		return Meta{}, err
	}

	return meta, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

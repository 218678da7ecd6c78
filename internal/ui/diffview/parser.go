package diffview

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	diffHeaderRegex  = regexp.MustCompile(`^diff --git a/(.+) b/(.+)$`)
	hunkHeaderRegex  = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)
	oldFileRegex     = regexp.MustCompile(`^--- a/(.+)$`)
	newFileRegex     = regexp.MustCompile(`^\+\+\+ b/(.+)$`)
	renameFromRegex  = regexp.MustCompile(`^rename from (.+)$`)
	renameToRegex    = regexp.MustCompile(`^rename to (.+)$`)
	binaryFilesRegex = regexp.MustCompile(`^Binary files .+ and .+ differ$`)
	newFileModeRegex = regexp.MustCompile(`^new file mode \d+$`)
	delFileModeRegex = regexp.MustCompile(`^deleted file mode \d+$`)
)

// Parse converts `git diff` output into structured files. It handles
// binary files, renames, new and deleted files, and the trailing
// "\ No newline at end of file" marker.
func Parse(output string) ([]File, error) {
	if output == "" {
		return nil, nil
	}

	var files []File
	var current *File
	var hunk *Hunk
	oldLine, newLine := 0, 0

	flushHunk := func() {
		if current != nil && hunk != nil {
			current.Hunks = append(current.Hunks, *hunk)
			hunk = nil
		}
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			files = append(files, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		if m := diffHeaderRegex.FindStringSubmatch(line); m != nil {
			flushFile()
			current = &File{OldPath: m[1], NewPath: m[2]}
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case line == "--- /dev/null":
			current.IsNew = true
			continue
		case line == "+++ /dev/null":
			current.IsDeleted = true
			continue
		case newFileModeRegex.MatchString(line):
			current.IsNew = true
			continue
		case delFileModeRegex.MatchString(line):
			current.IsDeleted = true
			continue
		case binaryFilesRegex.MatchString(line):
			current.IsBinary = true
			continue
		}

		if m := oldFileRegex.FindStringSubmatch(line); m != nil {
			current.OldPath = m[1]
			continue
		}
		if m := newFileRegex.FindStringSubmatch(line); m != nil {
			current.NewPath = m[1]
			continue
		}
		if m := renameFromRegex.FindStringSubmatch(line); m != nil {
			current.OldPath = m[1]
			current.IsRenamed = true
			continue
		}
		if m := renameToRegex.FindStringSubmatch(line); m != nil {
			current.NewPath = m[1]
			current.IsRenamed = true
			continue
		}

		if m := hunkHeaderRegex.FindStringSubmatch(line); m != nil {
			flushHunk()
			h, err := parseHunkHeader(m, line)
			if err != nil {
				return nil, err
			}
			hunk = h
			oldLine = h.OldStart
			newLine = h.NewStart
			continue
		}

		if hunk == nil {
			continue
		}

		if line == "" {
			hunk.Lines = append(hunk.Lines, Line{
				Type:       LineContext,
				OldLineNum: oldLine,
				NewLineNum: newLine,
			})
			oldLine++
			newLine++
			continue
		}

		content := ""
		if len(line) > 1 {
			content = line[1:]
		}

		switch line[0] {
		case ' ':
			hunk.Lines = append(hunk.Lines, Line{
				Type:       LineContext,
				OldLineNum: oldLine,
				NewLineNum: newLine,
				Content:    content,
			})
			oldLine++
			newLine++
		case '-':
			hunk.Lines = append(hunk.Lines, Line{
				Type:       LineDeletion,
				OldLineNum: oldLine,
				Content:    content,
			})
			current.Deletions++
			oldLine++
		case '+':
			hunk.Lines = append(hunk.Lines, Line{
				Type:       LineAddition,
				NewLineNum: newLine,
				Content:    content,
			})
			current.Additions++
			newLine++
		case '\\':
			// "\ No newline at end of file"
		default:
			// Unknown prefix, skip rather than fail
		}
	}

	flushFile()
	return files, nil
}

func parseHunkHeader(m []string, line string) (*Hunk, error) {
	oldStart, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid hunk header: %s", line)
	}
	newStart, err := strconv.Atoi(m[3])
	if err != nil {
		return nil, fmt.Errorf("invalid hunk header: %s", line)
	}

	oldCount, newCount := 1, 1
	if m[2] != "" {
		if oldCount, err = strconv.Atoi(m[2]); err != nil {
			return nil, fmt.Errorf("invalid hunk header: %s", line)
		}
	}
	if m[4] != "" {
		if newCount, err = strconv.Atoi(m[4]); err != nil {
			return nil, fmt.Errorf("invalid hunk header: %s", line)
		}
	}

	return &Hunk{
		OldStart: oldStart,
		OldCount: oldCount,
		NewStart: newStart,
		NewCount: newCount,
		Header:   line,
		Lines: []Line{{
			Type:    LineHunkHeader,
			Content: strings.TrimSpace(m[5]),
		}},
	}, nil
}

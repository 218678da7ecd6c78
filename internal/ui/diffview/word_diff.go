package diffview

import (
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Word diff bounds. Lines past these limits render without intra-line
// highlights rather than stalling the UI.
const (
	wordDiffMaxLineLength = 500
	wordDiffMaxPairs      = 100
)

type segmentType int

const (
	segmentUnchanged segmentType = iota
	segmentAdded
	segmentDeleted
)

type segment struct {
	Type segmentType
	Text string
}

// wordDiffResult holds intra-line segments for a deletion/addition pair.
type wordDiffResult struct {
	OldSegments []segment
	NewSegments []segment
}

// tokenize splits a line into words, punctuation, and whitespace tokens.
// "foo.bar()" becomes ["foo", ".", "bar", "(", ")"].
func tokenize(line string) []string {
	if line == "" {
		return nil
	}

	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range line {
		switch {
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}

// computeWordDiff diffs two lines at token granularity.
func computeWordDiff(oldLine, newLine string) wordDiffResult {
	if oldLine == "" && newLine == "" {
		return wordDiffResult{}
	}
	if oldLine == "" {
		return wordDiffResult{NewSegments: []segment{{Type: segmentAdded, Text: newLine}}}
	}
	if newLine == "" {
		return wordDiffResult{OldSegments: []segment{{Type: segmentDeleted, Text: oldLine}}}
	}

	// NUL-join tokens so the character diff operates on token boundaries
	oldText := strings.Join(tokenize(oldLine), "\x00")
	newText := strings.Join(tokenize(newLine), "\x00")

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var result wordDiffResult
	for _, d := range diffs {
		text := strings.ReplaceAll(d.Text, "\x00", "")
		if text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			result.OldSegments = append(result.OldSegments, segment{Type: segmentUnchanged, Text: text})
			result.NewSegments = append(result.NewSegments, segment{Type: segmentUnchanged, Text: text})
		case diffmatchpatch.DiffDelete:
			result.OldSegments = append(result.OldSegments, segment{Type: segmentDeleted, Text: text})
		case diffmatchpatch.DiffInsert:
			result.NewSegments = append(result.NewSegments, segment{Type: segmentAdded, Text: text})
		}
	}

	return result
}

// computeHunkWordDiff finds adjacent deletion/addition pairs in a hunk and
// computes intra-line diffs for them. The map is keyed by line index.
func computeHunkWordDiff(h Hunk) map[int]wordDiffResult {
	results := make(map[int]wordDiffResult)
	pairs := 0

	for i := 0; i < len(h.Lines)-1 && pairs < wordDiffMaxPairs; i++ {
		if h.Lines[i].Type != LineDeletion || h.Lines[i+1].Type != LineAddition {
			continue
		}
		del, add := h.Lines[i], h.Lines[i+1]
		if len(del.Content) > wordDiffMaxLineLength || len(add.Content) > wordDiffMaxLineLength {
			i++
			continue
		}

		wd := computeWordDiff(del.Content, add.Content)
		results[i] = wd
		results[i+1] = wd
		pairs++
		i++
	}

	return results
}

package diffview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	require.Nil(t, tokenize(""))
	require.Equal(t, []string{"foo"}, tokenize("foo"))
	require.Equal(t, []string{"foo", ".", "bar", "(", ")"}, tokenize("foo.bar()"))
	require.Equal(t, []string{"a", " ", "b"}, tokenize("a b"))
}

func joinSegments(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestComputeWordDiff_RoundTrips(t *testing.T) {
	wd := computeWordDiff("count := limit + 1", "count := limit - 1")
	require.Equal(t, "count := limit + 1", joinSegments(wd.OldSegments))
	require.Equal(t, "count := limit - 1", joinSegments(wd.NewSegments))
}

func TestComputeWordDiff_MarksChangedToken(t *testing.T) {
	wd := computeWordDiff("return foo", "return bar")

	var deleted, added string
	for _, s := range wd.OldSegments {
		if s.Type == segmentDeleted {
			deleted += s.Text
		}
	}
	for _, s := range wd.NewSegments {
		if s.Type == segmentAdded {
			added += s.Text
		}
	}
	require.Contains(t, deleted, "foo")
	require.Contains(t, added, "bar")
	require.NotContains(t, deleted, "return")
}

func TestComputeWordDiff_EmptyLines(t *testing.T) {
	wd := computeWordDiff("", "")
	require.Empty(t, wd.OldSegments)
	require.Empty(t, wd.NewSegments)

	wd = computeWordDiff("", "added line")
	require.Len(t, wd.NewSegments, 1)
	require.Equal(t, segmentAdded, wd.NewSegments[0].Type)

	wd = computeWordDiff("removed line", "")
	require.Len(t, wd.OldSegments, 1)
	require.Equal(t, segmentDeleted, wd.OldSegments[0].Type)
}

func TestComputeHunkWordDiff_PairsAdjacent(t *testing.T) {
	h := Hunk{Lines: []Line{
		{Type: LineHunkHeader},
		{Type: LineContext, Content: "unchanged"},
		{Type: LineDeletion, Content: "old value"},
		{Type: LineAddition, Content: "new value"},
	}}

	results := computeHunkWordDiff(h)
	require.Contains(t, results, 2)
	require.Contains(t, results, 3)
	require.NotContains(t, results, 1)
}

func TestComputeHunkWordDiff_NoPairs(t *testing.T) {
	h := Hunk{Lines: []Line{
		{Type: LineAddition, Content: "only addition"},
		{Type: LineContext, Content: "ctx"},
		{Type: LineDeletion, Content: "only deletion"},
	}}
	require.Empty(t, computeHunkWordDiff(h))
}

func TestComputeHunkWordDiff_SkipsLongLines(t *testing.T) {
	long := strings.Repeat("x", wordDiffMaxLineLength+1)
	h := Hunk{Lines: []Line{
		{Type: LineDeletion, Content: long},
		{Type: LineAddition, Content: "short"},
	}}
	require.Empty(t, computeHunkWordDiff(h))
}

package textwidth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGraphemeCount(t *testing.T) {
	require.Equal(t, 5, GraphemeCount("hello"))
	require.Equal(t, 0, GraphemeCount(""))
	// ZWJ family emoji is one grapheme despite many code points
	require.Equal(t, 1, GraphemeCount("👨‍👩‍👧‍👦"))
}

func TestStringWidth(t *testing.T) {
	require.Equal(t, 5, StringWidth("hello"))
	require.Equal(t, 4, StringWidth("日本"))
}

func TestTruncate_ASCII(t *testing.T) {
	require.Equal(t, "hel", Truncate("hello", 3))
	require.Equal(t, "hello", Truncate("hello", 10))
	require.Equal(t, "", Truncate("hello", 0))
}

func TestTruncate_WideCharsNotSplit(t *testing.T) {
	// Each CJK char is 2 cells; a 3-cell budget fits only one.
	require.Equal(t, "日", Truncate("日本語", 3))
	require.Equal(t, "日本", Truncate("日本語", 4))
}

func TestTruncate_GraphemeClusterIntact(t *testing.T) {
	s := "a👨‍👩‍👧‍👦b"
	// Budget of 2 fits "a" but not the full emoji cluster.
	require.Equal(t, "a", Truncate(s, 2))
}

func TestTruncateWithTail(t *testing.T) {
	require.Equal(t, "hello", TruncateWithTail("hello", 5, "…"))
	require.Equal(t, "hell…", TruncateWithTail("hello world", 5, "…"))
	require.Equal(t, 5, StringWidth(TruncateWithTail("hello world", 5, "…")))
}

func TestTruncateWithTail_TinyWidth(t *testing.T) {
	require.Equal(t, "…", TruncateWithTail("hello", 1, "…"))
}

func TestPad(t *testing.T) {
	require.Equal(t, "ab   ", Pad("ab", 5))
	require.Equal(t, "abc", Pad("abcdef", 3))
	require.Equal(t, 5, StringWidth(Pad("日本語", 5)))
}

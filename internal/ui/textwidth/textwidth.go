// Package textwidth provides grapheme-aware width measurement and
// truncation for terminal display.
//
// Widths are measured in terminal cells (ASCII = 1, emoji and CJK = 2)
// while truncation boundaries respect grapheme clusters, so multi-rune
// sequences like combining accents or ZWJ emoji are never split.
package textwidth

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// GraphemeCount returns the number of grapheme clusters in a string.
func GraphemeCount(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// StringWidth returns the display width of a string in terminal cells.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate shortens a string to fit within maxWidth display cells,
// never splitting a grapheme cluster.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if StringWidth(s) <= maxWidth {
		return s
	}

	var result strings.Builder
	currentWidth := 0
	state := -1
	for len(s) > 0 {
		cluster, rest, _, newState := uniseg.StepString(s, state)
		clusterWidth := runewidth.StringWidth(cluster)
		if currentWidth+clusterWidth > maxWidth {
			break
		}
		result.WriteString(cluster)
		currentWidth += clusterWidth
		s = rest
		state = newState
	}
	return result.String()
}

// TruncateWithTail truncates to maxWidth cells, appending tail (typically
// "…") when truncation occurs. The tail counts against maxWidth.
func TruncateWithTail(s string, maxWidth int, tail string) string {
	if StringWidth(s) <= maxWidth {
		return s
	}
	tailWidth := StringWidth(tail)
	if maxWidth <= tailWidth {
		return Truncate(tail, maxWidth)
	}
	return Truncate(s, maxWidth-tailWidth) + tail
}

// Pad right-pads a string with spaces to exactly width display cells,
// truncating first when the string is too long.
func Pad(s string, width int) string {
	s = Truncate(s, width)
	gap := width - StringWidth(s)
	if gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s
}

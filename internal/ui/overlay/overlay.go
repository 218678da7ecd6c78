// Package overlay composites modal content over a background view without
// clearing the screen, preserving ANSI styling in both layers.
package overlay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Position anchors the overlay within the viewport.
type Position int

const (
	// Center places the overlay in the middle of the viewport.
	Center Position = iota
	// Top places the overlay at the top, horizontally centered.
	Top
	// Bottom places the overlay at the bottom, horizontally centered.
	Bottom
)

// Config controls overlay placement.
type Config struct {
	// Width and Height are the viewport dimensions.
	Width  int
	Height int
	// Position anchors the overlay.
	Position Position
	// PadY insets Top/Bottom placements from the edge.
	PadY int
}

// Place splices fg into bg line by line at the anchored position.
// Splitting the background at display-cell boundaries keeps escape
// sequences on either side of the overlay intact.
func Place(cfg Config, fg, bg string) string {
	fgLines := strings.Split(fg, "\n")
	bgLines := strings.Split(bg, "\n")

	for len(bgLines) < cfg.Height {
		bgLines = append(bgLines, strings.Repeat(" ", cfg.Width))
	}

	startX, startY := anchor(cfg, lipgloss.Width(fg), len(fgLines))

	for i, fgLine := range fgLines {
		row := startY + i
		if row >= len(bgLines) {
			break
		}

		bgLine := bgLines[row]

		left := ansi.Truncate(bgLine, startX, "")
		if w := ansi.StringWidth(left); w < startX {
			left += strings.Repeat(" ", startX-w)
		}

		var right string
		endX := startX + ansi.StringWidth(fgLine)
		if endX < ansi.StringWidth(bgLine) {
			right = ansi.TruncateLeft(bgLine, endX, "")
		}

		bgLines[row] = left + fgLine + right
	}

	return strings.Join(bgLines, "\n")
}

// anchor returns the top-left cell of the overlay, clamped to the viewport.
func anchor(cfg Config, fgWidth, fgHeight int) (x, y int) {
	x = (cfg.Width - fgWidth) / 2
	switch cfg.Position {
	case Top:
		y = cfg.PadY
	case Bottom:
		y = cfg.Height - fgHeight - cfg.PadY
	default:
		y = (cfg.Height - fgHeight) / 2
	}

	return max(x, 0), max(y, 0)
}

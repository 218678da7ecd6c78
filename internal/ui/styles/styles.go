// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Semantic color names - Text hierarchy
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#CCCCCC"} // Main/primary text
	TextSecondaryColor   = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#BBBBBB"} // Session ids, secondary info
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"} // Hints, help text, footers
	TextPlaceholderColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#777777"} // Input placeholders

	// Semantic color names - Border
	BorderDefaultColor        = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"} // Unfocused borders
	BorderHighlightFocusColor = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Semantic color names - Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Success states
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"} // Warnings
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"} // Errors

	// Selection indicator color (used for ">" prefix in the session picker)
	SelectionIndicatorColor = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
	SelectionIndicatorStyle = lipgloss.NewStyle().Bold(true).Foreground(SelectionIndicatorColor)

	// Overlay colors
	OverlayTitleColor  = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#C9C9C9"}
	OverlayBorderColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#8C8C8C"}

	// Status bar colors
	StatusBarBgColor   = lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#1F1F1F"}
	StatusBarTextColor = lipgloss.AdaptiveColor{Light: "#444444", Dark: "#AAAAAA"}
	StatusBarCostColor = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#F9E2AF"}

	// Diff colors
	DiffAddColor    = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	DiffRemoveColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	DiffHunkColor   = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}

	// Common styles
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(OverlayTitleColor)
	MutedStyle  = lipgloss.NewStyle().Foreground(TextMutedColor)
	ErrorStyle  = lipgloss.NewStyle().Foreground(StatusErrorColor)
	WarnStyle   = lipgloss.NewStyle().Foreground(StatusWarningColor)
	SuccessText = lipgloss.NewStyle().Foreground(StatusSuccessColor)

	OverlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(OverlayBorderColor).
			Padding(0, 1)

	FocusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(BorderHighlightFocusColor)

	StatusBarStyle = lipgloss.NewStyle().
			Background(StatusBarBgColor).
			Foreground(StatusBarTextColor).
			Padding(0, 1)
)

package ui

import "github.com/charmbracelet/lipgloss"

// Colors.
var (
	normalDim = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	yellow    = lipgloss.AdaptiveColor{Light: "#E8A000", Dark: "#ECFD65"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
)

var (
	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})

	dimStyle = lipgloss.NewStyle().Foreground(normalDim)

	selectedStyle = lipgloss.NewStyle().
			Foreground(fuchsia).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(fuchsia).
			PaddingLeft(1)

	unselectedStyle = lipgloss.NewStyle().PaddingLeft(2)

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true)
)

func logoView() string {
	return logoStyle.Render(" Read Aloud ")
}

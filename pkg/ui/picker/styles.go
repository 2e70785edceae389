package picker

import "github.com/charmbracelet/lipgloss"

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonYellow  = lipgloss.Color("#FFFF00")
	darkBg      = lipgloss.Color("#0A0E27")
	dimWhite    = lipgloss.Color("#B0B0B0")

	docStyle = lipgloss.NewStyle().
			Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(darkBg).
			Background(neonCyan).
			Bold(true).
			Padding(0, 1)

	sizeStyle = lipgloss.NewStyle().
			Foreground(neonYellow)

	hintStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Faint(true)

	selectedBorder = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(neonMagenta).
			Foreground(neonMagenta).
			Padding(0, 0, 0, 1)
)

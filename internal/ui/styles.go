package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF5555")
	ColorGreen   = lipgloss.Color("#50FA7B")
	ColorYellow  = lipgloss.Color("#F1FA8C")
	ColorOrange  = lipgloss.Color("#FFB86C")
	ColorCyan    = lipgloss.Color("#8BE9FD")
	ColorPurple  = lipgloss.Color("#BD93F9")
	ColorGray    = lipgloss.Color("#6272A4")
	ColorDimGray = lipgloss.Color("#44475A")
	ColorWhite   = lipgloss.Color("#F8F8F2")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPurple)

	GoalStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	PersonalityStyle = lipgloss.NewStyle().
				Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	RecordingDotStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	AnalyzingStyle = lipgloss.NewStyle().
			Foreground(ColorPurple).
			Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	InterimTextStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	PanelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	PinStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	LevelGreenStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	LevelYellowStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	LevelRedStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	LevelGrayStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	LiveBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	ScrollBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	ScoreHighStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	ScoreMidStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	ScoreLowStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)
)

// ScoreStyle picks the color band for a 0-100 score.
func ScoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 80:
		return ScoreHighStyle
	case score >= 60:
		return ScoreMidStyle
	default:
		return ScoreLowStyle
	}
}

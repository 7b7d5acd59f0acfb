package tui

import "github.com/charmbracelet/lipgloss"

const (
	textFGColor   = "#c0c0c0"
	dimFGColor    = "#8a8a8a"
	barBGColor    = "#2b2b2b"
	pillBGColor   = "#ff9f1c"
	pillFGColor   = "#000000"
	highlightMark = "★"
)

var (
	appStyle   = lipgloss.NewStyle().Margin(1, 2)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e0e0e0"))
	descStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(dimFGColor)).Italic(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(textFGColor))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(dimFGColor))
	inputStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1)

	footerStyle = lipgloss.NewStyle().Background(lipgloss.Color(barBGColor)).Foreground(lipgloss.Color(textFGColor))
	pillStyle   = lipgloss.NewStyle().Background(lipgloss.Color(pillBGColor)).Foreground(lipgloss.Color(pillFGColor)).Padding(0, 1).Bold(true)
	legendStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#b0b0b0"))

	noticeStyles = map[string]lipgloss.Style{
		noticeInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")),
		noticeWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		noticeError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

// Colors are the bar colors, as hex strings.
type Colors struct {
	Cases  string
	Deaths string
	Heat   string
}

func barStyle(hex string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
}

package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workboard/internal/theme"
)

// Layout holds the terminal dimensions of the board frame.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height available between header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// ColumnWidth splits the width evenly over n columns, borders included.
func (l Layout) ColumnWidth(n int) int {
	if n <= 0 {
		return l.Width
	}
	return max(l.Width/n-2, 10)
}

// RenderHeader renders the top bar with a title on the left and a status
// on the right.
func (l Layout) RenderHeader(title, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.Align(lipgloss.Right).Render(status)

	return l.fill(theme.HeaderStyle, titleRendered, statusRendered)
}

// RenderStatusBar renders the bottom bar. An error replaces the hints.
func (l Layout) RenderStatusBar(hints string, err error) string {
	style := theme.StatusBarStyle
	text := hints
	if err != nil {
		style = theme.ErrorBarStyle
		text = err.Error()
	}
	return l.fill(style, style.Render(text), "")
}

// RenderWithFrame vertically joins header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (l Layout) fill(style lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := style.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(style.GetBackground()).
			Render(""),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

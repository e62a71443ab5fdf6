// Package help renders the board's key bindings and column legend.
package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workboard/internal/kanban"
	"github.com/nhle/workboard/internal/keys"
	"github.com/nhle/workboard/internal/theme"
)

type section struct {
	title    string
	bindings []key.Binding
}

// Model shows a one-line hint in the status bar and a full overlay with
// one section per group of bindings, followed by the board's columns.
type Model struct {
	keys    *keys.KeyMap
	footer  help.Model
	columns []kanban.Column
	width   int
	height  int
}

func New(k *keys.KeyMap, width, height int) Model {
	footer := help.New()
	footer.Width = width
	return Model{keys: k, footer: footer, width: width, height: height}
}

// SetColumns sets the legend shown under the bindings.
func (m *Model) SetColumns(cols []kanban.Column) {
	m.columns = cols
}

func (m Model) Short() string {
	return m.footer.ShortHelpView(m.keys.ShortHelp())
}

func (m Model) sections() []section {
	k := m.keys
	return []section{
		{"Navigate", []key.Binding{k.Up, k.Down, k.Left, k.Right}},
		{"Move card", []key.Binding{k.MoveLeft, k.MoveRight, k.MoveUp, k.MoveDown}},
		{"Task", []key.Binding{k.Select, k.Toggle, k.Back}},
		{"Project", []key.Binding{k.CloseProject, k.Refresh}},
		{"General", []key.Binding{k.Help, k.Quit}},
	}
}

func (m Model) View() string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	keyStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue).Width(10)
	descStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var b strings.Builder
	b.WriteString(heading.MarginBottom(1).Render("Board shortcuts"))
	b.WriteString("\n")
	for _, s := range m.sections() {
		b.WriteString(heading.Render(s.title))
		b.WriteString("\n")
		for _, bind := range s.bindings {
			if !bind.Enabled() {
				continue
			}
			h := bind.Help()
			b.WriteString("  " + keyStyle.Render(h.Key) + descStyle.Render(h.Desc) + "\n")
		}
		b.WriteString("\n")
	}

	if len(m.columns) > 0 {
		b.WriteString(heading.Render("Columns"))
		b.WriteString("\n  ")
		names := make([]string, 0, len(m.columns))
		for _, c := range m.columns {
			names = append(names, theme.StatusStyle(c.Status).Render(c.Title))
		}
		b.WriteString(strings.Join(names, "→"))
		b.WriteString("\n")
		b.WriteString(descStyle.Render("  Dropping a card on a column sets its status. Closing the project completes every open card."))
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(b.String())
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.footer.Width = width - 4
}

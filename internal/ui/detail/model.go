package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workboard/internal/keys"
	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/theme"
)

// BackMsg signals the parent to return to the board.
type BackMsg struct{}

// ToggleItemMsg asks the parent to set a checklist item.
type ToggleItemMsg struct {
	TaskID    string
	ItemID    string
	Completed bool
}

// Model is the task detail panel with a selectable checklist.
type Model struct {
	task     *model.Task
	pending  bool
	cursor   int
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.task != nil {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.task.Checklist)-1 {
				m.cursor++
				m.refresh()
			}
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.refresh()
			}
			return m, nil

		case key.Matches(msg, m.keys.Toggle):
			if len(m.task.Checklist) == 0 {
				return m, nil
			}
			item := m.task.Checklist[m.cursor]
			toggle := ToggleItemMsg{
				TaskID:    m.task.ID,
				ItemID:    item.ID,
				Completed: !item.Completed,
			}
			return m, func() tea.Msg { return toggle }
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail panel.
func (m Model) View() string {
	if m.task == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No task selected")
	}
	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(m.viewport.View())
}

// TaskID returns the id of the displayed task, or "".
func (m Model) TaskID() string {
	if m.task == nil {
		return ""
	}
	return m.task.ID
}

// SetTask replaces the displayed snapshot, keeping the checklist cursor.
func (m *Model) SetTask(t model.Task, pending bool) {
	if m.task == nil || m.task.ID != t.ID {
		m.cursor = 0
		m.viewport.GotoTop()
	}
	m.task = &t
	m.pending = pending
	if m.cursor >= len(t.Checklist) {
		m.cursor = max(len(t.Checklist)-1, 0)
	}
	m.refresh()
}

// Clear hides the panel.
func (m *Model) Clear() {
	m.task = nil
	m.cursor = 0
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 8
	m.viewport.Height = height - 4
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderContent())
}

// renderContent builds the content string for the viewport.
func (m Model) renderContent() string {
	if m.task == nil {
		return ""
	}
	task := m.task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(task.Title))

	badges := []string{
		theme.StatusStyle(task.Status).Render(task.Status.Label()),
		theme.PriorityStyle(task.Priority).Render(string(task.Priority)),
	}
	if m.pending {
		badges = append(badges, theme.PendingStyle.Render("saving…"))
	}
	sections = append(sections, strings.Join(badges, "  "), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	meta := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%s  %s",
			metaStyle.Render(fmt.Sprintf("%-10s", label+":")), valStyle.Render(value)))
	}
	if task.AssigneeID != nil {
		meta("Assignee", *task.AssigneeID)
	}
	if task.DueDate != nil {
		meta("Due", task.DueDate.Format("2006-01-02"))
	}
	meta("Created", task.CreatedAt.Format("2006-01-02 15:04"))
	if task.ConcludedAt != nil {
		meta("Concluded", task.ConcludedAt.Format("2006-01-02 15:04"))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-10, 80), 1)))
	sections = append(sections, "", separator, "")

	body := task.Description
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	if len(task.Checklist) > 0 {
		done, total := task.ChecklistProgress()
		headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
		sections = append(sections, "", separator, "",
			headerStyle.Render(fmt.Sprintf("Checklist (%d/%d)", done, total)))
		for i, item := range task.Checklist {
			box := "[ ]"
			if item.Completed {
				box = "[x]"
			}
			line := box + " " + item.Text
			if i == m.cursor {
				line = theme.SelectedCardStyle.Render(line)
			} else {
				line = theme.CardStyle.Render(line)
			}
			sections = append(sections, line)
		}
	}

	if len(task.Attachments) > 0 {
		sections = append(sections, "", separator, "")
		for _, a := range task.Attachments {
			meta("Attached", a.Name)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

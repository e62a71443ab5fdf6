package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workboard/internal/kanban"
	"github.com/nhle/workboard/internal/keys"
	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
	appsync "github.com/nhle/workboard/internal/sync"
	"github.com/nhle/workboard/internal/theme"
	"github.com/nhle/workboard/internal/ui"
	"github.com/nhle/workboard/internal/ui/detail"
	helpview "github.com/nhle/workboard/internal/ui/help"
)

// loadedMsg carries the project and its tasks after a (re)load.
type loadedMsg struct {
	project model.Project
	tasks   []model.Task
	err     error
}

// dropResultMsg is sent after a card move resolves.
type dropResultMsg struct {
	intent kanban.Intent
	err    error
}

// mutationResultMsg is sent after a checklist toggle or project change.
type mutationResultMsg struct {
	op  string
	err error
}

// Model is the Bubble Tea model of a project board.
type Model struct {
	projectID string
	actor     string
	project   model.Project

	cache *appsync.Cache
	board *kanban.Board
	sub   *appsync.Subscription

	keys   *keys.KeyMap
	layout ui.Layout
	detail detail.Model
	help   helpview.Model

	col, row     int
	showDetail   bool
	showHelp     bool
	confirmClose bool
	ready        bool
	err          error
	notice       string
}

// New creates a board model for projectID. Writes are attributed to actor.
func New(cache *appsync.Cache, board *kanban.Board, projectID, actor string) Model {
	k := keys.DefaultKeyMap()
	h := helpview.New(k, 80, 22)
	h.SetColumns(board.Columns())
	return Model{
		projectID: projectID,
		actor:     actor,
		cache:     cache,
		board:     board,
		sub:       cache.Subscribe(),
		keys:      k,
		layout:    ui.NewLayout(80, 24),
		detail:    detail.New(k, 80, 22),
		help:      h,
	}
}

// Init loads the board and starts listening for cache changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), appsync.WaitForChange(m.sub))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.detail.SetSize(msg.Width, m.layout.ContentHeight())
		m.help.SetSize(msg.Width, m.layout.ContentHeight())
		m.ready = true
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.project = msg.project
		m.board.Rebuild(msg.tasks)
		m.clampCursor()
		return m, nil

	case appsync.ChangeMsg:
		m.applyChange(msg.Change)
		return m, appsync.WaitForChange(m.sub)

	case dropResultMsg:
		m.err = msg.err
		switch msg.intent.Kind {
		case kanban.IntentReject:
			m.notice = msg.intent.Reason
		case kanban.IntentStatusEdit:
			if msg.err == nil {
				m.notice = fmt.Sprintf("moved to %s", msg.intent.Status.Label())
				m.followCard(msg.intent.TaskID)
			}
		}
		return m, nil

	case mutationResultMsg:
		m.err = msg.err
		if msg.err == nil {
			m.notice = msg.op
		}
		return m, nil

	case detail.BackMsg:
		m.showDetail = false
		m.detail.Clear()
		return m, nil

	case detail.ToggleItemMsg:
		return m, m.toggleItem(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cache.Unsubscribe(m.sub)
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		if key.Matches(msg, m.keys.Back) {
			m.showHelp = false
		}
		return m, nil
	}
	if m.showDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	closing := m.confirmClose
	m.confirmClose = false
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Left):
		m.col = max(m.col-1, 0)
		m.clampCursor()
	case key.Matches(msg, m.keys.Right):
		m.col = min(m.col+1, len(m.board.Columns())-1)
		m.clampCursor()
	case key.Matches(msg, m.keys.Up):
		m.row = max(m.row-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.row++
		m.clampCursor()
	case key.Matches(msg, m.keys.MoveLeft):
		return m, m.move(-1)
	case key.Matches(msg, m.keys.MoveRight):
		return m, m.move(+1)
	case key.Matches(msg, m.keys.MoveUp):
		m.shift(-1)
	case key.Matches(msg, m.keys.MoveDown):
		m.shift(+1)
	case key.Matches(msg, m.keys.Select):
		if t, ok := m.selected(); ok {
			m.showDetail = true
			m.detail.SetTask(t, m.cache.Pending(appsync.TaskKey(t.ID)))
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.load()
	case key.Matches(msg, m.keys.CloseProject):
		if m.project.Status.IsTerminal() {
			m.notice = "project already closed"
			return m, nil
		}
		if !closing {
			m.confirmClose = true
			open := lifecycle.OpenTaskCount(m.cache.TasksOfProject(m.projectID))
			m.notice = fmt.Sprintf("press D again to close the project (%d open tasks will be completed)", open)
			return m, nil
		}
		return m, m.closeProject()
	}
	return m, nil
}

// View renders the board.
func (m Model) View() string {
	if !m.ready {
		return "Loading board..."
	}

	header := m.layout.RenderHeader(
		"workboard · "+m.project.Name,
		theme.ProjectStatusStyle(m.project.Status).Render(string(m.project.Status)),
	)

	var content string
	switch {
	case m.showHelp:
		content = m.help.View()
	case m.showDetail:
		content = m.detail.View()
	default:
		content = m.renderColumns()
	}

	hints := m.help.Short()
	if m.notice != "" {
		hints = m.notice
	}
	return m.layout.RenderWithFrame(header, content, m.layout.RenderStatusBar(hints, m.err))
}

func (m Model) renderColumns() string {
	cols := m.board.Columns()
	width := m.layout.ColumnWidth(len(cols))
	rendered := make([]string, 0, len(cols))

	for ci, col := range cols {
		cards := m.board.Cards(col.ID)
		lines := []string{
			theme.StatusStyle(col.Status).Render(fmt.Sprintf("%s (%d)", col.Title, len(cards))),
			"",
		}
		for ri, t := range cards {
			lines = append(lines, m.renderCard(t, ci == m.col && ri == m.row, width-4))
		}
		style := theme.ColumnStyle
		if ci == m.col {
			style = theme.FocusedColumnStyle
		}
		rendered = append(rendered, style.
			Width(width).
			Height(max(m.layout.ContentHeight()-2, 1)).
			Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderCard(t model.Task, selected bool, width int) string {
	title := truncate(t.Title, width-2)
	if done, total := t.ChecklistProgress(); total > 0 {
		title = truncate(fmt.Sprintf("%s %d/%d", t.Title, done, total), width-2)
	}
	line := theme.PriorityStyle(t.Priority).Render("●") + " " + title

	if m.cache.Pending(appsync.TaskKey(t.ID)) {
		line = theme.PendingStyle.Render(line)
	}
	if selected {
		return theme.SelectedCardStyle.Render(line)
	}
	return theme.CardStyle.Render(line)
}

// applyChange folds a cache change into the board and detail panel.
func (m *Model) applyChange(ch appsync.Change) {
	switch {
	case ch.Reason == appsync.ReasonEvicted:
		if ch.Key.Kind == model.KindTask {
			m.board.Remove(ch.Key.ID)
		}
	case ch.Project != nil && ch.Project.ID == m.projectID:
		m.project = *ch.Project
	case ch.Task != nil && ch.Task.ProjectID == m.projectID:
		m.board.Upsert(*ch.Task)
		if m.showDetail && m.detail.TaskID() == ch.Task.ID {
			m.detail.SetTask(*ch.Task, ch.Pending)
		}
	}
	if ch.Reason == appsync.ReasonRolledBack {
		m.notice = "change rolled back"
	}
	m.clampCursor()
}

func (m Model) selected() (model.Task, bool) {
	cols := m.board.Columns()
	if m.col >= len(cols) {
		return model.Task{}, false
	}
	cards := m.board.Cards(cols[m.col].ID)
	if m.row >= len(cards) {
		return model.Task{}, false
	}
	return cards[m.row], true
}

func (m *Model) clampCursor() {
	cols := m.board.Columns()
	m.col = max(min(m.col, len(cols)-1), 0)
	if len(cols) == 0 {
		m.row = 0
		return
	}
	n := len(m.board.Cards(cols[m.col].ID))
	m.row = max(min(m.row, n-1), 0)
}

// followCard moves the cursor to wherever taskID now sits.
func (m *Model) followCard(taskID string) {
	for ci, col := range m.board.Columns() {
		for ri, t := range m.board.Cards(col.ID) {
			if t.ID == taskID {
				m.col, m.row = ci, ri
				return
			}
		}
	}
}

func (m Model) ctx() context.Context {
	return store.WithActor(context.Background(), m.actor)
}

func (m Model) load() tea.Cmd {
	cache, id, ctx := m.cache, m.projectID, m.ctx()
	return func() tea.Msg {
		p, tasks, err := cache.LoadProjectTasks(ctx, id)
		return loadedMsg{project: p, tasks: tasks, err: err}
	}
}

func (m Model) move(delta int) tea.Cmd {
	t, ok := m.selected()
	if !ok {
		return nil
	}
	b, ctx := m.board, m.ctx()
	return func() tea.Msg {
		intent, err := b.Move(ctx, t.ID, delta)
		return dropResultMsg{intent: intent, err: err}
	}
}

func (m *Model) shift(delta int) {
	t, ok := m.selected()
	if !ok {
		return
	}
	if _, err := m.board.Shift(m.ctx(), t.ID, delta); err != nil {
		m.err = err
		return
	}
	m.followCard(t.ID)
}

func (m Model) toggleItem(msg detail.ToggleItemMsg) tea.Cmd {
	cache, ctx := m.cache, m.ctx()
	return func() tea.Msg {
		_, err := cache.MutateTask(ctx, msg.TaskID, func(t model.Task) (model.Task, error) {
			out, _, err := lifecycle.ApplyChecklistToggle(t, msg.ItemID, msg.Completed, cache.Now())
			return out, err
		})
		return mutationResultMsg{op: "checklist updated", err: err}
	}
}

func (m Model) closeProject() tea.Cmd {
	cache, id, ctx := m.cache, m.projectID, m.ctx()
	return func() tea.Msg {
		_, _, err := cache.ChangeProjectStatus(ctx, id, model.ProjectStatusDone)
		return mutationResultMsg{op: "project closed", err: err}
	}
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}

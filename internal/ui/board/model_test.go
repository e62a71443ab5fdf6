package board

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workboard/internal/kanban"
	"github.com/nhle/workboard/internal/model"
	appsync "github.com/nhle/workboard/internal/sync"
	"github.com/nhle/workboard/tests/testutil"
)

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return next.(Model), cmd
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestBoardMovesCardAndClosesProject(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	clk := testutil.NewClock()
	p := testutil.SeedProject(t, s, "Launch")
	task := testutil.SeedTask(t, s, p.ID, "Ship", "build")
	testutil.SeedTask(t, s, p.ID, "Announce")

	cache := appsync.New(
		appsync.NewStoreRemote(s, testutil.NewCoordinator(s, clk)),
		appsync.WithClock(clk),
		appsync.WithLogger(testutil.DiscardLogger()),
	)
	t.Cleanup(func() { _ = cache.Close() })
	b := kanban.NewBoard(kanban.NewReconciler(kanban.DefaultColumns()), cache, clk)

	m := New(cache, b, p.ID, "alice")
	assert.Equal(t, "Loading board...", m.View())

	m = update(t, m, tea.WindowSizeMsg{Width: 160, Height: 40})
	m = update(t, m, m.load()())
	view := m.View()
	assert.Contains(t, view, "Launch")
	assert.Contains(t, view, "Ship")

	for i, c := range b.Cards("todo") {
		if c.ID == task.ID {
			m.row = i
		}
	}

	// Move the selected card one column right.
	m, cmd := press(t, m, "L")
	require.NotNil(t, cmd)
	msg := cmd()
	res, ok := msg.(dropResultMsg)
	require.True(t, ok)
	require.NoError(t, res.err)
	m = update(t, m, msg)
	assert.Equal(t, "moved to In progress", m.notice)
	assert.Equal(t, 1, m.col, "cursor follows the card")

	stored, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, stored.Status)
	activity, err := s.GetActivity(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", activity[len(activity)-1].ActorID)

	// Closing asks for confirmation first.
	m, cmd = press(t, m, "D")
	assert.Nil(t, cmd)
	assert.Contains(t, m.notice, "2 open tasks")
	m, cmd = press(t, m, "D")
	require.NotNil(t, cmd)
	m = update(t, m, cmd())
	require.NoError(t, m.err)

	project, tasks, err := s.GetProjectWithTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusDone, project.Status)
	for _, task := range tasks {
		assert.Equal(t, model.TaskStatusDone, task.Status)
	}
	cached, _ := cache.Project(p.ID)
	assert.Equal(t, model.ProjectStatusDone, cached.Status)
}

func TestBoardReportsLoadError(t *testing.T) {
	s := testutil.NewTestStore(t)
	clk := testutil.NewClock()
	cache := appsync.New(appsync.NewStoreRemote(s, testutil.NewCoordinator(s, clk)))
	t.Cleanup(func() { _ = cache.Close() })
	b := kanban.NewBoard(kanban.NewReconciler(kanban.DefaultColumns()), cache, clk)

	m := New(cache, b, "missing", "alice")
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = update(t, m, m.load()())
	assert.True(t, model.IsNotFound(m.err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

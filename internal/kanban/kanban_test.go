package kanban

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workboard/internal/clock"
	"github.com/nhle/workboard/internal/model"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeMutator struct {
	tasks map[string]model.Task
	err   error
	calls int
}

func (f *fakeMutator) MutateTask(
	ctx context.Context,
	id string,
	fn func(model.Task) (model.Task, error),
) (model.Task, error) {
	f.calls++
	if f.err != nil {
		return model.Task{}, f.err
	}
	next, err := fn(f.tasks[id])
	if err != nil {
		return model.Task{}, err
	}
	next.Version++
	f.tasks[id] = next
	return next, nil
}

func seedBoard(t *testing.T, statuses ...model.TaskStatus) (*Board, *fakeMutator, []model.Task) {
	t.Helper()
	m := &fakeMutator{tasks: make(map[string]model.Task)}
	var tasks []model.Task
	for i, s := range statuses {
		task := model.NewTask("p1", "task", epoch.Add(time.Duration(i)*time.Minute))
		task.Status = s
		if s == model.TaskStatusDone {
			task.ConcludedAt = &epoch
		}
		task.Version = 1
		m.tasks[task.ID] = task
		tasks = append(tasks, task)
	}
	b := NewBoard(NewReconciler(DefaultColumns()), m, clock.Fake(epoch))
	b.Rebuild(tasks)
	return b, m, tasks
}

func ids(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestOnDrop(t *testing.T) {
	cols := append(DefaultColumns(), Column{ID: "review", Title: "Review", Status: model.TaskStatusInProgress})
	r := NewReconciler(cols)

	in := r.OnDrop("t1", "todo", "done", 0)
	assert.Equal(t, IntentStatusEdit, in.Kind)
	assert.Equal(t, model.TaskStatusDone, in.Status)

	in = r.OnDrop("t1", "todo", "todo", 3)
	assert.Equal(t, IntentReorder, in.Kind)
	assert.Empty(t, in.Status)

	in = r.OnDrop("t1", "in_progress", "review", 0)
	assert.Equal(t, IntentReorder, in.Kind, "same status in another column is not an edit")

	in = r.OnDrop("t1", "todo", "archive", 0)
	assert.Equal(t, IntentReject, in.Kind)
	assert.NotEmpty(t, in.Reason)

	in = r.OnDrop("t1", "todo", "done", -4)
	assert.Equal(t, 0, in.Index)
}

func TestIntentKindString(t *testing.T) {
	assert.Equal(t, "status_edit", IntentStatusEdit.String())
	assert.Equal(t, "IntentKind(9)", IntentKind(9).String())
}

func TestColumnsFromConfig(t *testing.T) {
	cols, err := ColumnsFromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultColumns(), cols)

	cols, err = ColumnsFromConfig([]model.ColumnConfig{
		{ID: "backlog", Status: "todo"},
		{ID: "doing", Title: "Doing", Status: "In Progress"},
	})
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "To do", cols[0].Title)
	assert.Equal(t, model.TaskStatusInProgress, cols[1].Status)

	_, err = ColumnsFromConfig([]model.ColumnConfig{{ID: "x", Status: "review"}})
	assert.True(t, model.IsInvalidStatus(err))

	_, err = ColumnsFromConfig([]model.ColumnConfig{{ID: "a", Status: "todo"}, {ID: "a", Status: "done"}})
	assert.Error(t, err)
}

func TestRebuildPlacesByStatus(t *testing.T) {
	b, _, tasks := seedBoard(t,
		model.TaskStatusTodo, model.TaskStatusDone, model.TaskStatusTodo, model.TaskStatusCancelled)

	assert.Equal(t, []string{tasks[0].ID, tasks[2].ID}, ids(b.Cards("todo")))
	assert.Equal(t, []string{tasks[1].ID}, ids(b.Cards("done")))
	assert.Equal(t, []string{tasks[3].ID}, ids(b.Cards("cancelled")))
	assert.Empty(t, b.Cards("in_progress"))
	assert.Empty(t, b.Hidden())
}

func TestRebuildKeepsDisplayOrder(t *testing.T) {
	b, _, tasks := seedBoard(t, model.TaskStatusTodo, model.TaskStatusTodo, model.TaskStatusTodo)
	ctx := context.Background()

	_, err := b.Drop(ctx, tasks[2].ID, "todo", "todo", 0)
	require.NoError(t, err)
	b.Rebuild(tasks)

	assert.Equal(t, []string{tasks[2].ID, tasks[0].ID, tasks[1].ID}, ids(b.Cards("todo")))
}

func TestHiddenWithoutColumn(t *testing.T) {
	m := &fakeMutator{tasks: map[string]model.Task{}}
	b := NewBoard(NewReconciler([]Column{{ID: "todo", Title: "To do", Status: model.TaskStatusTodo}}), m, nil)
	task := model.NewTask("p1", "t", epoch)
	task.Status = model.TaskStatusCancelled
	b.Rebuild([]model.Task{task})

	assert.Equal(t, []string{task.ID}, ids(b.Hidden()))

	task.Status = model.TaskStatusTodo
	b.Upsert(task)
	assert.Empty(t, b.Hidden())
	assert.Equal(t, []string{task.ID}, ids(b.Cards("todo")))
}

func TestDropStatusEdit(t *testing.T) {
	b, m, tasks := seedBoard(t, model.TaskStatusTodo, model.TaskStatusTodo)
	ctx := context.Background()

	in, err := b.Drop(ctx, tasks[0].ID, "todo", "done", 0)
	require.NoError(t, err)
	assert.Equal(t, IntentStatusEdit, in.Kind)
	assert.Equal(t, 1, m.calls)

	done := b.Cards("done")
	require.Len(t, done, 1)
	assert.Equal(t, model.TaskStatusDone, done[0].Status)
	require.NotNil(t, done[0].ConcludedAt)
	assert.True(t, done[0].ConcludedAt.Equal(epoch))
	assert.Equal(t, []string{tasks[1].ID}, ids(b.Cards("todo")))
}

func TestDropFailureReturnsCard(t *testing.T) {
	b, m, tasks := seedBoard(t, model.TaskStatusTodo, model.TaskStatusTodo, model.TaskStatusTodo)
	m.err = &model.UnavailableError{Op: "save", Err: errors.New("down")}

	_, err := b.Drop(context.Background(), tasks[1].ID, "todo", "in_progress", 0)
	require.Error(t, err)
	assert.True(t, model.IsUnavailable(err))

	assert.Equal(t, ids(tasks), ids(b.Cards("todo")), "card is back at its original position")
	assert.Empty(t, b.Cards("in_progress"))
	assert.Equal(t, model.TaskStatusTodo, b.Cards("todo")[1].Status)
}

func TestDropRejectedLeavesBoard(t *testing.T) {
	b, m, tasks := seedBoard(t, model.TaskStatusTodo)

	in, err := b.Drop(context.Background(), tasks[0].ID, "todo", "trash", 0)
	require.NoError(t, err)
	assert.Equal(t, IntentReject, in.Kind)
	assert.Equal(t, 0, m.calls)
	assert.Equal(t, ids(tasks), ids(b.Cards("todo")))
}

func TestDropReorderIsDisplayOnly(t *testing.T) {
	b, m, tasks := seedBoard(t, model.TaskStatusTodo, model.TaskStatusTodo)
	ctx := context.Background()

	in, err := b.Drop(ctx, tasks[0].ID, "todo", "todo", 1)
	require.NoError(t, err)
	assert.Equal(t, IntentReorder, in.Kind)
	assert.Equal(t, 0, m.calls)
	assert.Equal(t, []string{tasks[1].ID, tasks[0].ID}, ids(b.Cards("todo")))

	in, err = b.Drop(ctx, tasks[0].ID, "todo", "todo", 1)
	require.NoError(t, err)
	assert.Equal(t, IntentNone, in.Kind)
}

func TestDropUnknownCard(t *testing.T) {
	b, _, _ := seedBoard(t, model.TaskStatusTodo)
	_, err := b.Drop(context.Background(), "ghost", "todo", "done", 0)
	assert.True(t, model.IsNotFound(err))
}

func TestMoveAndShift(t *testing.T) {
	b, m, tasks := seedBoard(t, model.TaskStatusTodo, model.TaskStatusTodo)
	ctx := context.Background()

	in, err := b.Move(ctx, tasks[0].ID, -1)
	require.NoError(t, err)
	assert.Equal(t, IntentNone, in.Kind, "no column left of the first")

	in, err = b.Move(ctx, tasks[0].ID, +1)
	require.NoError(t, err)
	assert.Equal(t, IntentStatusEdit, in.Kind)
	assert.Equal(t, model.TaskStatusInProgress, m.tasks[tasks[0].ID].Status)

	in, err = b.Shift(ctx, tasks[1].ID, -1)
	require.NoError(t, err)
	assert.Equal(t, IntentNone, in.Kind, "already at the top")

	_, err = b.Move(ctx, "ghost", 1)
	assert.True(t, model.IsNotFound(err))
}

func TestUpsertKeepsPosition(t *testing.T) {
	b, _, tasks := seedBoard(t, model.TaskStatusTodo, model.TaskStatusTodo)

	edited := tasks[0]
	edited.Title = "renamed"
	b.Upsert(edited)
	cards := b.Cards("todo")
	assert.Equal(t, ids(tasks), ids(cards))
	assert.Equal(t, "renamed", cards[0].Title)

	edited.Status = model.TaskStatusInProgress
	b.Upsert(edited)
	assert.Equal(t, []string{tasks[1].ID}, ids(b.Cards("todo")))
	assert.Equal(t, []string{tasks[0].ID}, ids(b.Cards("in_progress")))

	b.Remove(tasks[0].ID)
	assert.Empty(t, b.Cards("in_progress"))
}

package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workboard/internal/model"
)

var (
	t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

func taskWithItems(texts ...string) model.Task {
	task := model.NewTask("p1", "task", t0)
	for _, text := range texts {
		task, _, _ = AddChecklistItem(task, text, t0)
	}
	return task
}

func requireConsistent(t *testing.T, task model.Task) {
	t.Helper()
	require.NoError(t, CheckInvariants(task))
	require.NoError(t, task.Validate())
}

func TestChecklistToggleScenario(t *testing.T) {
	task := taskWithItems("A", "B")
	a, b := task.Checklist[0].ID, task.Checklist[1].ID

	task, status, err := ApplyChecklistToggle(task, a, true, t0)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusTodo, status, "partial completion leaves status alone")
	assert.Nil(t, task.ConcludedAt)
	requireConsistent(t, task)

	task, status, err = ApplyChecklistToggle(task, b, true, t1)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusDone, status)
	require.NotNil(t, task.ConcludedAt)
	assert.True(t, task.ConcludedAt.Equal(t1))
	requireConsistent(t, task)

	task, status, err = ApplyChecklistToggle(task, a, false, t2)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, status)
	assert.Nil(t, task.ConcludedAt)
	requireConsistent(t, task)
}

func TestChecklistToggleUnknownItem(t *testing.T) {
	task := taskWithItems("A")
	_, _, err := ApplyChecklistToggle(task, "missing", true, t0)
	assert.True(t, model.IsNotFound(err))
}

func TestChecklistToggleDoesNotModifyInput(t *testing.T) {
	task := taskWithItems("A")
	_, _, err := ApplyChecklistToggle(task, task.Checklist[0].ID, true, t0)
	require.NoError(t, err)
	assert.False(t, task.Checklist[0].Completed)
	assert.Equal(t, model.TaskStatusTodo, task.Status)
}

func TestStatusEditToDoneCompletesChecklist(t *testing.T) {
	task := taskWithItems("A", "B", "C")

	done, err := ApplyStatusEdit(task, model.TaskStatusDone, t1)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusDone, done.Status)
	require.NotNil(t, done.ConcludedAt)
	assert.True(t, done.ConcludedAt.Equal(t1))
	assert.True(t, done.ChecklistComplete())
	requireConsistent(t, done)
}

func TestStatusEditAwayFromDoneClearsTimestamp(t *testing.T) {
	task := taskWithItems("A")
	done, err := ApplyStatusEdit(task, model.TaskStatusDone, t1)
	require.NoError(t, err)

	for _, s := range []model.TaskStatus{model.TaskStatusTodo, model.TaskStatusInProgress, model.TaskStatusCancelled} {
		out, err := ApplyStatusEdit(done, s, t2)
		require.NoError(t, err)
		assert.Equal(t, s, out.Status)
		assert.Nil(t, out.ConcludedAt, s)
		assert.True(t, out.ChecklistComplete(), "items stay checked after %s", s)
		requireConsistent(t, out)
	}
}

func TestStatusEditAwayFromDoneLeavesCheckedItemsUntilNextToggle(t *testing.T) {
	task := taskWithItems("A")
	done, err := ApplyStatusEdit(task, model.TaskStatusDone, t1)
	require.NoError(t, err)

	moved, err := ApplyStatusEdit(done, model.TaskStatusInProgress, t2)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, moved.Status)
	assert.True(t, moved.ChecklistComplete())
	assert.NoError(t, CheckInvariants(moved))

	itemID := moved.Checklist[0].ID
	reopened, status, err := ApplyChecklistToggle(moved, itemID, false, t2)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, status)

	concluded, status, err := ApplyChecklistToggle(reopened, itemID, true, t2)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusDone, status)
	assert.True(t, concluded.ConcludedAt.Equal(t2))
}

func TestStatusEditDoneKeepsOriginalConclusion(t *testing.T) {
	done, err := ApplyStatusEdit(taskWithItems(), model.TaskStatusDone, t1)
	require.NoError(t, err)

	again, err := ApplyStatusEdit(done, model.TaskStatusDone, t2)
	require.NoError(t, err)
	assert.True(t, again.ConcludedAt.Equal(t1))
}

func TestStatusEditRejectsInvalid(t *testing.T) {
	_, err := ApplyStatusEdit(taskWithItems(), model.TaskStatus("blocked"), t0)
	assert.True(t, model.IsInvalidStatus(err))
}

func TestEmptyChecklistNeverDerivesStatus(t *testing.T) {
	task := taskWithItems()
	task.Status = model.TaskStatusInProgress

	task, _, err := AddChecklistItem(task, "only", t0)
	require.NoError(t, err)
	out, err := RemoveChecklistItem(task, task.Checklist[0].ID, t1)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, out.Status)
	assert.Empty(t, out.Checklist)
}

func TestAddItemReopensDoneTask(t *testing.T) {
	done, err := ApplyStatusEdit(taskWithItems("A"), model.TaskStatusDone, t1)
	require.NoError(t, err)

	out, item, err := AddChecklistItem(done, "B", t2)
	require.NoError(t, err)
	assert.False(t, item.Completed)
	assert.Equal(t, 2, item.SortOrder)
	assert.Equal(t, model.TaskStatusInProgress, out.Status)
	assert.Nil(t, out.ConcludedAt)
	requireConsistent(t, out)

	_, _, err = AddChecklistItem(done, "   ", t2)
	var iv *model.InvalidValueError
	assert.ErrorAs(t, err, &iv)
}

func TestRemoveLastOpenItemConcludesTask(t *testing.T) {
	task := taskWithItems("A", "B")
	task, _, err := ApplyChecklistToggle(task, task.Checklist[0].ID, true, t0)
	require.NoError(t, err)

	out, err := RemoveChecklistItem(task, task.Checklist[1].ID, t1)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusDone, out.Status)
	assert.True(t, out.ConcludedAt.Equal(t1))
	assert.Len(t, task.Checklist, 2, "input is not modified")
}

func TestApplyTaskPatch(t *testing.T) {
	task := taskWithItems("A")
	title := "renamed"
	done := model.TaskStatusDone

	out, err := ApplyTaskPatch(task, model.TaskPatch{Title: &title, Status: &done}, t1)
	require.NoError(t, err)
	assert.Equal(t, "renamed", out.Title)
	assert.Equal(t, model.TaskStatusDone, out.Status)
	assert.True(t, out.ChecklistComplete())
	requireConsistent(t, out)

	empty := ""
	_, err = ApplyTaskPatch(task, model.TaskPatch{Title: &empty}, t1)
	assert.Error(t, err)
}

func TestCheckInvariants(t *testing.T) {
	task := taskWithItems("A")
	task.Status = model.TaskStatusDone
	assert.Error(t, CheckInvariants(task), "done without timestamp")

	task.ConcludedAt = &t1
	assert.Error(t, CheckInvariants(task), "done with open item")

	task.Checklist[0].Completed = true
	assert.NoError(t, CheckInvariants(task))
}

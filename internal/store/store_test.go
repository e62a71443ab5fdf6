package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
	"github.com/nhle/workboard/tests/testutil"
)

func TestCreateAndGetTask(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")

	task := testutil.SeedTask(t, s, p.ID, "Ship", "build", "test")
	assert.Equal(t, int64(1), task.Version)
	assert.Equal(t, model.TaskStatusTodo, task.Status)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, got.Checklist, 2)
	assert.Equal(t, "build", got.Checklist[0].Text)
	assert.Equal(t, "test", got.Checklist[1].Text)
	assert.False(t, got.Checklist[0].Completed)

	_, err = s.GetTask(ctx, "missing")
	assert.True(t, model.IsNotFound(err))
}

func TestCreateTaskRequiresProject(t *testing.T) {
	s := testutil.NewTestStore(t)
	_, err := s.CreateTask(context.Background(), model.NewTask("nope", "orphan", testutil.Epoch))
	require.Error(t, err)

	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, model.KindProject, nf.Kind)
}

func TestCreateTaskRejectsInconsistentConclusion(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")

	task := model.NewTask(p.ID, "bad", testutil.Epoch)
	task.Status = model.TaskStatusDone
	_, err := s.CreateTask(context.Background(), task)
	assert.Error(t, err)
}

func TestUpdateTaskVersioning(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")
	task := testutil.SeedTask(t, s, p.ID, "Ship", "a")

	edit := task
	edit.Title = "Ship v2"
	edit.Checklist[0].Completed = true
	updated, err := s.UpdateTask(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "Ship v2", updated.Title)
	assert.True(t, updated.Checklist[0].Completed)

	// The original snapshot is now stale.
	task.Title = "lost update"
	_, err = s.UpdateTask(ctx, task)
	require.Error(t, err)
	var ce *model.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), ce.Version)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ship v2", got.Title)

	ghost := task
	ghost.ID = "ghost"
	_, err = s.UpdateTask(ctx, ghost)
	assert.True(t, model.IsNotFound(err))
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")
	task := testutil.SeedTask(t, s, p.ID, "Ship", "a")

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err := s.GetTask(ctx, task.ID)
	assert.True(t, model.IsNotFound(err))
	assert.True(t, model.IsNotFound(s.DeleteTask(ctx, task.ID)))
}

func TestDeleteTaskReportsDriverFailure(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")
	task := testutil.SeedTask(t, s, p.ID, "Ship")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.DeleteTask(ctx, task.ID)
	require.Error(t, err)
	assert.False(t, model.IsNotFound(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "deleting task "+task.ID)

	_, err = s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")
	task := testutil.SeedTask(t, s, p.ID, "Ship")

	att, err := s.AddAttachment(ctx, model.Attachment{TaskID: task.ID, Name: "spec.pdf", URL: "file:///tmp/spec.pdf"})
	require.NoError(t, err)
	assert.NotEmpty(t, att.ID)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "spec.pdf", got.Attachments[0].Name)
	assert.Equal(t, model.TaskStatusTodo, got.Status)

	_, err = s.AddAttachment(ctx, model.Attachment{TaskID: "missing", Name: "x"})
	assert.True(t, model.IsNotFound(err))

	_, err = s.AddAttachment(ctx, model.Attachment{TaskID: task.ID})
	assert.Error(t, err)
}

func TestGetTasksFilter(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")
	other := testutil.SeedProject(t, s, "Other")

	testutil.SeedTask(t, s, p.ID, "Write docs")
	second := testutil.SeedTask(t, s, p.ID, "Fix bug")
	testutil.SeedTask(t, s, other.ID, "Write tests")

	second.Status = model.TaskStatusInProgress
	_, err := s.UpdateTask(ctx, second)
	require.NoError(t, err)

	pid := p.ID
	tasks, err := s.GetTasks(ctx, store.TaskFilter{ProjectID: &pid})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	q := "Write"
	tasks, err = s.GetTasks(ctx, store.TaskFilter{Query: &q, SortBy: "title"})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Write docs", tasks[0].Title)
	assert.Equal(t, "Write tests", tasks[1].Title)

	inProgress := model.TaskStatusInProgress
	tasks, err = s.GetTasks(ctx, store.TaskFilter{Status: &inProgress})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, second.ID, tasks[0].ID)

	tasks, err = s.GetTasks(ctx, store.TaskFilter{Limit: 1, Offset: 1, SortBy: "title"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write docs", tasks[0].Title)
}

func TestProjects(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	b := testutil.SeedProject(t, s, "Beta")
	testutil.SeedProject(t, s, "Alpha")

	projects, err := s.GetProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Alpha", projects[0].Name)

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	b.StartDate = &start
	b.Status = model.ProjectStatusInProgress
	updated, err := s.UpdateProject(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	require.NotNil(t, updated.StartDate)
	assert.True(t, updated.StartDate.Equal(start))

	_, err = s.UpdateProject(ctx, b)
	assert.True(t, model.IsConflict(err))

	_, err = s.GetProject(ctx, "missing")
	assert.True(t, model.IsNotFound(err))

	_, _, err = s.GetProjectWithTasks(ctx, "missing")
	assert.True(t, model.IsNotFound(err))
}

func TestRunTransactionIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")
	a := testutil.SeedTask(t, s, p.ID, "A")
	b := testutil.SeedTask(t, s, p.ID, "B")

	stale := b
	b.Title = "B edited"
	_, err := s.UpdateTask(ctx, b)
	require.NoError(t, err)

	p.Status = model.ProjectStatusPaused
	a.Title = "A edited"
	stale.Title = "B stale"
	err = s.RunTransaction(ctx, []store.UpdateOp{
		store.ProjectUpdate(p),
		store.TaskUpdate(a),
		store.TaskUpdate(stale),
	})
	require.Error(t, err)
	assert.True(t, model.IsConflict(err))

	project, tasks, err := s.GetProjectWithTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusPlanning, project.Status)
	assert.Equal(t, int64(1), project.Version)
	for _, task := range tasks {
		assert.NotEqual(t, "A edited", task.Title)
	}

	err = s.RunTransaction(ctx, []store.UpdateOp{{}})
	assert.Error(t, err, "an op must carry exactly one entity")
	assert.NoError(t, s.RunTransaction(ctx, nil))
}

func TestActivityRecordsActor(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := testutil.SeedProject(t, s, "Launch")
	task := testutil.SeedTask(t, s, p.ID, "Ship")

	ctx := store.WithActor(context.Background(), "alice")
	task.Status = model.TaskStatusInProgress
	_, err := s.UpdateTask(ctx, task)
	require.NoError(t, err)

	entries, err := s.GetActivity(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, model.ActivityCreate, entries[0].Operation)
	assert.Equal(t, store.SystemActor, entries[0].ActorID)
	assert.Equal(t, model.TaskStatusTodo, entries[0].ToStatus)

	assert.Equal(t, model.ActivityStatusChange, entries[1].Operation)
	assert.Equal(t, "alice", entries[1].ActorID)
	assert.Equal(t, model.TaskStatusTodo, entries[1].FromStatus)
	assert.Equal(t, model.TaskStatusInProgress, entries[1].ToStatus)
}

func TestActorFromDefaultsToSystem(t *testing.T) {
	assert.Equal(t, store.SystemActor, store.ActorFrom(context.Background()))
	assert.Equal(t, store.SystemActor, store.ActorFrom(store.WithActor(context.Background(), "")))
}

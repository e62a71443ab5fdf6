package store

import (
	"context"

	"github.com/nhle/workboard/internal/model"
)

// TaskFilter controls filtering, sorting, and pagination for task queries.
type TaskFilter struct {
	ProjectID  *string
	Status     *model.TaskStatus
	AssigneeID *string
	Query      *string // search title + description
	DueDate    *string // "today", "upcoming" (next 7 days), "overdue", or nil
	SortBy     string  // "created_at", "updated_at", "due_date", "priority", "title"
	SortDesc   bool
	Limit      int
	Offset     int
}

// UpdateOp is one full-replace write inside RunTransaction. Exactly one of
// Task or Project is set. The entity's Version must match the stored one.
type UpdateOp struct {
	Task    *model.Task
	Project *model.Project
}

// TaskUpdate builds an UpdateOp replacing t.
func TaskUpdate(t model.Task) UpdateOp { return UpdateOp{Task: &t} }

// ProjectUpdate builds an UpdateOp replacing p.
func ProjectUpdate(p model.Project) UpdateOp { return UpdateOp{Project: &p} }

// Store is the authoritative persistence boundary for tasks and projects.
//
// Reads return *model.NotFoundError for unknown ids. Writes use optimistic
// concurrency: the caller's Version must equal the stored one, otherwise
// *model.ConflictError is returned and nothing is written. Transient
// infrastructure failures are reported as *model.UnavailableError.
type Store interface {
	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	GetTasksByProject(ctx context.Context, projectID string) ([]model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// === Projects ===

	CreateProject(ctx context.Context, project model.Project) (*model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjects(ctx context.Context) ([]model.Project, error)
	UpdateProject(ctx context.Context, project model.Project) (*model.Project, error)

	// GetProjectWithTasks reads a project and all its tasks from one
	// consistent snapshot.
	GetProjectWithTasks(ctx context.Context, id string) (*model.Project, []model.Task, error)

	// RunTransaction applies every op or none of them.
	RunTransaction(ctx context.Context, ops []UpdateOp) error

	// === Attachments & activity ===

	AddAttachment(ctx context.Context, attachment model.Attachment) (*model.Attachment, error)
	GetActivity(ctx context.Context, taskID string) ([]model.Activity, error)
}

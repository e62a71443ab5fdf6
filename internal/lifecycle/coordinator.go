package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nhle/workboard/internal/clock"
	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

// Coordinator persists lifecycle decisions. It reads the authoritative
// snapshot from the store, runs the pure rules on it and writes the
// result back with optimistic concurrency.
type Coordinator struct {
	store  store.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator. A nil logger discards output.
func NewCoordinator(s store.Store, c clock.Clock, logger *slog.Logger) *Coordinator {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{store: s, clock: c, logger: logger}
}

// ChangeProjectStatus moves a project to status and, for done or
// cancelled, force-completes its open tasks. The project and every
// changed task are written in one transaction: on failure nothing is
// applied and the whole change may be retried. It returns the stored
// project and all of its tasks after the change.
func (c *Coordinator) ChangeProjectStatus(
	ctx context.Context,
	projectID string,
	status model.ProjectStatus,
) (*model.Project, []model.Task, error) {
	if !status.Valid() {
		return nil, nil, &model.InvalidStatusError{Kind: model.KindProject, Value: string(status)}
	}

	project, tasks, err := c.store.GetProjectWithTasks(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading project %s: %w", projectID, err)
	}

	updated, changed, err := OnProjectStatusChange(*project, status, tasks, c.clock.Now())
	if err != nil {
		return nil, nil, err
	}

	ops := make([]store.UpdateOp, 0, len(changed)+1)
	ops = append(ops, store.ProjectUpdate(updated))
	for _, t := range changed {
		ops = append(ops, store.TaskUpdate(t))
	}
	if err := c.store.RunTransaction(ctx, ops); err != nil {
		c.logger.Warn("project status change failed",
			"project_id", projectID,
			"from", project.Status,
			"to", status,
			"error", err,
		)
		return nil, nil, fmt.Errorf("changing project %s to %s: %w", projectID, status, err)
	}

	c.logger.Info("project status changed",
		"project_id", projectID,
		"from", project.Status,
		"to", status,
		"tasks_completed", len(changed),
	)

	project, tasks, err = c.store.GetProjectWithTasks(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("reloading project %s: %w", projectID, err)
	}
	return project, tasks, nil
}

// SetTaskStatus applies a direct status edit to the stored task.
func (c *Coordinator) SetTaskStatus(ctx context.Context, taskID string, status model.TaskStatus) (*model.Task, error) {
	return c.mutateTask(ctx, taskID, func(t model.Task) (model.Task, error) {
		return ApplyStatusEdit(t, status, c.clock.Now())
	})
}

// ToggleChecklistItem sets one checklist item and persists the derived status.
func (c *Coordinator) ToggleChecklistItem(
	ctx context.Context,
	taskID, itemID string,
	completed bool,
) (*model.Task, error) {
	return c.mutateTask(ctx, taskID, func(t model.Task) (model.Task, error) {
		out, _, err := ApplyChecklistToggle(t, itemID, completed, c.clock.Now())
		return out, err
	})
}

// AddChecklistItem appends an open item to the stored task.
func (c *Coordinator) AddChecklistItem(ctx context.Context, taskID, text string) (*model.Task, error) {
	return c.mutateTask(ctx, taskID, func(t model.Task) (model.Task, error) {
		out, _, err := AddChecklistItem(t, text, c.clock.Now())
		return out, err
	})
}

// UpdateTask merges a patch into the stored task.
func (c *Coordinator) UpdateTask(ctx context.Context, taskID string, patch model.TaskPatch) (*model.Task, error) {
	return c.mutateTask(ctx, taskID, func(t model.Task) (model.Task, error) {
		return ApplyTaskPatch(t, patch, c.clock.Now())
	})
}

// SaveTask persists a snapshot computed elsewhere, typically by the sync
// cache. The snapshot's Version must match the stored one.
func (c *Coordinator) SaveTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if err := CheckInvariants(task); err != nil {
		return nil, err
	}
	saved, err := c.store.UpdateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return saved, nil
}

func (c *Coordinator) mutateTask(
	ctx context.Context,
	taskID string,
	fn func(model.Task) (model.Task, error),
) (*model.Task, error) {
	current, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", taskID, err)
	}
	next, err := fn(*current)
	if err != nil {
		return nil, err
	}
	saved, err := c.SaveTask(ctx, next)
	if err != nil {
		return nil, err
	}
	if saved.Status != current.Status {
		c.logger.Debug("task status changed",
			"task_id", taskID,
			"from", current.Status,
			"to", saved.Status,
		)
	}
	return saved, nil
}

package lifecycle

import (
	"fmt"
	"time"

	"github.com/nhle/workboard/internal/model"
)

// OnProjectStatusChange computes the effect of moving project to status.
// Entering done or cancelled force-completes every task that is not
// already done or cancelled; the returned slice holds only those tasks.
// Any other status touches no task: closed tasks are never reopened.
func OnProjectStatusChange(
	project model.Project,
	status model.ProjectStatus,
	tasks []model.Task,
	now time.Time,
) (model.Project, []model.Task, error) {
	if !status.Valid() {
		return model.Project{}, nil, &model.InvalidStatusError{Kind: model.KindProject, Value: string(status)}
	}

	out := project.Clone()
	out.Status = status
	if !status.IsTerminal() {
		return out, nil, nil
	}

	var changed []model.Task
	for _, task := range tasks {
		if task.ProjectID != project.ID {
			return model.Project{}, nil, fmt.Errorf("task %s belongs to project %s, not %s",
				task.ID, task.ProjectID, project.ID)
		}
		if task.Status.IsTerminal() {
			continue
		}
		done, err := ApplyStatusEdit(task, model.TaskStatusDone, now)
		if err != nil {
			return model.Project{}, nil, fmt.Errorf("completing task %s: %w", task.ID, err)
		}
		changed = append(changed, done)
	}
	return out, changed, nil
}

// OpenTaskCount returns how many tasks a terminal cascade would force-complete.
func OpenTaskCount(tasks []model.Task) int {
	n := 0
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			n++
		}
	}
	return n
}

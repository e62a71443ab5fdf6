// Package lifecycle holds the task completion rules and the project
// cascade. The rule functions are pure: they take the current snapshot and
// an explicit timestamp and return a new snapshot, never touching storage.
//
// A direct status edit away from done only clears the conclusion
// timestamp. Checklist items keep their completed flags, so such a task
// can sit in progress with every item checked until the next checklist
// change re-derives its status.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/workboard/internal/model"
)

// ApplyChecklistToggle sets the completed flag of one checklist item and
// re-derives the task status from the checklist. It returns the updated
// task and its resulting status.
func ApplyChecklistToggle(
	task model.Task,
	itemID string,
	completed bool,
	now time.Time,
) (model.Task, model.TaskStatus, error) {
	idx := task.ChecklistIndex(itemID)
	if idx < 0 {
		return model.Task{}, "", &model.NotFoundError{Kind: model.KindChecklistItem, ID: itemID}
	}

	out := task.Clone()
	out.Checklist[idx].Completed = completed
	out = deriveFromChecklist(out, now)
	return out, out.Status, nil
}

// ApplyStatusEdit applies a direct, user-initiated status change. Done
// stamps the conclusion timestamp and completes every checklist item; any
// other status clears the timestamp. It never touches the owning project.
func ApplyStatusEdit(task model.Task, status model.TaskStatus, now time.Time) (model.Task, error) {
	if !status.Valid() {
		return model.Task{}, &model.InvalidStatusError{Kind: model.KindTask, Value: string(status)}
	}

	out := task.Clone()
	if status == model.TaskStatusDone {
		// Re-marking a done task keeps its original conclusion time.
		if out.Status != model.TaskStatusDone || out.ConcludedAt == nil {
			out.ConcludedAt = stamp(now)
		}
		for i := range out.Checklist {
			out.Checklist[i].Completed = true
		}
	} else {
		out.ConcludedAt = nil
	}
	out.Status = status
	return out, nil
}

// AddChecklistItem appends an incomplete item. Adding to a done task
// reopens it, since the checklist is no longer fully complete.
func AddChecklistItem(task model.Task, text string, now time.Time) (model.Task, model.ChecklistItem, error) {
	if strings.TrimSpace(text) == "" {
		return model.Task{}, model.ChecklistItem{}, &model.InvalidValueError{Field: "checklist item text"}
	}

	item := model.NewChecklistItem(task.ID, text, now)
	maxOrder := 0
	for _, existing := range task.Checklist {
		if existing.SortOrder > maxOrder {
			maxOrder = existing.SortOrder
		}
	}
	item.SortOrder = maxOrder + 1

	out := task.Clone()
	out.Checklist = append(out.Checklist, item)
	return deriveFromChecklist(out, now), item, nil
}

// RemoveChecklistItem deletes one item and re-derives the status from
// what remains. Emptying the checklist leaves the status as it was.
func RemoveChecklistItem(task model.Task, itemID string, now time.Time) (model.Task, error) {
	idx := task.ChecklistIndex(itemID)
	if idx < 0 {
		return model.Task{}, &model.NotFoundError{Kind: model.KindChecklistItem, ID: itemID}
	}

	out := task.Clone()
	out.Checklist = append(out.Checklist[:idx], out.Checklist[idx+1:]...)
	return deriveFromChecklist(out, now), nil
}

// ApplyTaskPatch merges a validated patch. A status change is applied
// through ApplyStatusEdit so the conclusion timestamp stays consistent.
func ApplyTaskPatch(task model.Task, patch model.TaskPatch, now time.Time) (model.Task, error) {
	if err := patch.Validate(); err != nil {
		return model.Task{}, err
	}
	out := patch.ApplyFields(task)
	if patch.Status != nil {
		return ApplyStatusEdit(out, *patch.Status, now)
	}
	return out, nil
}

// CheckInvariants verifies that the conclusion timestamp matches the
// status and that a done task has no open checklist item. A fully checked
// list on a task moved away from done by a direct edit is allowed: the
// next toggle re-derives the status.
func CheckInvariants(task model.Task) error {
	if (task.ConcludedAt != nil) != task.IsDone() {
		return fmt.Errorf("task %s: concluded_at set=%t with status %s",
			task.ID, task.ConcludedAt != nil, task.Status)
	}
	if len(task.Checklist) > 0 && task.IsDone() && !task.ChecklistComplete() {
		done, total := task.ChecklistProgress()
		return fmt.Errorf("task %s: status %s with %d/%d checklist items completed",
			task.ID, task.Status, done, total)
	}
	return nil
}

// deriveFromChecklist applies the checklist-driven transitions: a fully
// completed checklist concludes the task, and an incomplete one reopens a
// done task to in progress. An empty checklist derives nothing.
func deriveFromChecklist(task model.Task, now time.Time) model.Task {
	if len(task.Checklist) == 0 {
		return task
	}
	switch {
	case task.ChecklistComplete() && task.Status != model.TaskStatusDone:
		task.Status = model.TaskStatusDone
		task.ConcludedAt = stamp(now)
	case !task.ChecklistComplete() && task.Status == model.TaskStatusDone:
		task.Status = model.TaskStatusInProgress
		task.ConcludedAt = nil
	}
	return task
}

func stamp(now time.Time) *time.Time {
	t := now.UTC()
	return &t
}

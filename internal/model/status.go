package model

import "strings"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task status values.
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every valid task status in board order.
var TaskStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusDone,
	TaskStatusCancelled,
}

// Valid reports whether s is one of the defined task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s is done or cancelled.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}

// Label returns a human-readable name for the status.
func (s TaskStatus) Label() string {
	switch s {
	case TaskStatusTodo:
		return "To do"
	case TaskStatusInProgress:
		return "In progress"
	case TaskStatusDone:
		return "Done"
	case TaskStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// ParseTaskStatus normalizes raw and validates it against the task statuses.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(normalizeEnum(raw))
	if !s.Valid() {
		return "", &InvalidStatusError{Kind: KindTask, Value: raw}
	}
	return s, nil
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// Project status values.
const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusPaused     ProjectStatus = "paused"
	ProjectStatusDone       ProjectStatus = "done"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// Valid reports whether s is one of the defined project statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusPaused,
		ProjectStatusDone, ProjectStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s closes the project. Transitioning into a
// terminal status cascades to the project's open tasks.
func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusDone || s == ProjectStatusCancelled
}

// ParseProjectStatus normalizes raw and validates it against the project statuses.
func ParseProjectStatus(raw string) (ProjectStatus, error) {
	s := ProjectStatus(normalizeEnum(raw))
	if !s.Valid() {
		return "", &InvalidStatusError{Kind: KindProject, Value: raw}
	}
	return s, nil
}

// Priority is the urgency of a task.
type Priority string

// Priority values.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ParsePriority normalizes raw and validates it.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(normalizeEnum(raw))
	if !p.Valid() {
		return "", &InvalidValueError{Field: "priority", Value: raw}
	}
	return p, nil
}

// normalizeEnum lowercases and maps "In Progress" / "in-progress" to "in_progress".
func normalizeEnum(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

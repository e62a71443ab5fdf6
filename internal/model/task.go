package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is a unit of work owned by a project. Its status, conclusion
// timestamp and checklist are kept consistent by the lifecycle package.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id" db:"id"`

	// ProjectID references the owning project.
	ProjectID string `json:"project_id" db:"project_id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// Description is the full body text.
	Description string `json:"description" db:"description"`

	// Status is the lifecycle state (use TaskStatus* constants).
	Status TaskStatus `json:"status" db:"status"`

	// Priority is the urgency level (use Priority* constants).
	Priority Priority `json:"priority" db:"priority"`

	// DueDate is when the task should be concluded, if scheduled.
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	// AssigneeID references the assigned user, if any.
	AssigneeID *string `json:"assignee_id,omitempty" db:"assignee_id"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is when the task was last persisted.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// ConcludedAt is set exactly while Status is done.
	ConcludedAt *time.Time `json:"concluded_at,omitempty" db:"concluded_at"`

	// Version increments on every persisted write and drives
	// optimistic concurrency at the store boundary.
	Version int64 `json:"version" db:"version"`

	// Checklist is ordered by insertion; order is display-only.
	Checklist []ChecklistItem `json:"checklist,omitempty" db:"-"`

	// Attachments are inert metadata and never affect the lifecycle.
	Attachments []Attachment `json:"attachments,omitempty" db:"-"`
}

// ChecklistItem is a sub-entry within a task. Its lifecycle is bound to
// the parent task (CASCADE delete).
type ChecklistItem struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	Text      string    `json:"text" db:"text"`
	Completed bool      `json:"completed" db:"completed"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Attachment is a file reference attached to a task.
type Attachment struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	Name      string    `json:"name" db:"name"`
	URL       string    `json:"url" db:"url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewTask returns a task in its initial state: todo, empty checklist,
// no conclusion timestamp.
func NewTask(projectID, title string, now time.Time) Task {
	now = now.UTC()
	return Task{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Title:     strings.TrimSpace(title),
		Status:    TaskStatusTodo,
		Priority:  PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewChecklistItem returns an incomplete checklist item for taskID.
func NewChecklistItem(taskID, text string, now time.Time) ChecklistItem {
	return ChecklistItem{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Text:      strings.TrimSpace(text),
		CreatedAt: now.UTC(),
	}
}

// Clone returns a deep copy so cached snapshots never share slices or pointers.
func (t Task) Clone() Task {
	out := t
	out.DueDate = cloneTime(t.DueDate)
	out.ConcludedAt = cloneTime(t.ConcludedAt)
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		out.AssigneeID = &id
	}
	if t.Checklist != nil {
		out.Checklist = make([]ChecklistItem, len(t.Checklist))
		copy(out.Checklist, t.Checklist)
	}
	if t.Attachments != nil {
		out.Attachments = make([]Attachment, len(t.Attachments))
		copy(out.Attachments, t.Attachments)
	}
	return out
}

// IsDone reports whether the task is concluded.
func (t Task) IsDone() bool { return t.Status == TaskStatusDone }

// IsOverdue reports whether the due date has passed on an unconcluded task.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Status.IsTerminal()
}

// ChecklistComplete reports whether the checklist is non-empty and every
// item is completed.
func (t Task) ChecklistComplete() bool {
	if len(t.Checklist) == 0 {
		return false
	}
	for _, item := range t.Checklist {
		if !item.Completed {
			return false
		}
	}
	return true
}

// ChecklistProgress returns the number of completed items and the total.
func (t Task) ChecklistProgress() (done, total int) {
	for _, item := range t.Checklist {
		if item.Completed {
			done++
		}
	}
	return done, len(t.Checklist)
}

// ChecklistIndex returns the position of itemID in the checklist, or -1.
func (t Task) ChecklistIndex(itemID string) int {
	for i, item := range t.Checklist {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// Validate checks enum fields and the conclusion timestamp invariant.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return &InvalidValueError{Field: "task id"}
	}
	if strings.TrimSpace(t.Title) == "" {
		return &InvalidValueError{Field: "task title"}
	}
	if !t.Status.Valid() {
		return &InvalidStatusError{Kind: KindTask, Value: string(t.Status)}
	}
	if !t.Priority.Valid() {
		return &InvalidValueError{Field: "priority", Value: string(t.Priority)}
	}
	if (t.ConcludedAt != nil) != t.IsDone() {
		return fmt.Errorf("task %s: concluded_at must be set exactly when status is done (status %s)", t.ID, t.Status)
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

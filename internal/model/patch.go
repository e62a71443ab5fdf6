package model

import (
	"strings"
	"time"
)

// TaskPatch is a partial update to a task. Nil fields are left unchanged.
// Clear* flags reset optional fields to nil. A Status change is not merged
// by ApplyFields; it goes through the completion rules.
type TaskPatch struct {
	Title         *string
	Description   *string
	Status        *TaskStatus
	Priority      *Priority
	DueDate       *time.Time
	ClearDueDate  bool
	AssigneeID    *string
	ClearAssignee bool
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.AssigneeID == nil && !p.ClearAssignee
}

// Validate rejects patches that would produce an invalid task.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &InvalidValueError{Field: "task title"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &InvalidStatusError{Kind: KindTask, Value: string(*p.Status)}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return &InvalidValueError{Field: "priority", Value: string(*p.Priority)}
	}
	if p.DueDate != nil && p.ClearDueDate {
		return &InvalidValueError{Field: "due date", Value: "set and cleared"}
	}
	if p.AssigneeID != nil && p.ClearAssignee {
		return &InvalidValueError{Field: "assignee", Value: "set and cleared"}
	}
	return nil
}

// ApplyFields returns a copy of t with every non-status field of the patch
// merged in. The patch must have been validated.
func (p TaskPatch) ApplyFields(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		out.DueDate = nil
	case p.DueDate != nil:
		out.DueDate = cloneTime(p.DueDate)
	}
	switch {
	case p.ClearAssignee:
		out.AssigneeID = nil
	case p.AssigneeID != nil:
		id := *p.AssigneeID
		out.AssigneeID = &id
	}
	return out
}

// ProjectPatch is a partial update to a project. A Status change is not
// merged by ApplyFields; it goes through the cascade coordinator.
type ProjectPatch struct {
	Name           *string
	Description    *string
	Status         *ProjectStatus
	StartDate      *time.Time
	ClearStartDate bool
	EndDate        *time.Time
	ClearEndDate   bool
	ClientID       *string
	ClearClient    bool
}

// Validate rejects patches that would produce an invalid project.
func (p ProjectPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return &InvalidValueError{Field: "project name"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &InvalidStatusError{Kind: KindProject, Value: string(*p.Status)}
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return &InvalidValueError{Field: "project date range", Value: p.EndDate.Format("2006-01-02")}
	}
	return nil
}

// ApplyFields returns a copy of proj with every non-status field merged in.
// The merged result is validated so a patch cannot invert the date range.
func (p ProjectPatch) ApplyFields(proj Project) (Project, error) {
	out := proj.Clone()
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	switch {
	case p.ClearStartDate:
		out.StartDate = nil
	case p.StartDate != nil:
		out.StartDate = cloneTime(p.StartDate)
	}
	switch {
	case p.ClearEndDate:
		out.EndDate = nil
	case p.EndDate != nil:
		out.EndDate = cloneTime(p.EndDate)
	}
	switch {
	case p.ClearClient:
		out.ClientID = nil
	case p.ClientID != nil:
		id := *p.ClientID
		out.ClientID = &id
	}
	if err := out.Validate(); err != nil {
		return Project{}, err
	}
	return out, nil
}

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Project groups tasks and owns their membership. Closing a project
// cascades to its open tasks; reopening it does not.
type Project struct {
	ID          string        `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description" db:"description"`
	Status      ProjectStatus `json:"status" db:"status"`
	StartDate   *time.Time    `json:"start_date,omitempty" db:"start_date"`
	EndDate     *time.Time    `json:"end_date,omitempty" db:"end_date"`
	ClientID    *string       `json:"client_id,omitempty" db:"client_id"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
	Version     int64         `json:"version" db:"version"`
}

// NewProject returns a project in the planning state.
func NewProject(name string, now time.Time) Project {
	now = now.UTC()
	return Project{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Status:    ProjectStatusPlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of p.
func (p Project) Clone() Project {
	out := p
	out.StartDate = cloneTime(p.StartDate)
	out.EndDate = cloneTime(p.EndDate)
	if p.ClientID != nil {
		id := *p.ClientID
		out.ClientID = &id
	}
	return out
}

// Validate checks the name, status and date range.
func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return &InvalidValueError{Field: "project id"}
	}
	if strings.TrimSpace(p.Name) == "" {
		return &InvalidValueError{Field: "project name"}
	}
	if !p.Status.Valid() {
		return &InvalidStatusError{Kind: KindProject, Value: string(p.Status)}
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return &InvalidValueError{Field: "project date range", Value: p.EndDate.Format("2006-01-02")}
	}
	return nil
}

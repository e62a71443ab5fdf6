package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/workboard/internal/model"
)

const projectColumns = `id, name, description, status, start_date, end_date,
	client_id, created_at, updated_at, version`

// CreateProject inserts a new project.
func (s *SQLiteStore) CreateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := nowUTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	project.Version = 1
	if project.Status == "" {
		project.Status = model.ProjectStatusPlanning
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (
			id, name, description, status, start_date, end_date,
			client_id, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Description, string(project.Status),
		project.StartDate, project.EndDate, project.ClientID,
		project.CreatedAt, project.UpdatedAt, project.Version,
	)
	if err != nil {
		return nil, classify(ctx, "creating project", err)
	}
	return getProject(ctx, s.db, project.ID)
}

// GetProject retrieves a single project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return getProject(ctx, s.db, id)
}

// GetProjects retrieves all projects ordered by name.
func (s *SQLiteStore) GetProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	err := s.db.SelectContext(ctx, &projects,
		"SELECT "+projectColumns+" FROM projects ORDER BY name, id")
	if err != nil {
		return nil, classify(ctx, "querying projects", err)
	}
	return projects, nil
}

// UpdateProject replaces a project's fields if its version still matches.
// It does not cascade; status changes that close a project go through
// the lifecycle coordinator and RunTransaction.
func (s *SQLiteStore) UpdateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	var updated *model.Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		updated, err = updateProjectTx(ctx, tx, project, nowUTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetProjectWithTasks reads the project and its tasks inside one
// transaction so a cascade is never observed half-applied.
func (s *SQLiteStore) GetProjectWithTasks(ctx context.Context, id string) (*model.Project, []model.Task, error) {
	var (
		project *model.Project
		tasks   []model.Task
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if project, err = getProject(ctx, tx, id); err != nil {
			return err
		}
		tasks, err = getTasksByProject(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return project, tasks, nil
}

func updateProjectTx(ctx context.Context, tx *sqlx.Tx, project model.Project, now time.Time) (*model.Project, error) {
	if err := project.Validate(); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE projects SET
			name = ?, description = ?, status = ?, start_date = ?, end_date = ?,
			client_id = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		project.Name, project.Description, string(project.Status),
		project.StartDate, project.EndDate, project.ClientID,
		now, project.ID, project.Version,
	)
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("updating project %s", project.ID), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("updating project %s", project.ID), err)
	}
	if rows == 0 {
		// Distinguish a stale version from a missing row.
		if _, err := getProject(ctx, tx, project.ID); err != nil {
			return nil, err
		}
		return nil, &model.ConflictError{Kind: model.KindProject, ID: project.ID, Version: project.Version}
	}
	return getProject(ctx, tx, project.ID)
}

func getProject(ctx context.Context, q sqlx.QueryerContext, id string) (*model.Project, error) {
	var project model.Project
	err := sqlx.GetContext(ctx, q, &project,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.KindProject, ID: id}
	}
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("getting project %s", id), err)
	}
	return &project, nil
}

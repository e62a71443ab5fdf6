package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/workboard/internal/model"
)

const taskColumns = `id, project_id, title, description, status, priority,
	due_date, assignee_id, created_at, updated_at, concluded_at, version`

// CreateTask inserts a new task with its checklist. Generates a UUID if ID
// is empty and starts the version at 1.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := nowUTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	task.Version = 1
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	var created *model.Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists,
			"SELECT COUNT(*) FROM projects WHERE id = ?", task.ProjectID); err != nil {
			return classify(ctx, "checking project", err)
		}
		if exists == 0 {
			return &model.NotFoundError{Kind: model.KindProject, ID: task.ProjectID}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (
				id, project_id, title, description, status, priority,
				due_date, assignee_id, created_at, updated_at, concluded_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.ProjectID, task.Title, task.Description,
			string(task.Status), string(task.Priority),
			task.DueDate, task.AssigneeID,
			task.CreatedAt, task.UpdatedAt, task.ConcludedAt, task.Version,
		)
		if err != nil {
			return classify(ctx, "creating task", err)
		}
		if err := writeChecklist(ctx, tx, task.ID, task.Checklist); err != nil {
			return err
		}
		if err := recordActivity(ctx, tx, task.ID, model.ActivityCreate, "", task.Status, now); err != nil {
			return err
		}

		created, err = getTask(ctx, tx, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetTask retrieves a single task by ID, including checklist and attachments.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return getTask(ctx, s.db, id)
}

// GetTasks retrieves tasks matching the filter, with their checklists.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query, args := buildTaskQuery("SELECT "+taskColumns, filter)

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, classify(ctx, "querying tasks", err)
	}
	if err := loadChildren(ctx, s.db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTasksByProject returns every task of a project in creation order.
func (s *SQLiteStore) GetTasksByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	return getTasksByProject(ctx, s.db, projectID)
}

// UpdateTask replaces the task (checklist included) if task.Version still
// matches the stored version, and returns the stored result.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	var updated *model.Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		updated, err = updateTaskTx(ctx, tx, task, nowUTC(), model.ActivityStatusChange)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTask removes a task by ID. Cascades to checklist_items, attachments
// and activity.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return classify(ctx, fmt.Sprintf("deleting task %s", id), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return classify(ctx, fmt.Sprintf("deleting task %s", id), err)
	}
	if rows == 0 {
		return &model.NotFoundError{Kind: model.KindTask, ID: id}
	}
	return nil
}

// AddAttachment records a file reference on a task.
func (s *SQLiteStore) AddAttachment(ctx context.Context, a model.Attachment) (*model.Attachment, error) {
	if strings.TrimSpace(a.Name) == "" {
		return nil, &model.InvalidValueError{Field: "attachment name"}
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = nowUTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, task_id, name, url, created_at)
		SELECT ?, id, ?, ?, ? FROM tasks WHERE id = ?`,
		a.ID, a.Name, a.URL, a.CreatedAt, a.TaskID,
	)
	if err != nil {
		return nil, classify(ctx, "adding attachment", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM attachments WHERE id = ?", a.ID); err != nil {
		return nil, classify(ctx, "checking attachment", err)
	}
	if count == 0 {
		return nil, &model.NotFoundError{Kind: model.KindTask, ID: a.TaskID}
	}
	return &a, nil
}

// updateTaskTx performs the versioned full replace of a task inside tx
// and records a status change in the activity log.
func updateTaskTx(
	ctx context.Context,
	tx *sqlx.Tx,
	task model.Task,
	now time.Time,
	operation string,
) (*model.Task, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	var current struct {
		Status  model.TaskStatus `db:"status"`
		Version int64            `db:"version"`
	}
	err := tx.GetContext(ctx, &current,
		"SELECT status, version FROM tasks WHERE id = ?", task.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.KindTask, ID: task.ID}
	}
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("reading task %s", task.ID), err)
	}
	if current.Version != task.Version {
		return nil, &model.ConflictError{Kind: model.KindTask, ID: task.ID, Version: task.Version}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE tasks SET
			project_id = ?, title = ?, description = ?, status = ?, priority = ?,
			due_date = ?, assignee_id = ?, concluded_at = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		task.ProjectID, task.Title, task.Description,
		string(task.Status), string(task.Priority),
		task.DueDate, task.AssigneeID, task.ConcludedAt,
		now, task.ID, task.Version,
	)
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("updating task %s", task.ID), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("updating task %s", task.ID), err)
	}
	if rows == 0 {
		return nil, &model.ConflictError{Kind: model.KindTask, ID: task.ID, Version: task.Version}
	}

	if err := writeChecklist(ctx, tx, task.ID, task.Checklist); err != nil {
		return nil, err
	}
	if current.Status != task.Status {
		if err := recordActivity(ctx, tx, task.ID, operation, current.Status, task.Status, now); err != nil {
			return nil, err
		}
	}

	return getTask(ctx, tx, task.ID)
}

// writeChecklist replaces the stored checklist of taskID with items,
// keeping their order.
func writeChecklist(ctx context.Context, tx *sqlx.Tx, taskID string, items []model.ChecklistItem) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM checklist_items WHERE task_id = ?", taskID); err != nil {
		return classify(ctx, "clearing checklist", err)
	}

	for i, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			return &model.InvalidValueError{Field: "checklist item text"}
		}
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = nowUTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO checklist_items (id, task_id, text, completed, sort_order, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, taskID, item.Text, boolToInt(item.Completed), i+1, item.CreatedAt,
		)
		if err != nil {
			return classify(ctx, fmt.Sprintf("writing checklist item %s", item.ID), err)
		}
	}
	return nil
}

func getTask(ctx context.Context, q sqlx.QueryerContext, id string) (*model.Task, error) {
	var task model.Task
	err := sqlx.GetContext(ctx, q, &task,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.KindTask, ID: id}
	}
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("getting task %s", id), err)
	}

	tasks := []model.Task{task}
	if err := loadChildren(ctx, q, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

func getTasksByProject(ctx context.Context, q sqlx.QueryerContext, projectID string) ([]model.Task, error) {
	var tasks []model.Task
	err := sqlx.SelectContext(ctx, q, &tasks,
		"SELECT "+taskColumns+" FROM tasks WHERE project_id = ? ORDER BY created_at, id",
		projectID)
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("querying tasks of project %s", projectID), err)
	}
	if err := loadChildren(ctx, q, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// loadChildren fills the checklist and attachments of every task in place.
func loadChildren(ctx context.Context, q sqlx.QueryerContext, tasks []model.Task) error {
	for i := range tasks {
		var items []model.ChecklistItem
		err := sqlx.SelectContext(ctx, q, &items, `
			SELECT id, task_id, text, completed, sort_order, created_at
			FROM checklist_items WHERE task_id = ? ORDER BY sort_order, created_at`,
			tasks[i].ID)
		if err != nil {
			return classify(ctx, fmt.Sprintf("loading checklist for task %s", tasks[i].ID), err)
		}
		tasks[i].Checklist = items

		var attachments []model.Attachment
		err = sqlx.SelectContext(ctx, q, &attachments, `
			SELECT id, task_id, name, url, created_at
			FROM attachments WHERE task_id = ? ORDER BY created_at`,
			tasks[i].ID)
		if err != nil {
			return classify(ctx, fmt.Sprintf("loading attachments for task %s", tasks[i].ID), err)
		}
		tasks[i].Attachments = attachments
	}
	return nil
}

// buildTaskQuery constructs the SQL query and args for a TaskFilter.
func buildTaskQuery(selectClause string, filter TaskFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.ProjectID != nil {
		conditions = append(conditions, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.AssigneeID != nil {
		conditions = append(conditions, "assignee_id = ?")
		args = append(args, *filter.AssigneeID)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}
	if filter.DueDate != nil {
		now := time.Now()
		today := now.Format("2006-01-02")
		switch *filter.DueDate {
		case "today":
			tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")
			conditions = append(conditions, "due_date >= ? AND due_date < ?")
			args = append(args, today, tomorrow)
		case "upcoming":
			weekFromNow := now.AddDate(0, 0, 7).Format("2006-01-02")
			conditions = append(conditions, "due_date >= ? AND due_date < ?")
			args = append(args, today, weekFromNow)
		case "overdue":
			conditions = append(conditions,
				"due_date < ? AND status NOT IN ('done', 'cancelled')")
			args = append(args, today)
		}
	}

	query := selectClause + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "created_at"
	if filter.SortBy != "" {
		allowed := map[string]string{
			"created_at": "created_at",
			"updated_at": "updated_at",
			"due_date":   "due_date",
			"title":      "title",
			"priority":   "CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END",
		}
		if col, ok := allowed[filter.SortBy]; ok {
			sortBy = col
		}
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id", sortBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	return query, args
}

func nowUTC() time.Time { return time.Now().UTC() }

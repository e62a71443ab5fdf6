package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/workboard/internal/model"
)

// GetActivity returns the audit trail of a task, oldest first.
func (s *SQLiteStore) GetActivity(ctx context.Context, taskID string) ([]model.Activity, error) {
	var entries []model.Activity
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, task_id, actor_id, operation, from_status, to_status, occurred_at
		FROM task_activity WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, classify(ctx, fmt.Sprintf("querying activity for task %s", taskID), err)
	}
	return entries, nil
}

// recordActivity appends an activity entry attributed to the context's actor.
func recordActivity(
	ctx context.Context,
	tx *sqlx.Tx,
	taskID string,
	operation string,
	from, to model.TaskStatus,
	now time.Time,
) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO task_activity (task_id, actor_id, operation, from_status, to_status, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, ActorFrom(ctx), operation, string(from), string(to), now,
	)
	if err != nil {
		return classify(ctx, fmt.Sprintf("recording activity for task %s", taskID), err)
	}
	return nil
}

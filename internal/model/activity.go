package model

import "time"

// Activity operations recorded against a task.
const (
	ActivityCreate       = "create"
	ActivityStatusChange = "status_change"
	ActivityCascade      = "cascade"
)

// Activity is one entry of a task's audit trail. Status changes are
// recorded in the same transaction as the write that caused them.
type Activity struct {
	ID         int64      `json:"id" db:"id"`
	TaskID     string     `json:"task_id" db:"task_id"`
	ActorID    string     `json:"actor_id" db:"actor_id"`
	Operation  string     `json:"operation" db:"operation"`
	FromStatus TaskStatus `json:"from_status" db:"from_status"`
	ToStatus   TaskStatus `json:"to_status" db:"to_status"`
	OccurredAt time.Time  `json:"occurred_at" db:"occurred_at"`
}

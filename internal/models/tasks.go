package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusSuccess    TaskStatus = "SUCCESS"
	TaskStatusFail       TaskStatus = "FAIL"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFail
}

// Rank orders statuses along the lifecycle; unknown values rank lowest.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusPending:
		return 1
	case TaskStatusProcessing:
		return 2
	case TaskStatusSuccess, TaskStatusFail:
		return 3
	default:
		return 0
	}
}

func (s TaskStatus) Valid() bool {
	return s.Rank() > 0
}

type TaskID string

// DeliveryTarget routes replies back to the session that created a task.
type DeliveryTarget struct {
	SessionID   string `json:"session_id"`
	Receiver    string `json:"receiver,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// Task is a snapshot of one tracked video job. Values handed out by the
// registry are copies.
type Task struct {
	ID         TaskID         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	IsGroup    bool           `json:"is_group"`
	Target     DeliveryTarget `json:"target"`
	Prompt     string         `json:"prompt,omitempty"`
	Status     TaskStatus     `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

// TaskStatusEntry is one line of a status query answer.
type TaskStatusEntry struct {
	TaskID TaskID     `json:"task_id"`
	Status TaskStatus `json:"status"`
}

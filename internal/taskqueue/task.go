// Package taskqueue is a database-backed task queue: handlers enqueue tasks,
// workers claim them one at a time, and post hooks chain follow-up work.
package taskqueue

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Task struct {
	ID          int64           `json:"id"`
	Group       string          `json:"group"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	Result      json.RawMessage `json:"result,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	AvailableAt time.Time       `json:"available_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Key identifies the handler for a task.
func (t *Task) Key() string {
	return Key(t.Group, t.Name)
}

func Key(group, name string) string {
	return group + "/" + name
}

// NewTask marshals payload and returns a task ready to enqueue.
func NewTask(group, name string, payload any, now time.Time) (*Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", Key(group, name), err)
	}
	return &Task{
		Group:       group,
		Name:        name,
		Payload:     raw,
		Status:      StatusQueued,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Outcome is what post hooks receive once a task has finished for good.
type Outcome struct {
	Task   *Task
	OK     bool
	Result json.RawMessage
	Err    error
}

// Decode unmarshals the task result into v.
func (o Outcome) Decode(v any) error {
	if len(o.Result) == 0 {
		return fmt.Errorf("task %d has no result", o.Task.ID)
	}
	return json.Unmarshal(o.Result, v)
}

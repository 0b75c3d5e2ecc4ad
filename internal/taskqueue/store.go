package taskqueue

import (
	"context"
	"encoding/json"
	"time"
)

// Store persists tasks. Claim returns sentinel.ErrEmpty when nothing is
// available and must hand any task to exactly one caller.
type Store interface {
	Enqueue(ctx context.Context, t *Task) error
	Claim(ctx context.Context, now time.Time) (*Task, error)
	Complete(ctx context.Context, id int64, result json.RawMessage, now time.Time) error
	// Fail requeues the task at retryAt, or marks it failed when retryAt is nil.
	Fail(ctx context.Context, id int64, cause string, retryAt *time.Time, now time.Time) error
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, limit int) ([]*Task, error)
}

var (
	_ Store = (*InMemory)(nil)
	_ Store = (*SQL)(nil)
)

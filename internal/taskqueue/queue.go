package taskqueue

import (
	"context"
	"log/slog"
	"time"
)

// Enqueuer is the dependency handlers and post hooks use to schedule work.
type Enqueuer interface {
	Enqueue(ctx context.Context, group, name string, payload any) (*Task, error)
}

// Queue is the producer side of the task queue.
type Queue struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewQueue(store Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{store: store, logger: logger, now: time.Now}
}

func (q *Queue) Enqueue(ctx context.Context, group, name string, payload any) (*Task, error) {
	t, err := NewTask(group, name, payload, q.now())
	if err != nil {
		return nil, err
	}
	if err := q.store.Enqueue(ctx, t); err != nil {
		return nil, err
	}
	q.logger.InfoContext(ctx, "task enqueued", "task", t.Key(), "task_id", t.ID)
	return t, nil
}

func (q *Queue) List(ctx context.Context, limit int) ([]*Task, error) {
	return q.store.List(ctx, limit)
}

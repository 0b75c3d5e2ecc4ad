package taskqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler enqueues one task on a fixed interval.
type Scheduler struct {
	queue    Enqueuer
	group    string
	name     string
	payload  any
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(queue Enqueuer, group, name string, payload any, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queue:    queue,
		group:    group,
		name:     name,
		payload:  payload,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. The first task is enqueued one interval
// after start.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive, got %s", Key(s.group, s.name), s.interval)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.queue.Enqueue(ctx, s.group, s.name, s.payload); err != nil {
				s.logger.ErrorContext(ctx, "failed to schedule task",
					"task", Key(s.group, s.name),
					"error", err,
				)
			}
		}
	}
}

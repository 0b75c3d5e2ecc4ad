package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"ddrc/pkg/platform/sentinel"
)

type InMemory struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*Task
}

func NewInMemory() *InMemory {
	return &InMemory{tasks: make(map[int64]*Task)}
}

func (s *InMemory) Enqueue(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *InMemory) Claim(_ context.Context, now time.Time) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *Task
	for _, t := range s.tasks {
		if t.Status != StatusQueued || t.AvailableAt.After(now) {
			continue
		}
		if next == nil || t.ID < next.ID {
			next = t
		}
	}
	if next == nil {
		return nil, sentinel.ErrEmpty
	}
	next.Status = StatusRunning
	next.Attempts++
	next.UpdatedAt = now
	cp := *next
	return &cp, nil
}

func (s *InMemory) Complete(_ context.Context, id int64, result json.RawMessage, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, sentinel.ErrNotFound)
	}
	t.Status = StatusSucceeded
	t.Result = result
	t.LastError = ""
	t.UpdatedAt = now
	return nil
}

func (s *InMemory) Fail(_ context.Context, id int64, cause string, retryAt *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %d: %w", id, sentinel.ErrNotFound)
	}
	t.LastError = cause
	t.UpdatedAt = now
	if retryAt == nil {
		t.Status = StatusFailed
		return nil
	}
	t.Status = StatusQueued
	t.AvailableAt = *retryAt
	return nil
}

func (s *InMemory) Get(_ context.Context, id int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, sentinel.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

// List returns the newest tasks first.
func (s *InMemory) List(_ context.Context, limit int) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

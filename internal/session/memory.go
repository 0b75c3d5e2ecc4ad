package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ddrc/pkg/platform/sentinel"
)

type entry struct {
	data    Data
	expires time.Time
}

type InMemory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]entry), now: time.Now}
}

func (s *InMemory) Load(_ context.Context, id string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expires) {
		delete(s.entries, id)
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	data := e.data
	return &data, nil
}

func (s *InMemory) Save(_ context.Context, id string, data *Data, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry{data: *data, expires: s.now().Add(ttl)}
	return nil
}

func (s *InMemory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

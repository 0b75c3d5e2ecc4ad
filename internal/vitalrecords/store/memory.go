package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ddrc/internal/vitalrecords/models"
	"ddrc/pkg/platform/sentinel"
)

// InMemory is a process-local store for tests and single-instance dev runs.
type InMemory struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]models.Request
	metadata []models.Metadata
	nextMeta int64
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[uuid.UUID]models.Request)}
}

func (s *InMemory) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("vital records request %s: %w", r.ID, sentinel.ErrConflict)
	}
	s.requests[r.ID] = *r
	return nil
}

func (s *InMemory) Save(_ context.Context, r *models.Request, from models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[r.ID]
	if !ok {
		return notFound(r.ID)
	}
	if stored.Status != from {
		return wrongStatus(r.ID, from, stored.Status)
	}
	s.requests[r.ID] = *r
	return nil
}

func (s *InMemory) Get(_ context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, notFound(id)
	}
	return &r, nil
}

func (s *InMemory) GetWithStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Request, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != status {
		return nil, wrongStatus(id, status, r.Status)
	}
	return r, nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return notFound(id)
	}
	delete(s.requests, id)
	return nil
}

// ListFinished returns finished requests oldest first.
func (s *InMemory) ListFinished(_ context.Context) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, r := range s.requests {
		if r.Status == models.StatusFinished {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) CreateMetadata(_ context.Context, md *models.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMeta++
	md.ID = s.nextMeta
	s.metadata = append(s.metadata, *md)
	return nil
}

// ListMetadata returns metadata newest first.
func (s *InMemory) ListMetadata(_ context.Context) ([]models.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Metadata, len(s.metadata))
	for i, md := range s.metadata {
		out[len(s.metadata)-1-i] = md
	}
	return out, nil
}

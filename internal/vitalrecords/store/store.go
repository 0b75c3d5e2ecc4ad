// Package store persists vital records requests and the metadata kept
// after cleanup.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ddrc/internal/vitalrecords/models"
	"ddrc/pkg/platform/sentinel"
)

func notFound(id uuid.UUID) error {
	return fmt.Errorf("couldn't find vital records request %s: %w", id, sentinel.ErrNotFound)
}

func wrongStatus(id uuid.UUID, expected, actual models.Status) error {
	return fmt.Errorf("vital records request %s has an invalid status, expected: %s, actual: %s: %w",
		id, expected, actual, sentinel.ErrInvalidState)
}

// Store is the contract both implementations satisfy.
type Store interface {
	Create(ctx context.Context, r *models.Request) error
	// Save writes r only while the stored status is still from, the status
	// r was loaded with. A concurrent transition makes it fail with
	// sentinel.ErrInvalidState.
	Save(ctx context.Context, r *models.Request, from models.Status) error
	Get(ctx context.Context, id uuid.UUID) (*models.Request, error)
	GetWithStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Request, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListFinished(ctx context.Context) ([]*models.Request, error)
	CreateMetadata(ctx context.Context, md *models.Metadata) error
	ListMetadata(ctx context.Context) ([]models.Metadata, error)
}

var (
	_ Store = (*InMemory)(nil)
	_ Store = (*SQL)(nil)
)

package store

import (
	"context"

	"apim/internal/catalog/models"
)

// Store persists catalog resources. FindByID returns
// sentinel.ErrNotFound (possibly wrapped) for unknown IDs; Save returns
// sentinel.ErrConflict on a duplicate ID.
type Store interface {
	Save(ctx context.Context, resource models.Resource) error
	FindByID(ctx context.Context, resourceID string) (models.Resource, error)
	Exists(ctx context.Context, resourceID string) (bool, error)
	List(ctx context.Context) ([]models.Resource, error)
	// ListByMethod narrows to resources with the given HTTP method,
	// feeding the request-listing method filter.
	ListByMethod(ctx context.Context, method string) ([]models.Resource, error)
	Delete(ctx context.Context, resourceID string) error
}

package service

import (
	"context"
	"errors"
	"log/slog"

	"apim/internal/catalog/models"
	"apim/internal/catalog/store"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/platform/sentinel"
	"apim/pkg/requestcontext"
)

// GrantRemover cascades grant removal when a resource leaves the
// catalog. Satisfied by the permission service.
type GrantRemover interface {
	RemoveGrantsForResource(ctx context.Context, resourceID string) error
}

// Service is the thin catalog boundary: just enough CRUD to validate
// permission requests and render listings.
type Service struct {
	resources store.Store
	grants    GrantRemover
	logger    *slog.Logger
}

type Option func(*Service)

// WithGrantCascade wires grant removal into resource deletion.
func WithGrantCascade(grants GrantRemover) Option {
	return func(s *Service) { s.grants = grants }
}

func New(resources store.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{resources: resources, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, resource models.Resource) (models.Resource, error) {
	if resource.ID == "" || resource.Name == "" || resource.Method == "" || resource.Path == "" {
		return models.Resource{}, derrors.New(derrors.CodeValidation, "resource id, name, method, and path are required")
	}
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = requestcontext.Now(ctx)
	}
	if err := s.resources.Save(ctx, resource); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Resource{}, derrors.New(derrors.CodeConflict, "resource already exists")
		}
		return models.Resource{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to save resource")
	}
	s.logger.InfoContext(ctx, "resource registered", "resource_id", resource.ID)
	return resource, nil
}

func (s *Service) Lookup(ctx context.Context, resourceID string) (models.Resource, error) {
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Resource{}, derrors.New(derrors.CodeNotFound, "resource not found")
		}
		return models.Resource{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to load resource")
	}
	return resource, nil
}

func (s *Service) Exists(ctx context.Context, resourceID string) (bool, error) {
	exists, err := s.resources.Exists(ctx, resourceID)
	if err != nil {
		return false, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to check resource")
	}
	return exists, nil
}

func (s *Service) List(ctx context.Context) ([]models.Resource, error) {
	resources, err := s.resources.List(ctx)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to list resources")
	}
	return resources, nil
}

// ResourceIDsByMethod resolves an HTTP method into the catalog's
// matching resource IDs, for request-listing filters.
func (s *Service) ResourceIDsByMethod(ctx context.Context, method string) ([]string, error) {
	resources, err := s.resources.ListByMethod(ctx, method)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to list resources")
	}
	ids := make([]string, 0, len(resources))
	for _, resource := range resources {
		ids = append(ids, resource.ID)
	}
	return ids, nil
}

// Delete removes the resource and cascades its grants so no standing
// permission outlives the resource it names.
func (s *Service) Delete(ctx context.Context, resourceID string) error {
	if err := s.resources.Delete(ctx, resourceID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeNotFound, "resource not found")
		}
		return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to delete resource")
	}
	if s.grants != nil {
		if err := s.grants.RemoveGrantsForResource(ctx, resourceID); err != nil {
			return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to cascade grants for resource")
		}
	}
	s.logger.InfoContext(ctx, "resource removed", "resource_id", resourceID)
	return nil
}
